package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

func handleFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	flags := addSourceFlags(fs)
	format := fs.String("format", "table", "Output format: table, json, or compact")
	limit := fs.Int("limit", 0, "Maximum number of items to print (0 for all)")
	timeout := fs.Duration("timeout", 60*time.Second, "Timeout for the whole pass")
	verbose := fs.Bool("verbose", false, "Show skipped entries")
	fs.Parse(args)

	if *format != "table" && *format != "json" && *format != "compact" {
		fmt.Fprintf(os.Stderr, "Error: --format must be 'table', 'json', or 'compact'\n")
		os.Exit(1)
	}

	cfg, err := flags.resolve(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	c, err := buildComponents(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	entries, err := c.source.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to fetch from %s: %v\n", c.source.Name(), err)
		os.Exit(1)
	}

	result, err := c.aggregator.Ingest(ctx, entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		for _, entryErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "Skipped %v\n", &entryErr)
		}
	}

	records := result.Records
	total := len(records)
	if *limit > 0 && *limit < total {
		records = records[:*limit]
	}

	switch *format {
	case "json":
		printRecordsJSON(records, total)
	case "compact":
		printRecordsCompact(records)
	default:
		printRecordsTable(records, total)
		fmt.Printf("%d accepted, %d skipped, %d without a date, %d enriched\n",
			result.Accepted, result.Skipped, result.Unresolved, result.Enriched)
	}
}
