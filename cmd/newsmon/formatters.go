package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pevans/newsmon/newsfeed"
)

// printRecordsTable prints records in human-readable table format
func printRecordsTable(records []newsfeed.NewsRecord, total int) {
	writeRecordsTable(os.Stdout, records, total)
}

func writeRecordsTable(w io.Writer, records []newsfeed.NewsRecord, total int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No items to display.")
		return
	}

	fmt.Fprintf(w, "Showing %d of %d items\n\n", len(records), total)

	for _, record := range records {
		fmt.Fprintf(w, "%s\n", truncate(record.Title, 70))
		fmt.Fprintf(w, "   %s | Published: %s\n", record.SourceName, record.PublishedDisplay)
		snippet := wrapText(truncate(record.Snippet, 200), 76)
		fmt.Fprintf(w, "   %s\n", strings.ReplaceAll(snippet, "\n", "\n   "))
		fmt.Fprintf(w, "   URL: %s\n", record.Identifier)
		fmt.Fprintln(w)
	}
}

// printRecordsJSON prints records in JSON format
func printRecordsJSON(records []newsfeed.NewsRecord, total int) {
	if err := writeRecordsJSON(os.Stdout, records, total); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
}

func writeRecordsJSON(w io.Writer, records []newsfeed.NewsRecord, total int) error {
	if records == nil {
		records = []newsfeed.NewsRecord{}
	}
	output := map[string]any{
		"items": records,
		"total": total,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printRecordsCompact prints records in compact format
func printRecordsCompact(records []newsfeed.NewsRecord) {
	writeRecordsCompact(os.Stdout, records)
}

func writeRecordsCompact(w io.Writer, records []newsfeed.NewsRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No items to display.")
		return
	}

	for _, record := range records {
		fmt.Fprintf(w, "%-16s %s (%s)\n", record.PublishedDisplay, record.Title, record.SourceName)
	}
}
