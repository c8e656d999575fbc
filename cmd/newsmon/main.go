package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "serve":
		handleServe(os.Args[2:])
	case "fetch":
		handleFetch(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newsmon - News monitor for a single search term")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsmon <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Run the refresh loop and the HTTP API")
	fmt.Println("  fetch      Run one refresh and print the results")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSMON_QUERY             Search term (default: reforma ministerial)")
	fmt.Println("  NEWSMON_SOURCE_TYPE       search or rss (default: search)")
	fmt.Println("  NEWSMON_SOURCE_URL        Feed URL for the rss source")
	fmt.Println("  NEWSMON_API_KEY           Search API key")
	fmt.Println("  NEWSMON_ENGINE_ID         Search engine ID")
	fmt.Println("  NEWSMON_TIMEZONE          Display time zone (default: America/Sao_Paulo)")
	fmt.Println("  NEWSMON_REFRESH_INTERVAL  Refresh interval, 10s to 5m (default: 1m)")
	fmt.Println("  NEWSMON_ENRICH            Scrape article pages for dates (default: false)")
	fmt.Println("  NEWSMON_MAX_RECORDS       History size bound, 0 for none (default: 1000)")
	fmt.Println("  NEWSMON_LISTEN            HTTP listen address (default: :8080)")
	fmt.Println("  NEWSMON_SETTINGS_DSN      Path to settings database (default: newsmon.db)")
}
