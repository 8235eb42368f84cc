// Command debug_feed parses a local calendar or CSV export the way a feed
// would be ingested and prints the resulting events.
//
//	go run ./cmd/debug_feed -property beach exports/beach.ics
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turnover-sync/core/config"
	"turnover-sync/core/reconcile"
	"turnover-sync/feature/ingest"
)

func main() {
	property := flag.String("property", "", "Property id for files without a property column")
	entryType := flag.String("entry-type", "", "Default entry type")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: debug_feed [-property id] [-entry-type type] <file.ics|file.csv>")
	}
	path := flag.Arg(0)

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	feed := ingest.Feed{
		ID:               "debug:" + filepath.Base(path),
		PropertyID:       *property,
		DefaultEntryType: *entryType,
	}

	loc := cfg.Reconcile.Location()
	var (
		events    []reconcile.Event
		malformed []error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ics":
		feed.Kind = ingest.KindICS
		today := reconcile.ToDate(time.Now().In(loc))
		events, malformed, err = ingest.NewICSParser(loc, cfg.Ingest).Parse(feed, body, today)
	case ".csv":
		feed.Kind = ingest.KindCSV
		events, malformed, err = ingest.NewCSVParser().Parse(feed, path, body)
	default:
		log.Fatalf("unknown feed format %q", filepath.Ext(path))
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("=== %s (%s) ===\n", path, feed.Kind)
	for _, ev := range events {
		fmt.Printf("%-40s %-12s %s -> %s  %-11s %s\n",
			reconcile.CompositeUID(ev.ExternalUID, ev.PropertyID),
			ev.PropertyID,
			reconcile.DateKey(ev.Checkin),
			reconcile.DateKey(ev.Checkout),
			ev.EntryType,
			ev.ServiceType,
		)
	}

	fmt.Printf("\nEvents: %d\n", len(events))
	fmt.Printf("Malformed: %d\n", len(malformed))
	for _, e := range malformed {
		fmt.Printf("  %v\n", e)
	}
}
