// Package ingest reads reservation feeds and normalizes them into events for
// the reconciliation engine.
//
// Feeds are listed in a YAML catalog. Two kinds are supported:
//  1. ics: an iCalendar feed fetched over HTTP.
//  2. csv: one export, or a folder of exports, read from object storage.
//
// # Components
//
//   - Catalog: loads and validates the feed list.
//   - HTTPFetcher / ObjectReader: read raw bodies with retries and timeouts.
//   - ICSParser: VEVENTs to events, expanding recurring entries over a horizon.
//   - CSVParser: rows to events, with header aliases and per-row errors.
//   - Ingester: reads every feed on a bounded worker pool.
//
// A feed that cannot be read is reported in its FeedResult. The caller marks
// its source as failed so the records it fed are not aged by the run.
package ingest
