// Package reconcile merges reservation events from untrusted upstream feeds
// into an append-only, history-preserving record store.
//
// A reconciliation run never deletes or overwrites a record in place. Every
// transition either re-stamps an active record or flips it to Old/Removed and
// creates a successor that points back at it through Supersedes.
//
// # Components
//
// 1. Detector: indexes the active records of a property once per run and
//    classifies each event as an exact duplicate, a modification of the same
//    identifier, an identifier change (same slot, new upstream UID) or a
//    genuinely new booking. Identifier matches are resolved before slot
//    matches, so classification does not depend on event order.
//
// 2. Engine: turns detections into lifecycle transitions and store
//    operations, then hands the active records no event matched to the
//    removal tracker.
//
// 3. RemovalTracker: ages absent records with a miss counter. A record is
//    only Removed after three consecutive misses, a grace period, and no
//    protection rule (active job, recent checkin, imminent checkout).
//
// 4. FlagCalculator: derives overlap, same-day turnover, long-stay and
//    owner-arrival flags from the surviving active set of a property.
//
// 5. Collector: buffers operations and flushes them in bounded batches with
//    retry, keeping per-record order.
//
// # Concurrency
//
// Engine.Reconcile is single-threaded per property and must see every event
// of that property for the run before it decides what is missing. Different
// properties may be reconciled and flushed concurrently.
//
// # Usage
//
//	run := reconcile.NewRun(runID, time.Now(), cfg.Location())
//	engine := reconcile.NewEngine(cfg, jobStore, logger)
//	plan := engine.Reconcile(ctx, run, propertyID, active, events)
//
//	collector := reconcile.NewCollector(store, cfg, logger)
//	collector.Submit(plan.Operations...)
//	result := collector.Flush(ctx)
package reconcile
