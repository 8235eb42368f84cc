// Package reservations stores reconciled reservation records and runs the
// reconciliation pass.
//
// # Components
//
//   - Store: gorm persistence for the reservations and jobs tables. It is the
//     record loader, batch writer and job lookup of the reconcile engine.
//   - Service: ingests every feed, reconciles each property against its
//     active records and flushes the writes, one collector per property.
//   - Handler: HTTP endpoints for runs, records and job webhooks.
//
// # HTTP Endpoints
//
//   - POST /runs : Trigger a run and return its report.
//   - GET /runs/latest : Report of the last completed run.
//   - GET /properties/:property/reservations : Active records of a property.
//   - POST /webhooks/jobs : Job status update {record_id, job_id, status}.
//
// Records are append-only. A write never deletes a row; transitions insert a
// new version and flip the previous one to Old or Removed.
package reservations
