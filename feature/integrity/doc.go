// Package integrity provides readiness checks for the reconciler's
// infrastructure.
//
// # Checks Provided
//
//   - Structure: the archive prefix, the csv prefix and every csv feed folder exist in the bucket.
//   - Schema: the reservations and jobs tables carry every column the reconciler reads and writes.
//   - Catalog: the feed catalog loads and validates.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks. Answers 503 when any check fails.
//   - GET /integrity/structure : Runs the structure check (supports ?fix=true).
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/catalog : Runs the catalog check.
package integrity
