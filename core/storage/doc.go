// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// operations the service needs: reading CSV reservation exports and archiving
// run summaries. This abstraction supports both AWS S3 and self-hosted MinIO.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (as seen in core/storage/mocks).
// Nothing in the service deletes objects, so the interface has no remove calls.
//
// # Helpers
//
//   - EnsureBucket: creates the bucket on first start.
//   - ListKeys: lists the objects under a prefix, filtered by extension.
//   - PutJSON: uploads a JSON document such as a run summary.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	keys, err := storage.ListKeys(ctx, client, cfg.Storage.Bucket, "exports/", ".csv")
package storage
