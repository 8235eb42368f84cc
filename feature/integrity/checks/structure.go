package checks

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"turnover-sync/core/storage"
	"turnover-sync/feature/ingest"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// RequiredFolders lists the folders that must exist in the bucket: the
// archive prefix, the csv prefix and every csv feed folder below it.
// Feeds naming a single object are not folders and are skipped.
func RequiredFolders(cfg storage.Config, catalog *ingest.Catalog) []string {
	var folders []string
	seen := make(map[string]struct{})
	add := func(folder string) {
		if folder == "" || folder == "/" {
			return
		}
		if !strings.HasSuffix(folder, "/") {
			folder += "/"
		}
		if _, ok := seen[folder]; ok {
			return
		}
		seen[folder] = struct{}{}
		folders = append(folders, folder)
	}

	add(cfg.ArchivePrefix)
	add(cfg.CSVPrefix)
	if catalog != nil {
		for _, feed := range catalog.Enabled() {
			if feed.IsPrefix() {
				add(storage.Key(cfg.CSVPrefix, feed.Object))
			}
		}
	}
	return folders
}

// CheckStructure returns the folders that hold no object.
func CheckStructure(ctx context.Context, client storage.Client, bucket string, folders []string) ([]string, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	var missing []string
	for _, folder := range folders {
		opts := minio.ListObjectsOptions{
			Prefix:    folder,
			Recursive: false,
			MaxKeys:   1,
		}

		found := false
		for obj := range client.ListObjects(ctx, bucket, opts) {
			if obj.Err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", folder, obj.Err)
			}
			found = true
			break
		}

		if !found {
			missing = append(missing, folder)
		}
	}

	return missing, nil
}

// FixStructure creates a folder marker for every missing folder.
func FixStructure(ctx context.Context, client storage.Client, bucket string, logger *zap.Logger, missing []string) error {
	for _, folder := range missing {
		if !strings.HasSuffix(folder, "/") {
			folder += "/"
		}

		_, err := client.PutObject(ctx, bucket, folder, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
		if err != nil {
			logger.Error("Failed to create folder", zap.String("folder", folder), zap.Error(err))
			return err
		}
		logger.Info("Created missing folder", zap.String("folder", folder))
	}
	return nil
}
