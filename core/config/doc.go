// Package config provides configuration management for the turnover sync service.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each
// section, so every key is registered and can be overridden from the
// environment (RECONCILE_GRACE_PERIOD -> reconcile.grace_period).
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: MySQL or SQLite connection details
//   - Storage: S3/MinIO credentials, bucket and object prefixes
//   - Log: Logging level and format
//   - Reconcile: removal, flag and batching tunables of the core
//   - Ingest: feed catalog location and fetch pool settings
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Reconcile.GracePeriod)
package config
