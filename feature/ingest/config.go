package ingest

import "time"

// Config holds configuration for feed ingestion.
type Config struct {
	// CatalogPath is the YAML file listing the feeds.
	CatalogPath string `mapstructure:"catalog_path" default:"feeds.yaml"`
	// Workers bounds the number of feeds fetched at once.
	Workers int `mapstructure:"workers" default:"4"`
	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" default:"20s"`
	// FetchAttempts is the retry budget of a feed fetch.
	FetchAttempts int `mapstructure:"fetch_attempts" default:"3"`
	// FetchBackoff is the delay before the second fetch attempt.
	FetchBackoff time.Duration `mapstructure:"fetch_backoff" default:"500ms"`
	// HorizonDays bounds the expansion of recurring calendar events.
	HorizonDays int `mapstructure:"horizon_days" default:"365"`
	// BlockKeywords mark calendar events whose summary denotes a block.
	BlockKeywords []string `mapstructure:"block_keywords" default:"blocked,not available,owner,maintenance"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 3
	}
	if c.FetchBackoff < 0 {
		c.FetchBackoff = 500 * time.Millisecond
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 365
	}
	if c.BlockKeywords == nil {
		c.BlockKeywords = []string{"blocked", "not available", "owner", "maintenance"}
	}
	return c
}
