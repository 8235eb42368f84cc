package reconcile

import "time"

// Config holds the tunables of the reconciliation core.
type Config struct {
	// Timezone is the IANA zone in which "today" is evaluated.
	Timezone string `mapstructure:"timezone" default:"UTC"`
	// GracePeriod is the minimum time between the first miss and retirement.
	GracePeriod time.Duration `mapstructure:"grace_period" default:"12h"`
	// MaxMissing is the number of consecutive misses that confirms a removal.
	MaxMissing int `mapstructure:"max_missing" default:"3"`
	// RecentCheckinDays protects records whose checkin is this recent.
	RecentCheckinDays int `mapstructure:"protect_recent_checkin_days" default:"7"`
	// LongStayNights is the stay length from which long_stay is set.
	LongStayNights int `mapstructure:"long_stay_nights" default:"14"`
	// BatchSize bounds the number of operations flushed per write.
	BatchSize int `mapstructure:"batch_size" default:"50"`
	// WriteAttempts is the retry budget of the batch collector.
	WriteAttempts int `mapstructure:"write_attempts" default:"4"`
	// WriteBackoff is the initial backoff between write attempts.
	WriteBackoff time.Duration `mapstructure:"write_backoff" default:"200ms"`
	// FlushWorkers bounds the number of properties flushed at once.
	FlushWorkers int `mapstructure:"flush_workers" default:"4"`
	// Schedule is the cron expression used by the start command.
	Schedule string `mapstructure:"schedule" default:"*/30 * * * *"`
}

// DefaultConfig returns the defaults used when no configuration is loaded.
func DefaultConfig() Config {
	return Config{
		Timezone:          "UTC",
		GracePeriod:       12 * time.Hour,
		MaxMissing:        3,
		RecentCheckinDays: 7,
		LongStayNights:    14,
		BatchSize:         50,
		WriteAttempts:     4,
		WriteBackoff:      200 * time.Millisecond,
		FlushWorkers:      4,
		Schedule:          "*/30 * * * *",
	}
}

// withDefaults fills zero values so partially populated configs stay usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.MaxMissing <= 0 {
		c.MaxMissing = d.MaxMissing
	}
	if c.RecentCheckinDays < 0 {
		c.RecentCheckinDays = d.RecentCheckinDays
	}
	if c.LongStayNights <= 0 {
		c.LongStayNights = d.LongStayNights
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = d.WriteAttempts
	}
	if c.WriteBackoff < 0 {
		c.WriteBackoff = d.WriteBackoff
	}
	if c.FlushWorkers <= 0 {
		c.FlushWorkers = d.FlushWorkers
	}
	return c
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
