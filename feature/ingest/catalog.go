package ingest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"turnover-sync/core/reconcile"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when the feed catalog cannot be used.
var ErrInvalidCatalog = errors.New("invalid feed catalog")

// Kind is the format of a feed.
type Kind string

const (
	// KindICS is an iCalendar feed fetched over HTTP.
	KindICS Kind = "ics"
	// KindCSV is a CSV export read from object storage.
	KindCSV Kind = "csv"
)

// Feed is one upstream source of reservation events.
type Feed struct {
	// ID names the feed. It becomes the source of every event it yields.
	ID         string `yaml:"id" json:"id"`
	PropertyID string `yaml:"property_id" json:"property_id"`
	Kind       Kind   `yaml:"kind" json:"kind"`
	// URL is the calendar endpoint of an ics feed.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Object is the key of a csv feed below the storage csv prefix.
	// A trailing slash reads every .csv object under it.
	Object             string `yaml:"object,omitempty" json:"object,omitempty"`
	DefaultEntryType   string `yaml:"default_entry_type,omitempty" json:"default_entry_type,omitempty"`
	DefaultServiceType string `yaml:"default_service_type,omitempty" json:"default_service_type,omitempty"`
	Enabled            *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the feed takes part in runs. Feeds are enabled
// unless switched off explicitly.
func (f Feed) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// IsPrefix reports whether a csv feed names a folder of exports.
func (f Feed) IsPrefix() bool {
	return f.Kind == KindCSV && strings.HasSuffix(f.Object, "/")
}

// entryType resolves the feed default, falling back to Reservation.
func (f Feed) entryType() reconcile.EntryType {
	if et, ok := reconcile.ParseEntryType(f.DefaultEntryType); ok {
		return et
	}
	return reconcile.EntryReservation
}

// Catalog is the list of configured feeds.
type Catalog struct {
	Feeds []Feed `yaml:"feeds" json:"feeds"`
}

// LoadCatalog reads and validates the catalog at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every feed and reports all problems at once.
func (c *Catalog) Validate() error {
	var problems []string
	seen := make(map[string]struct{}, len(c.Feeds))

	for i, f := range c.Feeds {
		name := f.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			problems = append(problems, fmt.Sprintf("feed %s: missing id", name))
		} else if _, dup := seen[f.ID]; dup {
			problems = append(problems, fmt.Sprintf("feed %s: duplicate id", name))
		}
		seen[f.ID] = struct{}{}

		switch f.Kind {
		case KindICS:
			if f.URL == "" {
				problems = append(problems, fmt.Sprintf("feed %s: ics feed needs a url", name))
			}
			if f.PropertyID == "" {
				problems = append(problems, fmt.Sprintf("feed %s: ics feed needs a property_id", name))
			}
		case KindCSV:
			if f.Object == "" {
				problems = append(problems, fmt.Sprintf("feed %s: csv feed needs an object", name))
			}
		default:
			problems = append(problems, fmt.Sprintf("feed %s: unknown kind %q", name, f.Kind))
		}

		if f.DefaultEntryType != "" {
			if _, ok := reconcile.ParseEntryType(f.DefaultEntryType); !ok {
				problems = append(problems, fmt.Sprintf("feed %s: unknown default_entry_type %q", name, f.DefaultEntryType))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return nil
}

// Enabled returns the enabled feeds in catalog order.
func (c *Catalog) Enabled() []Feed {
	out := make([]Feed, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.IsEnabled() {
			out = append(out, f)
		}
	}
	return out
}

// Properties returns the distinct property ids named by enabled feeds,
// in catalog order.
func (c *Catalog) Properties() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, f := range c.Enabled() {
		if f.PropertyID == "" {
			continue
		}
		if _, ok := seen[f.PropertyID]; ok {
			continue
		}
		seen[f.PropertyID] = struct{}{}
		out = append(out, f.PropertyID)
	}
	return out
}
