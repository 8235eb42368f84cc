package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"turnover-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
feeds:
  - id: beach-airbnb
    kind: ics
    property_id: beach-house
    url: https://example.com/beach.ics
  - id: beach-owner
    kind: ics
    property_id: beach-house
    url: https://example.com/owner.ics
    default_entry_type: block
  - id: pms-exports
    kind: csv
    object: pms/
    default_service_type: Turnover
  - id: cabin-vrbo
    kind: ics
    property_id: cabin
    url: https://example.com/cabin.ics
    enabled: false
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Feeds, 4)

	enabled := c.Enabled()
	require.Len(t, enabled, 3)
	assert.Equal(t, "beach-airbnb", enabled[0].ID)
	assert.Equal(t, "pms-exports", enabled[2].ID)

	assert.Equal(t, []string{"beach-house"}, c.Properties())
	assert.True(t, enabled[2].IsPrefix())
	assert.False(t, enabled[0].IsPrefix())
	assert.Equal(t, reconcile.EntryBlock, enabled[1].entryType())
	assert.Equal(t, reconcile.EntryReservation, enabled[0].entryType())
}

func TestCatalog_Validate(t *testing.T) {
	tests := []struct {
		name    string
		feeds   []Feed
		problem string
	}{
		{
			name:    "Missing id",
			feeds:   []Feed{{Kind: KindCSV, Object: "a.csv"}},
			problem: "feed #1: missing id",
		},
		{
			name: "Duplicate id",
			feeds: []Feed{
				{ID: "a", Kind: KindCSV, Object: "a.csv"},
				{ID: "a", Kind: KindCSV, Object: "b.csv"},
			},
			problem: "feed a: duplicate id",
		},
		{
			name:    "ics without url",
			feeds:   []Feed{{ID: "a", Kind: KindICS, PropertyID: "P"}},
			problem: "ics feed needs a url",
		},
		{
			name:    "ics without property",
			feeds:   []Feed{{ID: "a", Kind: KindICS, URL: "https://example.com/a.ics"}},
			problem: "ics feed needs a property_id",
		},
		{
			name:    "csv without object",
			feeds:   []Feed{{ID: "a", Kind: KindCSV}},
			problem: "csv feed needs an object",
		},
		{
			name:    "Unknown kind",
			feeds:   []Feed{{ID: "a", Kind: "xml"}},
			problem: `unknown kind "xml"`,
		},
		{
			name:    "Unknown entry type",
			feeds:   []Feed{{ID: "a", Kind: KindCSV, Object: "a.csv", DefaultEntryType: "tentative"}},
			problem: `unknown default_entry_type "tentative"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Catalog{Feeds: tt.feeds}).Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid file", func(t *testing.T) {
		path := filepath.Join(dir, "feeds.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

		c, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Len(t, c.Feeds, 4)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feeds: [\n"), 0o644))

		_, err := LoadCatalog(path)
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})
}
