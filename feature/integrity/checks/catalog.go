package checks

import (
	"turnover-sync/feature/ingest"
)

// CatalogReport summarizes the feed catalog.
type CatalogReport struct {
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
	Feeds      int      `json:"feeds"`
	Enabled    int      `json:"enabled"`
	ICS        int      `json:"ics"`
	CSV        int      `json:"csv"`
	Properties []string `json:"properties"`
}

// CheckCatalog loads the catalog at path. An unreadable or invalid catalog
// is reported, not returned as an error.
func CheckCatalog(path string) (*CatalogReport, *ingest.Catalog) {
	catalog, err := ingest.LoadCatalog(path)
	if err != nil {
		return &CatalogReport{Error: err.Error()}, nil
	}

	report := &CatalogReport{
		Valid:      true,
		Feeds:      len(catalog.Feeds),
		Properties: catalog.Properties(),
	}
	for _, feed := range catalog.Enabled() {
		report.Enabled++
		switch feed.Kind {
		case ingest.KindICS:
			report.ICS++
		case ingest.KindCSV:
			report.CSV++
		}
	}
	return report, catalog
}
