package checks

import (
	"fmt"

	"turnover-sync/core/database"
	"turnover-sync/feature/reservations/models"

	"gorm.io/gorm"
)

// SchemaReport is the result of a database schema check.
type SchemaReport struct {
	Driver  string                 `json:"driver"`
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors,omitempty"`
}

// TableReport describes one expected table.
type TableReport struct {
	Exists         bool     `json:"exists"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

type expectedTable struct {
	name    string
	columns []string
}

func expectedTables() []expectedTable {
	return []expectedTable{
		{name: models.Reservation{}.TableName(), columns: models.Reservation{}.Columns()},
		{name: models.Job{}.TableName(), columns: models.Job{}.Columns()},
	}
}

// CheckSchema verifies that the reservation and job tables carry every
// column the reconciler reads and writes.
func CheckSchema(db *gorm.DB) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Driver:  db.Dialector.Name(),
		Matched: true,
		Tables:  make(map[string]TableReport),
	}

	for _, table := range expectedTables() {
		columns, err := database.GetTableColumns(db, table.name)
		if err != nil {
			report.Matched = false
			report.Errors = append(report.Errors, err.Error())
			report.Tables[table.name] = TableReport{Status: "error"}
			continue
		}

		tr := TableReport{Exists: len(columns) > 0, Status: "ok"}
		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col.Field] = struct{}{}
		}
		for _, name := range table.columns {
			if _, ok := present[name]; !ok {
				tr.MissingColumns = append(tr.MissingColumns, name)
			}
		}

		switch {
		case !tr.Exists:
			tr.Status = "missing"
		case len(tr.MissingColumns) > 0:
			tr.Status = "error"
		}
		if tr.Status != "ok" {
			report.Matched = false
		}
		report.Tables[table.name] = tr
	}

	return report, nil
}
