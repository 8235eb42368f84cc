// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL connections for
// production and SQLite for local runs and tests, based on the application's
// configuration.
//
// # Connect
//
// Connect opens the configured driver, bounds connection setup with the
// configured timeout and verifies the connection with a ping. Duplicate key
// errors are translated to gorm.ErrDuplicatedKey so the reservation store can
// report write conflicts without knowing the driver.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns let the reservation store verify, after
// migration, that the tables it writes to carry every column it needs.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "reservations", []string{"status"})
package database
