// Package database handles database connections and schema inspection.
//
// It wraps GORM to configure MySQL (production) or SQLite (local runs and tests) connections
// for the document store.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns let the server verify at startup that the documents
// table carries the columns the store writes.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "documents", []string{"collection", "id", "data"})
package database
