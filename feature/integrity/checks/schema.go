package checks

import (
	"fmt"
	"strings"
	"sync"

	"card-sync/core/database"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// SchemaReport strictly types the result of a schema integrity check.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	TypeMismatches []string `json:"type_mismatches"`
	Status         string   `json:"status"` // "ok", "error"
}

// columnTypes maps a gorm data type to the column types accepted for it across dialects.
var columnTypes = map[schema.DataType][]string{
	schema.String: {"varchar", "text"},
	schema.Time:   {"datetime", "timestamp"},
	"json":        {"json", "longtext"},
}

// CheckSchema verifies the database schema using the given gorm models as the source of truth.
func CheckSchema(db *gorm.DB, models ...any) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
		Matched: true,
	}

	cache := &sync.Map{}
	for _, model := range models {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}

		tblReport := TableReport{
			MissingColumns: []string{},
			TypeMismatches: []string{},
			Status:         "ok",
		}

		actualCols, err := database.GetTableColumns(db, s.Table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", s.Table, err))
			report.Matched = false
			continue
		}

		actualMap := make(map[string]database.ColumnInfo, len(actualCols))
		for _, col := range actualCols {
			actualMap[col.Field] = col
		}

		for _, field := range s.Fields {
			if field.DBName == "" {
				continue
			}
			actCol, exists := actualMap[field.DBName]
			if !exists {
				tblReport.MissingColumns = append(tblReport.MissingColumns, field.DBName)
				tblReport.Status = "error"
				report.Matched = false
				continue
			}

			accepted, known := columnTypes[field.DataType]
			if !known || matchesAny(actCol.Type, accepted) {
				continue
			}
			mismatch := fmt.Sprintf("%s: expected %s, got %s", field.DBName, strings.Join(accepted, "|"), actCol.Type)
			tblReport.TypeMismatches = append(tblReport.TypeMismatches, mismatch)
			tblReport.Status = "error"
			report.Matched = false
		}

		report.Tables[s.Table] = tblReport
	}

	return report, nil
}

func matchesAny(actual string, accepted []string) bool {
	for _, t := range accepted {
		if strings.Contains(actual, t) {
			return true
		}
	}
	return false
}
