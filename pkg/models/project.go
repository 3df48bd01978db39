// Package models contains domain types for the engine core.
package models

import (
	"strings"
	"time"
)

// Dialect identifies which physical engine family a project targets.
type Dialect string

// Canonical dialects.
const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgresql"
	DialectTrino    Dialect = "trino"
	DialectSpark    Dialect = "spark"
)

// Legacy dialects still found in stored project metadata. They are remapped
// to canonical values lazily on read, with the original value preserved under
// the MetaActualEngine key.
const (
	DialectLegacyPresto   Dialect = "presto"
	DialectLegacySparkSQL Dialect = "sparksql"
)

// Metadata keys with well-known meanings. The metadata map is otherwise
// free-form and extensible.
const (
	// MetaActualEngine records the pre-migration dialect value after a legacy
	// dialect has been normalized.
	MetaActualEngine = "actual_engine"
	// MetaCSVUploads tracks upload history for the project.
	MetaCSVUploads = "csv_uploads"
	// MetaMigratedAt records when the lazy dialect migration ran.
	MetaMigratedAt = "migrated_at"
)

// Project represents a tenant boundary: one customer's isolated view over
// the shared physical SQL engines.
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Dialect   Dialect        `json:"dialect"`
	Database  string         `json:"database,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Validate checks the fields required at registration time.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errMissingField("id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errMissingField("name")
	}
	if !p.Dialect.Known() {
		return errUnknownDialect(string(p.Dialect))
	}
	return nil
}

// Known reports whether d is a canonical or legacy dialect value.
func (d Dialect) Known() bool {
	switch d {
	case DialectMySQL, DialectPostgres, DialectTrino, DialectSpark,
		DialectLegacyPresto, DialectLegacySparkSQL:
		return true
	}
	return false
}

// Canonical returns the canonical dialect for d and whether a remap was
// needed. Unknown values pass through unchanged.
func (d Dialect) Canonical() (Dialect, bool) {
	switch d {
	case DialectLegacyPresto:
		return DialectTrino, true
	case DialectLegacySparkSQL:
		return DialectSpark, true
	}
	return d, false
}
