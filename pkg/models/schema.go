package models

import "time"

// ColumnInfo describes one column of a discovered table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Extra    string `json:"extra,omitempty"`
}

// TableInfo describes one discovered table. DisplayName is the logical name
// the tenant sees; PhysicalName carries the project prefix.
type TableInfo struct {
	DisplayName  string       `json:"displayName"`
	PhysicalName string       `json:"physicalName"`
	Columns      []ColumnInfo `json:"columns"`
}

// SchemaSnapshot is a cached, TTL'd description of a project's currently
// known tables. Absence of a snapshot is a valid state: not yet discovered,
// or expired.
type SchemaSnapshot struct {
	Tables     []TableInfo `json:"tables"`
	Discovered bool        `json:"discovered"`
	Dialect    Dialect     `json:"dialect,omitempty"`
	Database   string      `json:"database,omitempty"`
	LastSynced time.Time   `json:"lastSynced"`
}
