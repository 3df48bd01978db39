package namespace

import "strings"

// ddlPrefixes are the keyword pairs that open a schema-mutating statement.
var ddlPrefixes = []string{
	"CREATE TABLE",
	"CREATE VIEW",
	"CREATE INDEX",
	"ALTER TABLE",
	"ALTER VIEW",
	"DROP TABLE",
	"DROP VIEW",
	"DROP INDEX",
	"RENAME TABLE",
	"TRUNCATE TABLE",
}

// IsDDL reports whether the statement mutates schema. A successful DDL
// statement invalidates the project's schema cache; a false positive here
// only costs a rediscovery, a false negative would serve stale schema.
func IsDDL(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	upper = strings.Join(strings.Fields(upper), " ")
	for _, prefix := range ddlPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
