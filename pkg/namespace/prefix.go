// Package namespace derives per-project table prefixes and rewrites SQL so
// physically shared tables never leak across tenants.
package namespace

import "strings"

// PrefixTag is the literal marker that opens every physical table name.
const PrefixTag = "proj_"

// prefixIDLen is how many characters of the project ID go into the prefix.
// Eight hex characters make cross-project collisions negligible but not
// impossible; this is an accepted limitation, not detected at runtime.
const prefixIDLen = 8

// Prefix returns the physical table-name prefix for a project:
// "proj_" + first 8 characters of the ID with separators stripped + "_".
func Prefix(projectID string) string {
	id := strings.NewReplacer("-", "", "_", "").Replace(projectID)
	if len(id) > prefixIDLen {
		id = id[:prefixIDLen]
	}
	return PrefixTag + strings.ToLower(id) + "_"
}

// AddPrefix maps a logical table name to its physical name. Idempotent:
// prefixing an already-prefixed name is a no-op.
func AddPrefix(tableName, projectID string) string {
	prefix := Prefix(projectID)
	if strings.HasPrefix(tableName, prefix) {
		return tableName
	}
	return prefix + tableName
}

// RemovePrefix maps a physical name back to its display name. Names that do
// not carry the project's prefix are returned unchanged.
func RemovePrefix(physicalName, projectID string) string {
	prefix := Prefix(projectID)
	if strings.HasPrefix(physicalName, prefix) {
		return strings.TrimPrefix(physicalName, prefix)
	}
	return physicalName
}

// HasTag reports whether name already carries any project prefix tag.
func HasTag(name string) bool {
	// Qualified names are checked on their final segment.
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.HasPrefix(name, PrefixTag)
}
