package namespace

import (
	"regexp"
	"sort"
)

// TableExtractor finds table identifiers in SQL text. It sits behind an
// interface so the lexical heuristic can later be swapped for a real
// tokenizer without touching callers.
type TableExtractor interface {
	ExtractTableNames(sql string) []string
}

// tablePatterns match identifiers in the positions where table names appear.
// This is a best-effort lexical scan, not a parser: reserved-word table
// names, exotic quoting and identifiers inside comments can over- or
// under-match.
var tablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bJOIN\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bINTO\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bUPDATE\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bTABLE\s+(?:IF\s+(?:NOT\s+)?EXISTS\s+)?([a-zA-Z_][a-zA-Z0-9_.]*)`),
}

// RegexExtractor is the default lexical TableExtractor.
type RegexExtractor struct{}

var _ TableExtractor = RegexExtractor{}

// ExtractTableNames returns the distinct identifiers following FROM, JOIN,
// INTO, UPDATE and TABLE [IF [NOT] EXISTS], sorted for determinism.
func (RegexExtractor) ExtractTableNames(sql string) []string {
	seen := make(map[string]struct{})
	for _, pattern := range tablePatterns {
		for _, match := range pattern.FindAllStringSubmatch(sql, -1) {
			seen[match[1]] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
