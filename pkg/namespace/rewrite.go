package namespace

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Namespacer rewrites SQL so bare table identifiers carry the project's
// physical prefix. It is stateless; the prefix is a pure function of the
// project ID.
type Namespacer struct {
	extractor TableExtractor
	logger    *zap.Logger
}

// New creates a Namespacer using the given extractor.
func New(extractor TableExtractor, logger *zap.Logger) *Namespacer {
	return &Namespacer{
		extractor: extractor,
		logger:    logger.Named("namespace"),
	}
}

// Rewrite substitutes every extracted table identifier with its prefixed
// form, everywhere it appears outside string literals. Identifiers that
// already carry a project tag are left alone. On any internal failure the
// original text is returned unchanged; rewriting must never block execution.
func (n *Namespacer) Rewrite(sql, projectID string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("sql rewrite failed, falling back to original text",
				zap.String("project_id", projectID),
				zap.Any("panic", r))
			result = sql
		}
	}()

	names := n.extractor.ExtractTableNames(sql)
	if len(names) == 0 {
		return sql
	}

	// String literals are masked before substitution so quoted content is
	// never mutated, then restored afterwards.
	masked, literals := maskLiterals(sql)

	for _, name := range names {
		if HasTag(name) {
			continue
		}
		masked = substituteIdentifier(masked, name, prefixedForm(name, projectID))
	}

	return unmaskLiterals(masked, literals)
}

// ExtractDisplayTables returns the logical table names referenced by sql,
// with any project prefix stripped for display.
func (n *Namespacer) ExtractDisplayTables(sql, projectID string) []string {
	names := n.extractor.ExtractTableNames(sql)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, RemovePrefix(name, projectID))
	}
	return out
}

// prefixedForm prefixes a bare identifier, or the final segment of a
// qualified one (federation statements address tables as
// catalog.schema.table).
func prefixedForm(name, projectID string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i+1] + AddPrefix(name[i+1:], projectID)
	}
	return AddPrefix(name, projectID)
}

// substituteIdentifier performs a whole-word, case-insensitive replacement
// of identifier with replacement. Word boundaries keep the substitution
// token-safe: it never matches inside another identifier.
func substituteIdentifier(text, identifier, replacement string) string {
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(identifier) + `\b`)
	return pattern.ReplaceAllLiteralString(text, replacement)
}

const literalMarker = "\x00"

// maskLiterals replaces single-quoted string literals with placeholders and
// returns the masked text plus the extracted literals in order. SQL standard
// doubled quotes ('') stay inside a literal.
func maskLiterals(sql string) (string, []string) {
	var (
		out      strings.Builder
		literals []string
		i        = 0
		runes    = []rune(sql)
	)

	for i < len(runes) {
		if runes[i] != '\'' {
			out.WriteRune(runes[i])
			i++
			continue
		}

		start := i
		i++
		for i < len(runes) {
			if runes[i] == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i += 2 // escaped quote, still inside the literal
					continue
				}
				i++
				break
			}
			i++
		}
		literals = append(literals, string(runes[start:i]))
		out.WriteString(fmt.Sprintf("%s%d%s", literalMarker, len(literals)-1, literalMarker))
	}

	return out.String(), literals
}

// unmaskLiterals restores the literals captured by maskLiterals.
func unmaskLiterals(masked string, literals []string) string {
	for i, lit := range literals {
		placeholder := fmt.Sprintf("%s%d%s", literalMarker, i, literalMarker)
		masked = strings.Replace(masked, placeholder, lit, 1)
	}
	return masked
}
