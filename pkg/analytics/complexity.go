package analytics

import (
	"regexp"
	"strings"
)

var joinPattern = regexp.MustCompile(`\bJOIN\b`)

var aggregateFunctions = []string{"COUNT", "SUM", "AVG", "MAX", "MIN", "GROUP_CONCAT"}

// ddlVerbs classify a statement as DDL by its first keyword.
var ddlVerbs = []string{"CREATE", "ALTER", "DROP", "TRUNCATE"}

// classifyType buckets a statement into SELECT/INSERT/UPDATE/DELETE/DDL/OTHER.
func classifyType(query string) string {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(upper, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(upper, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(upper, "DELETE"):
		return "DELETE"
	}
	for _, verb := range ddlVerbs {
		if strings.HasPrefix(upper, verb) {
			return "DDL"
		}
	}
	return "OTHER"
}

type complexity struct {
	JoinCount     int
	SubqueryCount int
	Aggregates    []string
	HasWhere      bool
	HasGroupBy    bool
	HasOrderBy    bool
	// Score is 0..100; heavier constructs weigh more.
	Score int
}

func analyzeComplexity(query string) complexity {
	upper := strings.ToUpper(query)

	c := complexity{
		JoinCount:     len(joinPattern.FindAllString(upper, -1)),
		SubqueryCount: strings.Count(upper, "(SELECT"),
		HasWhere:      strings.Contains(upper, "WHERE"),
		HasGroupBy:    strings.Contains(upper, "GROUP BY"),
		HasOrderBy:    strings.Contains(upper, "ORDER BY"),
	}
	for _, fn := range aggregateFunctions {
		if strings.Contains(upper, fn+"(") {
			c.Aggregates = append(c.Aggregates, fn)
		}
	}

	score := c.JoinCount*10 + c.SubqueryCount*15 + len(c.Aggregates)*5
	if c.HasGroupBy {
		score += 10
	}
	if c.HasOrderBy {
		score += 5
	}
	if c.HasWhere {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	c.Score = score
	return c
}
