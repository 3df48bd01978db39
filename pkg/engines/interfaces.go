// Package engines wraps the external SQL engines behind a narrow execution
// and introspection contract. The core always passes already-rewritten SQL.
package engines

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sqlfabric/fabric/pkg/models"
)

// Result is the uniform execution outcome: a tabular result for reads, a
// row count for writes and DDL.
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rowsAffected"`
}

// Engine executes statements against one physical backend. Implementations
// own a single connection opened for the call and must be closed when done;
// there is no pooling at this layer.
type Engine interface {
	// Execute runs a statement. Reads return columns and rows; writes and
	// DDL return the affected row count.
	Execute(ctx context.Context, statement string) (*Result, error)

	// ListTables returns the physical table names visible to the engine.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns column descriptions for a physical table.
	DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error)

	// Close releases the connection.
	Close() error
}

// readVerbs open statements that produce a rowset.
var readVerbs = []string{"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH"}

// isRead reports whether the statement should be run as a query rather than
// an exec.
func isRead(statement string) bool {
	upper := strings.ToUpper(strings.TrimSpace(statement))
	for _, verb := range readVerbs {
		if strings.HasPrefix(upper, verb+" ") || upper == verb {
			return true
		}
	}
	return false
}

// collectRows drains a rowset into a Result.
func collectRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Drivers hand back []byte for text columns; decode for JSON.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}
