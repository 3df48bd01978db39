// Package analytics keeps a local side store of query patterns: what kinds
// of statements each project runs, how complex they are, and which tables
// they touch. It is observational only and never sits on the execution path.
package analytics

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sqlfabric/fabric/pkg/namespace"
)

// timeLayout stores UTC timestamps as text so range predicates compare
// lexicographically.
const timeLayout = "2006-01-02 15:04:05"

// Store is a SQLite-backed pattern log. Writes are best-effort; a failed
// write is logged, never surfaced to the statement path.
type Store struct {
	db        *sql.DB
	extractor namespace.TableExtractor
	logger    *zap.Logger
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS query_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT,
	query_hash TEXT,
	query_type TEXT,
	query_text TEXT,
	execution_time_ms REAL,
	was_successful BOOLEAN,
	error_message TEXT,
	tables_accessed TEXT,
	join_count INTEGER,
	subquery_count INTEGER,
	aggregate_functions TEXT,
	has_where_clause BOOLEAN,
	has_group_by BOOLEAN,
	has_order_by BOOLEAN,
	complexity_score INTEGER,
	timestamp DATETIME
);
CREATE TABLE IF NOT EXISTS table_access (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT,
	table_name TEXT,
	access_type TEXT,
	access_count INTEGER DEFAULT 1,
	last_accessed DATETIME,
	avg_execution_time_ms REAL,
	UNIQUE(project_id, table_name, access_type)
);
CREATE INDEX IF NOT EXISTS idx_query_timestamp ON query_patterns(timestamp);
CREATE INDEX IF NOT EXISTS idx_query_project ON query_patterns(project_id);
CREATE INDEX IF NOT EXISTS idx_query_type ON query_patterns(query_type);
CREATE INDEX IF NOT EXISTS idx_table_project ON table_access(project_id);
CREATE INDEX IF NOT EXISTS idx_table_name ON table_access(table_name);
`

// Open opens (or creates) the analytics database at path.
func Open(path string, extractor namespace.TableExtractor, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	// SQLite allows one writer; serialize access instead of fighting over
	// the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init analytics schema: %w", err)
	}
	return &Store{
		db:        db,
		extractor: extractor,
		logger:    logger.Named("analytics"),
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogQueryPattern records one execution. Errors are logged and swallowed;
// pattern history is never worth failing a statement over.
func (s *Store) LogQueryPattern(ctx context.Context, projectID, query string, executionTime time.Duration, success bool, errorMessage string) {
	queryType := classifyType(query)
	tables := s.extractor.ExtractTableNames(query)
	c := analyzeComplexity(query)
	now := time.Now().UTC().Format(timeLayout)
	ms := float64(executionTime.Microseconds()) / 1000

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_patterns
		(project_id, query_hash, query_type, query_text, execution_time_ms,
		 was_successful, error_message, tables_accessed, join_count, subquery_count,
		 aggregate_functions, has_where_clause, has_group_by, has_order_by,
		 complexity_score, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, hashQuery(query), queryType, query, ms,
		success, errorMessage, strings.Join(tables, ","), c.JoinCount, c.SubqueryCount,
		strings.Join(c.Aggregates, ","), c.HasWhere, c.HasGroupBy, c.HasOrderBy,
		c.Score, now)
	if err != nil {
		s.logger.Warn("query pattern not logged", zap.Error(err))
		return
	}

	if !success {
		return
	}
	for _, table := range tables {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO table_access (project_id, table_name, access_type, access_count, last_accessed, avg_execution_time_ms)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(project_id, table_name, access_type) DO UPDATE SET
				access_count = access_count + 1,
				last_accessed = excluded.last_accessed,
				avg_execution_time_ms = (avg_execution_time_ms * access_count + excluded.avg_execution_time_ms) / (access_count + 1)`,
			projectID, table, queryType, now, ms)
		if err != nil {
			s.logger.Warn("table access not logged",
				zap.String("table", table),
				zap.Error(err))
		}
	}
}

// TypeCount is one row of the query-type distribution.
type TypeCount struct {
	Type    string  `json:"type"`
	Count   int64   `json:"count"`
	AvgTime float64 `json:"avgTime"`
}

// QueryTypeDistribution reports statement counts per type over the window.
// An empty projectID covers all projects.
func (s *Store) QueryTypeDistribution(ctx context.Context, projectID string, window time.Duration) ([]TypeCount, error) {
	query := `
		SELECT query_type, COUNT(*), AVG(execution_time_ms)
		FROM query_patterns
		WHERE timestamp >= ?`
	args := []any{since(window)}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	query += " GROUP BY query_type ORDER BY COUNT(*) DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TypeCount{}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count, &tc.AvgTime); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// TableAccessStat is one row of the most-accessed-tables report.
type TableAccessStat struct {
	Table        string    `json:"table"`
	Accesses     int64     `json:"accesses"`
	AvgTime      float64   `json:"avgTime"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// MostAccessedTables reports the top tables by cumulative access count.
func (s *Store) MostAccessedTables(ctx context.Context, projectID string, limit int) ([]TableAccessStat, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT table_name, SUM(access_count), AVG(avg_execution_time_ms), MAX(last_accessed)
		FROM table_access`
	args := []any{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " GROUP BY table_name ORDER BY SUM(access_count) DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TableAccessStat{}
	for rows.Next() {
		var ta TableAccessStat
		var last string
		if err := rows.Scan(&ta.Table, &ta.Accesses, &ta.AvgTime, &last); err != nil {
			return nil, err
		}
		ta.LastAccessed, _ = time.ParseInLocation(timeLayout, last, time.UTC)
		out = append(out, ta)
	}
	return out, rows.Err()
}

// ComplexityBucket is one level of the complexity distribution.
type ComplexityBucket struct {
	Level   string  `json:"level"`
	Count   int64   `json:"count"`
	AvgTime float64 `json:"avgTime"`
}

// ComplexityDistribution buckets statements by complexity score.
func (s *Store) ComplexityDistribution(ctx context.Context, projectID string, window time.Duration) ([]ComplexityBucket, error) {
	query := `
		SELECT
			CASE
				WHEN complexity_score < 20 THEN 'Simple'
				WHEN complexity_score < 50 THEN 'Medium'
				WHEN complexity_score < 80 THEN 'Complex'
				ELSE 'Very Complex'
			END AS level,
			COUNT(*), AVG(execution_time_ms)
		FROM query_patterns
		WHERE timestamp >= ?`
	args := []any{since(window)}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	query += " GROUP BY level"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ComplexityBucket{}
	for rows.Next() {
		var cb ComplexityBucket
		if err := rows.Scan(&cb.Level, &cb.Count, &cb.AvgTime); err != nil {
			return nil, err
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

// PerformanceStats is the aggregate report over a time window.
type PerformanceStats struct {
	TotalQueries  int64   `json:"totalQueries"`
	SuccessRate   float64 `json:"successRate"`
	AvgTime       float64 `json:"avgTime"`
	AvgJoins      float64 `json:"avgJoins"`
	AvgComplexity float64 `json:"avgComplexity"`
}

// GetPerformanceStats aggregates execution statistics over the window.
func (s *Store) GetPerformanceStats(ctx context.Context, projectID string, window time.Duration) (*PerformanceStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN was_successful THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 0),
			COALESCE(AVG(execution_time_ms), 0),
			COALESCE(AVG(join_count), 0),
			COALESCE(AVG(complexity_score), 0)
		FROM query_patterns
		WHERE timestamp >= ?`
	args := []any{since(window)}
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}

	var stats PerformanceStats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalQueries, &stats.SuccessRate, &stats.AvgTime,
		&stats.AvgJoins, &stats.AvgComplexity)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func since(window time.Duration) string {
	return time.Now().UTC().Add(-window).Format(timeLayout)
}

func hashQuery(query string) string {
	sum := md5.Sum([]byte(query))
	return hex.EncodeToString(sum[:])[:12]
}
