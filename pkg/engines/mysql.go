package engines

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

// MySQL is the row-store engine. One instance wraps one connection opened
// for the duration of a single call.
type MySQL struct {
	db       *sql.DB
	database string
}

var _ Engine = (*MySQL)(nil)

// OpenMySQL opens a connection to the configured MySQL server. database
// overrides the configured default when non-empty.
func OpenMySQL(cfg *config.MySQLConfig, database string) (*MySQL, error) {
	if database == "" {
		database = cfg.Database
	}
	db, err := sql.Open("mysql", cfg.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &MySQL{db: db, database: database}, nil
}

func (m *MySQL) Execute(ctx context.Context, statement string) (*Result, error) {
	if isRead(statement) {
		rows, err := m.db.QueryContext(ctx, statement)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectRows(rows)
	}

	res, err := m.db.ExecContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	return &Result{RowsAffected: affected}, nil
}

func (m *MySQL) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = ? ORDER BY table_name`, m.database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (m *MySQL) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT column_name, column_type, is_nullable, COALESCE(column_default, ''), extra
		 FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`, m.database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Default, &col.Extra); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
