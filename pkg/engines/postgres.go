package engines

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

// Postgres is the second relational engine.
type Postgres struct {
	db *sql.DB
}

var _ Engine = (*Postgres)(nil)

// OpenPostgres opens a connection to the configured PostgreSQL server.
func OpenPostgres(cfg *config.PostgresConfig, database string) (*Postgres, error) {
	db, err := sql.Open("pgx", cfg.ConnectionString(database))
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Postgres{db: db}, nil
}

func (p *Postgres) Execute(ctx context.Context, statement string) (*Result, error) {
	if isRead(statement) {
		rows, err := p.db.QueryContext(ctx, statement)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectRows(rows)
	}

	res, err := p.db.ExecContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	return &Result{RowsAffected: affected}, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
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

func (p *Postgres) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Default); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
