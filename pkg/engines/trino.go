package engines

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

// Trino is the federated query layer, used for cross-engine analytics.
// Statements either target the session catalog/schema or carry fully
// qualified multi-part identifiers.
type Trino struct {
	db     *sql.DB
	schema string
}

var _ Engine = (*Trino)(nil)

// OpenTrino opens a connection with the given session catalog and schema.
func OpenTrino(cfg *config.TrinoConfig, catalog, schema string) (*Trino, error) {
	if schema == "" {
		schema = cfg.Schema
	}
	db, err := sql.Open("trino", cfg.DSN(catalog, schema))
	if err != nil {
		return nil, fmt.Errorf("open trino connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Trino{db: db, schema: schema}, nil
}

func (t *Trino) Execute(ctx context.Context, statement string) (*Result, error) {
	// Trino streams every statement through the query API; DDL and DML
	// produce a rowset too, so everything goes through Query.
	rows, err := t.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	if !isRead(statement) {
		result.RowsAffected = int64(len(result.Rows))
		result.Columns, result.Rows = nil, nil
	}
	return result, nil
}

func (t *Trino) ListTables(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SHOW TABLES FROM %s", t.schema))
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

func (t *Trino) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`, t.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var col models.ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (t *Trino) Close() error {
	return t.db.Close()
}
