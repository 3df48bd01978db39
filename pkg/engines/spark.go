package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

// Spark executes statements through an HTTP sidecar that submits them as
// batch jobs. It is the target for large ingests and long-running rewrites.
type Spark struct {
	baseURL string
	client  *http.Client
}

var _ Engine = (*Spark)(nil)

// NewSpark builds a client for the batch sidecar.
func NewSpark(cfg *config.SparkConfig) *Spark {
	return &Spark{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

type sparkRequest struct {
	Query string `json:"query"`
}

type sparkResponse struct {
	Columns []string `json:"columns"`
	Results [][]any  `json:"results"`
	Error   string   `json:"error"`
}

func (s *Spark) Execute(ctx context.Context, statement string) (*Result, error) {
	resp, err := s.post(ctx, "/query", sparkRequest{Query: statement})
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: resp.Columns, Rows: resp.Results}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}
	if !isRead(statement) {
		result.RowsAffected = int64(len(result.Rows))
		result.Columns, result.Rows = nil, nil
	}
	return result, nil
}

func (s *Spark) ListTables(ctx context.Context) ([]string, error) {
	resp, err := s.post(ctx, "/query", sparkRequest{Query: "SHOW TABLES"})
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, row := range resp.Results {
		// SHOW TABLES emits (namespace, tableName, isTemporary).
		if len(row) < 2 {
			continue
		}
		if name, ok := row[1].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

func (s *Spark) DescribeTable(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	resp, err := s.post(ctx, "/query", sparkRequest{Query: fmt.Sprintf("DESCRIBE TABLE %s", table)})
	if err != nil {
		return nil, err
	}
	var columns []models.ColumnInfo
	for _, row := range resp.Results {
		if len(row) < 2 {
			continue
		}
		name, _ := row[0].(string)
		typ, _ := row[1].(string)
		if name == "" || name[0] == '#' {
			// DESCRIBE appends a "# Partitioning" section.
			break
		}
		columns = append(columns, models.ColumnInfo{Name: name, Type: typ, Nullable: true})
	}
	return columns, nil
}

func (s *Spark) Close() error { return nil }

func (s *Spark) post(ctx context.Context, path string, body sparkRequest) (*sparkResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Upstream(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Upstream(err)
	}

	var decoded sparkResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, truncate(data, 200)))
	}
	if decoded.Error != "" {
		return nil, apperrors.Upstream(fmt.Errorf("spark job failed: %s", decoded.Error))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Upstream(fmt.Errorf("sidecar returned %d", resp.StatusCode))
	}
	return &decoded, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
