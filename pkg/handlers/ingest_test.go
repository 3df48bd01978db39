package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/router"
)

func newIngestMux(t *testing.T, rt *fakeRouter) (*http.ServeMux, *contextstore.Store) {
	t.Helper()
	store, _ := newTestStore(t)
	seedProject(t, store)
	mux := http.NewServeMux()
	NewIngestHandler(store, rt, zap.NewNop()).RegisterRoutes(mux)
	return mux, store
}

func uploadCSV(t *testing.T, mux *http.ServeMux, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/projects/%s/ingest", testProjectID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestIngestCreatesAndInserts(t *testing.T) {
	rt := &fakeRouter{}
	mux, _ := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "Monthly Sales.csv",
		"Order ID,Amount\n1,10.50\n2,20.00\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Table string `json:"table"`
		Rows  int    `json:"rows"`
		Route string `json:"route"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "monthly_sales", body.Table)
	assert.Equal(t, 2, body.Rows)
	assert.Equal(t, string(router.IngestRouteRowStore), body.Route)

	require.Len(t, rt.executed, 2)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS monthly_sales (order_id TEXT, amount TEXT)", rt.executed[0].SQL)
	assert.False(t, rt.executed[0].Batch)
	assert.Contains(t, rt.executed[1].SQL, "INSERT INTO monthly_sales (order_id, amount) VALUES ('1', '10.50'), ('2', '20.00')")
}

func TestIngestEscapesQuotes(t *testing.T) {
	rt := &fakeRouter{}
	mux, _ := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "notes.csv", "note\nit's fine\n")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rt.executed, 2)
	assert.Contains(t, rt.executed[1].SQL, "('it''s fine')")
}

func TestIngestRoutesLargePayloadToBatch(t *testing.T) {
	rt := &fakeRouter{threshold: 10}
	mux, _ := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "big.csv", "id\n1\n2\n3\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Route string `json:"route"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, string(router.IngestRouteBatch), body.Route)
	for _, req := range rt.executed {
		assert.True(t, req.Batch)
	}
}

func TestIngestBatchesLargeRowCounts(t *testing.T) {
	rt := &fakeRouter{}
	mux, _ := newIngestMux(t, rt)

	var sb strings.Builder
	sb.WriteString("id\n")
	for i := 0; i < insertBatchRows+1; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	rec := uploadCSV(t, mux, "many.csv", sb.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rows int `json:"rows"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, insertBatchRows+1, body.Rows)
	// One CREATE plus two INSERT batches.
	assert.Len(t, rt.executed, 3)
}

func TestIngestRecordsUploadHistory(t *testing.T) {
	rt := &fakeRouter{}
	mux, store := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "sales.csv", "id\n1\n")
	require.Equal(t, http.StatusOK, rec.Code)

	project, err := store.GetProjectMetadata(context.Background(), testProjectID)
	require.NoError(t, err)
	uploads, ok := project.Metadata["csv_uploads"].([]any)
	require.True(t, ok, "metadata: %#v", project.Metadata)
	require.Len(t, uploads, 1)
	entry := uploads[0].(map[string]any)
	assert.Equal(t, "sales.csv", entry["filename"])
	assert.Equal(t, "sales", entry["table"])
}

func TestIngestRejectsMalformedCSV(t *testing.T) {
	rt := &fakeRouter{}
	mux, _ := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "bad.csv", "a,b\n1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRejectsUnusableFilename(t *testing.T) {
	rt := &fakeRouter{}
	mux, _ := newIngestMux(t, rt)

	rec := uploadCSV(t, mux, "***.csv", "id\n1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestUnknownProject(t *testing.T) {
	store, _ := newTestStore(t)
	mux := http.NewServeMux()
	NewIngestHandler(store, &fakeRouter{}, zap.NewNop()).RegisterRoutes(mux)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "x.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("id\n1\n"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/nobody/ingest", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableNameFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"orders.csv", "orders", false},
		{"Monthly Sales.csv", "monthly_sales", false},
		{"2024-data.csv", "t_2024_data", false},
		{"weird--name__.csv", "weird_name", false},
		{"../../etc/passwd", "passwd", false},
		{"***.csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := tableNameFromFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
