package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/router"
)

const testProjectID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

func newTestStore(t *testing.T) (*contextstore.Store, *kvstore.Memory) {
	t.Helper()
	kv := kvstore.NewMemory()
	return contextstore.NewStore(kv, zap.NewNop()), kv
}

func seedProject(t *testing.T, store *contextstore.Store) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:       testProjectID,
		Name:     "Test Project",
		Dialect:  models.DialectMySQL,
		Database: "sales",
	}
	require.NoError(t, store.SaveProjectMetadata(context.Background(), project))
	return project
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// fakeRouter satisfies StatementRouter and IngestRouter.
type fakeRouter struct {
	executed  []router.Request
	result    *engines.Result
	err       error
	threshold int64
}

func (f *fakeRouter) Execute(_ context.Context, _ *models.Project, req router.Request) (*engines.Result, error) {
	f.executed = append(f.executed, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &engines.Result{}, nil
}

func (f *fakeRouter) RouteIngest(payloadBytes int64) router.IngestRoute {
	if f.threshold > 0 && payloadBytes >= f.threshold {
		return router.IngestRouteBatch
	}
	return router.IngestRouteRowStore
}

// fakePatterns satisfies PatternLogger.
type fakePatterns struct {
	logged []patternEntry
}

type patternEntry struct {
	ProjectID string
	Query     string
	Success   bool
	Error     string
}

func (f *fakePatterns) LogQueryPattern(_ context.Context, projectID, query string, _ time.Duration, success bool, errorMessage string) {
	f.logged = append(f.logged, patternEntry{
		ProjectID: projectID,
		Query:     query,
		Success:   success,
		Error:     errorMessage,
	})
}
