package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/intent"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/namespace"
)

type fakeEngine struct {
	executed []string
	result   *engines.Result
	err      error
	closed   bool
}

func (f *fakeEngine) Execute(_ context.Context, statement string) (*engines.Result, error) {
	f.executed = append(f.executed, statement)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) ListTables(context.Context) ([]string, error) { return nil, nil }

func (f *fakeEngine) DescribeTable(context.Context, string) ([]models.ColumnInfo, error) {
	return nil, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func newTestRouter(t *testing.T, engine *fakeEngine) (*Router, *contextstore.Store) {
	t.Helper()
	logger := zap.NewNop()
	kv := kvstore.NewMemory()
	store := contextstore.NewStore(kv, logger)
	namespacer := namespace.New(namespace.RegexExtractor{}, logger)
	recorder := intent.NewRecorder(store, namespace.RegexExtractor{}, logger)

	cfg := &config.Config{
		Ingest: config.IngestConfig{BatchThresholdBytes: 1024},
	}
	r := New(cfg, namespacer, recorder, logger)
	if engine != nil {
		r.open = func(*models.Project, Request) (engines.Engine, error) {
			return engine, nil
		}
	}
	return r, store
}

func testProject(dialect models.Dialect) *models.Project {
	return &models.Project{
		ID:       "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		Name:     "Test",
		Dialect:  dialect,
		Database: "sales",
	}
}

func TestExecuteRewritesBeforeEngine(t *testing.T) {
	engine := &fakeEngine{result: &engines.Result{Columns: []string{"id"}, Rows: [][]any{{1}}}}
	r, _ := newTestRouter(t, engine)

	result, err := r.Execute(context.Background(), testProject(models.DialectMySQL), Request{
		SQL: "SELECT * FROM orders",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, result.Columns)
	require.Len(t, engine.executed, 1)
	assert.Equal(t, "SELECT * FROM proj_a1b2c3d4_orders", engine.executed[0])
	assert.True(t, engine.closed)
}

func TestExecuteRecordsIntent(t *testing.T) {
	engine := &fakeEngine{result: &engines.Result{}}
	r, store := newTestRouter(t, engine)
	project := testProject(models.DialectMySQL)

	_, err := r.Execute(context.Background(), project, Request{
		SQL:          "SELECT * FROM orders",
		UserQuestion: "how many orders",
	})
	require.NoError(t, err)

	intents, err := store.GetQueryIntents(context.Background(), project.ID, 10)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.True(t, intents[0].Success)
	assert.Equal(t, "how many orders", intents[0].UserQuestion)
	assert.Contains(t, intents[0].SQL, "proj_a1b2c3d4_orders")
}

func TestExecuteUpstreamFailureRecordedAsFailedIntent(t *testing.T) {
	engine := &fakeEngine{err: errors.New("connection refused")}
	r, store := newTestRouter(t, engine)
	project := testProject(models.DialectMySQL)

	_, err := r.Execute(context.Background(), project, Request{SQL: "SELECT * FROM orders"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstreamEngine))
	assert.True(t, engine.closed)

	intents, err := store.GetQueryIntents(context.Background(), project.ID, 10)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.False(t, intents[0].Success)
	assert.Contains(t, intents[0].ErrorMessage, "connection refused")
}

func TestExecuteRejectsInjectedParameter(t *testing.T) {
	engine := &fakeEngine{result: &engines.Result{}}
	r, _ := newTestRouter(t, engine)

	_, err := r.Execute(context.Background(), testProject(models.DialectMySQL), Request{
		SQL:    "SELECT * FROM orders WHERE region = :region",
		Params: map[string]any{"region": "x' OR '1'='1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, engine.executed, "statement must not reach the engine")
}

func TestExecuteAllowsNonStringParameters(t *testing.T) {
	engine := &fakeEngine{result: &engines.Result{}}
	r, _ := newTestRouter(t, engine)

	_, err := r.Execute(context.Background(), testProject(models.DialectMySQL), Request{
		SQL:    "SELECT * FROM orders WHERE id = :id",
		Params: map[string]any{"id": 42, "active": true},
	})
	require.NoError(t, err)
}

func TestExecuteEmptySQL(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})

	_, err := r.Execute(context.Background(), testProject(models.DialectMySQL), Request{SQL: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestOpenEngineUnsupportedDialect(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	_, err := r.Execute(context.Background(), testProject(models.Dialect("oracle")), Request{
		SQL: "SELECT 1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedDialect))
}

func TestOpenEngineCanonicalDialects(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.cfg.MySQL = config.MySQLConfig{Host: "127.0.0.1", Port: 3306, User: "root"}
	r.cfg.Postgres = config.PostgresConfig{Host: "127.0.0.1", Port: 5432, User: "admin", SSLMode: "disable"}
	r.cfg.Trino = config.TrinoConfig{Host: "127.0.0.1", Port: 8080, User: "fabric"}
	r.cfg.Spark = config.SparkConfig{BaseURL: "http://127.0.0.1:7077", TimeoutSeconds: 1}

	// sql.Open validates the DSN without connecting, so every branch is
	// reachable without a live backend.
	cases := []struct {
		dialect models.Dialect
		req     Request
		want    any
	}{
		{models.DialectMySQL, Request{SQL: "SELECT 1"}, &engines.MySQL{}},
		{models.DialectPostgres, Request{SQL: "SELECT 1"}, &engines.Postgres{}},
		{models.DialectTrino, Request{SQL: "SELECT 1", Catalog: "hive"}, &engines.Trino{}},
		{models.DialectSpark, Request{SQL: "SELECT 1"}, &engines.Spark{}},
		{models.DialectLegacyPresto, Request{SQL: "SELECT 1", Catalog: "hive"}, &engines.Trino{}},
		{models.DialectLegacySparkSQL, Request{SQL: "SELECT 1"}, &engines.Spark{}},
	}
	for _, tc := range cases {
		t.Run(string(tc.dialect), func(t *testing.T) {
			engine, err := r.openEngine(testProject(tc.dialect), tc.req)
			require.NoError(t, err)
			assert.IsType(t, tc.want, engine)
			require.NoError(t, engine.Close())
		})
	}
}

func TestOpenEngineBatchOverridesDialect(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.cfg.Spark = config.SparkConfig{BaseURL: "http://127.0.0.1:7077", TimeoutSeconds: 1}

	engine, err := r.openEngine(testProject(models.DialectMySQL), Request{SQL: "INSERT INTO t VALUES (1)", Batch: true})
	require.NoError(t, err)
	assert.IsType(t, &engines.Spark{}, engine)
	require.NoError(t, engine.Close())
}

func TestTrinoRequiresCatalogOrQualifiedNames(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	project := testProject(models.DialectTrino)

	_, err := r.Execute(context.Background(), project, Request{
		SQL: "SELECT * FROM orders",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestHasQualifiedTargets(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	projectID := "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"fully qualified", "SELECT * FROM mysql.sales.orders", true},
		{"all targets qualified", "SELECT * FROM mysql.sales.orders o JOIN postgres.crm.users u ON o.uid = u.id", true},
		{"bare name", "SELECT * FROM orders", false},
		{"mixed", "SELECT * FROM mysql.sales.orders JOIN users ON 1=1", false},
		{"schema only", "SELECT * FROM sales.orders", false},
		{"no tables", "SELECT 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.hasQualifiedTargets(tt.sql, projectID))
		})
	}
}

func TestRouteIngest(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, IngestRouteRowStore, r.RouteIngest(0))
	assert.Equal(t, IngestRouteRowStore, r.RouteIngest(1023))
	assert.Equal(t, IngestRouteBatch, r.RouteIngest(1024))
	assert.Equal(t, IngestRouteBatch, r.RouteIngest(10*1024*1024))
}

func TestDDLInvalidatesSchema(t *testing.T) {
	engine := &fakeEngine{result: &engines.Result{RowsAffected: 0}}
	r, store := newTestRouter(t, engine)
	project := testProject(models.DialectMySQL)

	require.NoError(t, store.SaveSchema(context.Background(), project.ID, &models.SchemaSnapshot{
		Discovered: true,
	}, 0))

	_, err := r.Execute(context.Background(), project, Request{
		SQL: "CREATE TABLE widgets (id INT)",
	})
	require.NoError(t, err)

	_, err = store.GetSchema(context.Background(), project.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
