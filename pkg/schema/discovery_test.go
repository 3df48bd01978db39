package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/router"
)

type fakeEngine struct {
	tables  []string
	columns map[string][]models.ColumnInfo
	listErr error
	closed  bool
}

func (f *fakeEngine) Execute(context.Context, string) (*engines.Result, error) { return nil, nil }

func (f *fakeEngine) ListTables(context.Context) ([]string, error) {
	return f.tables, f.listErr
}

func (f *fakeEngine) DescribeTable(_ context.Context, table string) ([]models.ColumnInfo, error) {
	return f.columns[table], nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	engine *fakeEngine
	err    error
}

func (f *fakeOpener) OpenForProject(*models.Project, router.Request) (engines.Engine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.engine, nil
}

func newTestService(t *testing.T, engine *fakeEngine) (*Service, *contextstore.Store) {
	t.Helper()
	store := contextstore.NewStore(kvstore.NewMemory(), zap.NewNop())
	return NewService(store, &fakeOpener{engine: engine}, zap.NewNop()), store
}

func testProject() *models.Project {
	return &models.Project{
		ID:       "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		Name:     "Test",
		Dialect:  models.DialectMySQL,
		Database: "sales",
	}
}

func TestDiscoverFiltersToProjectTables(t *testing.T) {
	engine := &fakeEngine{
		tables: []string{
			"proj_a1b2c3d4_orders",
			"proj_a1b2c3d4_users",
			"proj_ffffffff_orders",
			"unrelated_table",
		},
		columns: map[string][]models.ColumnInfo{
			"proj_a1b2c3d4_orders": {{Name: "id", Type: "bigint"}},
			"proj_a1b2c3d4_users":  {{Name: "email", Type: "varchar(255)", Nullable: true}},
		},
	}
	svc, store := newTestService(t, engine)
	project := testProject()

	snapshot, err := svc.Discover(context.Background(), project, 0)
	require.NoError(t, err)
	assert.True(t, engine.closed)
	assert.True(t, snapshot.Discovered)
	assert.Equal(t, models.DialectMySQL, snapshot.Dialect)
	require.Len(t, snapshot.Tables, 2)
	assert.Equal(t, "orders", snapshot.Tables[0].DisplayName)
	assert.Equal(t, "proj_a1b2c3d4_orders", snapshot.Tables[0].PhysicalName)
	assert.Equal(t, "users", snapshot.Tables[1].DisplayName)

	cached, err := store.GetSchema(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Len(t, cached.Tables, 2)
	assert.False(t, cached.LastSynced.IsZero())
}

func TestDiscoverEmptyProject(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{tables: []string{"someone_elses_table"}})

	snapshot, err := svc.Discover(context.Background(), testProject(), 0)
	require.NoError(t, err)
	assert.NotNil(t, snapshot.Tables)
	assert.Empty(t, snapshot.Tables)
}

func TestDiscoverEngineFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{listErr: errors.New("connection refused")})

	_, err := svc.Discover(context.Background(), testProject(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstreamEngine))
}

func TestCachedOrDiscoverPrefersCache(t *testing.T) {
	engine := &fakeEngine{tables: []string{"proj_a1b2c3d4_orders"}, columns: map[string][]models.ColumnInfo{}}
	svc, store := newTestService(t, engine)
	project := testProject()

	require.NoError(t, store.SaveSchema(context.Background(), project.ID, &models.SchemaSnapshot{
		Tables:     []models.TableInfo{{DisplayName: "cached"}},
		Discovered: true,
	}, 0))

	snapshot, fromCache, err := svc.CachedOrDiscover(context.Background(), project)
	require.NoError(t, err)
	assert.True(t, fromCache)
	require.Len(t, snapshot.Tables, 1)
	assert.Equal(t, "cached", snapshot.Tables[0].DisplayName)
	assert.False(t, engine.closed, "engine must not be opened on cache hit")
}

func TestCachedOrDiscoverFallsBackToDiscovery(t *testing.T) {
	engine := &fakeEngine{
		tables:  []string{"proj_a1b2c3d4_orders"},
		columns: map[string][]models.ColumnInfo{"proj_a1b2c3d4_orders": {{Name: "id"}}},
	}
	svc, _ := newTestService(t, engine)

	snapshot, fromCache, err := svc.CachedOrDiscover(context.Background(), testProject())
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, snapshot.Tables, 1)
}
