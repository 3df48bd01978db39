package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/router"
	"github.com/sqlfabric/fabric/pkg/schema"
)

type discoveryEngine struct {
	tables  []string
	columns map[string][]models.ColumnInfo
	opens   int
}

func (d *discoveryEngine) Execute(context.Context, string) (*engines.Result, error) { return nil, nil }
func (d *discoveryEngine) ListTables(context.Context) ([]string, error)             { return d.tables, nil }
func (d *discoveryEngine) DescribeTable(_ context.Context, table string) ([]models.ColumnInfo, error) {
	return d.columns[table], nil
}
func (d *discoveryEngine) Close() error { return nil }

type discoveryOpener struct {
	engine *discoveryEngine
}

func (d *discoveryOpener) OpenForProject(*models.Project, router.Request) (engines.Engine, error) {
	d.engine.opens++
	return d.engine, nil
}

func newSchemaMux(t *testing.T, engine *discoveryEngine) (*http.ServeMux, *contextstore.Store, *kvstore.Memory) {
	t.Helper()
	store, kv := newTestStore(t)
	seedProject(t, store)
	discovery := schema.NewService(store, &discoveryOpener{engine: engine}, zap.NewNop())
	mux := http.NewServeMux()
	NewSchemaHandler(store, discovery, zap.NewNop()).RegisterRoutes(mux)
	return mux, store, kv
}

func schemaURL() string {
	return fmt.Sprintf("/api/projects/%s/schema", testProjectID)
}

func TestSchemaGetDiscoversOnMiss(t *testing.T) {
	engine := &discoveryEngine{
		tables:  []string{"proj_a1b2c3d4_orders"},
		columns: map[string][]models.ColumnInfo{"proj_a1b2c3d4_orders": {{Name: "id", Type: "bigint"}}},
	}
	mux, _, _ := newSchemaMux(t, engine)

	rec := doJSON(t, mux, http.MethodGet, schemaURL(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Schema models.SchemaSnapshot `json:"schema"`
		Cached bool                  `json:"cached"`
	}
	decodeBody(t, rec, &body)
	assert.False(t, body.Cached)
	require.Len(t, body.Schema.Tables, 1)
	assert.Equal(t, "orders", body.Schema.Tables[0].DisplayName)

	// Second read is served from cache.
	rec = doJSON(t, mux, http.MethodGet, schemaURL(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.True(t, body.Cached)
	assert.Equal(t, 1, engine.opens)
}

func TestSchemaGetRefreshForcesDiscovery(t *testing.T) {
	engine := &discoveryEngine{tables: []string{}}
	mux, store, _ := newSchemaMux(t, engine)

	require.NoError(t, store.SaveSchema(context.Background(), testProjectID,
		&models.SchemaSnapshot{Discovered: true}, 0))

	rec := doJSON(t, mux, http.MethodGet, schemaURL()+"?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, engine.opens)
}

func TestSchemaPutWithTTLOverride(t *testing.T) {
	mux, store, kv := newSchemaMux(t, &discoveryEngine{})

	rec := doJSON(t, mux, http.MethodPut, schemaURL()+"?ttl=60", models.SchemaSnapshot{
		Tables:     []models.TableInfo{{DisplayName: "orders", PhysicalName: "proj_a1b2c3d4_orders"}},
		Discovered: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snapshot, err := store.GetSchema(context.Background(), testProjectID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Tables, 1)

	ttl, err := kv.TTL(context.Background(), fmt.Sprintf("project:%s:schema", testProjectID))
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 60*time.Second)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSchemaPutRejectsBadTTL(t *testing.T) {
	mux, _, _ := newSchemaMux(t, &discoveryEngine{})

	rec := doJSON(t, mux, http.MethodPut, schemaURL()+"?ttl=zero", models.SchemaSnapshot{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchemaInvalidate(t *testing.T) {
	mux, store, _ := newSchemaMux(t, &discoveryEngine{})

	require.NoError(t, store.SaveSchema(context.Background(), testProjectID,
		&models.SchemaSnapshot{Discovered: true}, 0))

	rec := doJSON(t, mux, http.MethodDelete, schemaURL(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := store.GetSchema(context.Background(), testProjectID)
	require.Error(t, err)
}
