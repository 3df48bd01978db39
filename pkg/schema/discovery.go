// Package schema discovers a project's tables from its engine and maintains
// the cached snapshot in the context store.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/namespace"
	"github.com/sqlfabric/fabric/pkg/router"
)

// EngineOpener yields the engine a project's statements route to. Satisfied
// by router.Router.
type EngineOpener interface {
	OpenForProject(project *models.Project, req router.Request) (engines.Engine, error)
}

// Service runs discovery against the project's routed engine and caches the
// result. Only tables carrying the project's namespace prefix are visible;
// everything else in the shared database belongs to other tenants.
type Service struct {
	store  *contextstore.Store
	router EngineOpener
	logger *zap.Logger
}

// NewService creates a discovery Service.
func NewService(store *contextstore.Store, engineRouter EngineOpener, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		router: engineRouter,
		logger: logger.Named("schema"),
	}
}

// Discover introspects the project's engine, filters to the project's own
// tables, and overwrites the cached snapshot. A ttl of zero uses the default
// schema lifetime.
func (s *Service) Discover(ctx context.Context, project *models.Project, ttl time.Duration) (*models.SchemaSnapshot, error) {
	engine, err := s.router.OpenForProject(project, router.Request{Catalog: project.Database})
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	physical, err := engine.ListTables(ctx)
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("list tables: %w", err))
	}

	prefix := namespace.Prefix(project.ID)
	snapshot := &models.SchemaSnapshot{
		Tables:     []models.TableInfo{},
		Discovered: true,
		Dialect:    project.Dialect,
		Database:   project.Database,
	}
	for _, name := range physical {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		columns, err := engine.DescribeTable(ctx, name)
		if err != nil {
			return nil, apperrors.Upstream(fmt.Errorf("describe %s: %w", name, err))
		}
		snapshot.Tables = append(snapshot.Tables, models.TableInfo{
			DisplayName:  namespace.RemovePrefix(name, project.ID),
			PhysicalName: name,
			Columns:      columns,
		})
	}

	if err := s.store.SaveSchema(ctx, project.ID, snapshot, ttl); err != nil {
		// Discovery itself succeeded; a degraded store only costs the cache.
		s.logger.Warn("schema snapshot not cached",
			zap.String("project_id", project.ID),
			zap.Error(err))
	}

	s.logger.Info("schema discovered",
		zap.String("project_id", project.ID),
		zap.Int("tables", len(snapshot.Tables)))
	return snapshot, nil
}

// CachedOrDiscover serves the cached snapshot when present and falls back to
// a live discovery when the cache is empty or expired. The bool reports
// whether the snapshot came from cache.
func (s *Service) CachedOrDiscover(ctx context.Context, project *models.Project) (*models.SchemaSnapshot, bool, error) {
	cached, err := s.store.GetSchema(ctx, project.ID)
	if err == nil {
		return cached, true, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrStoreUnavailable) {
		return nil, false, err
	}

	snapshot, err := s.Discover(ctx, project, 0)
	if err != nil {
		return nil, false, err
	}
	return snapshot, false, nil
}
