// Package router selects the physical engine a tenant's statement lands on
// and drives it through the rewrite/execute/record pipeline.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/intent"
	"github.com/sqlfabric/fabric/pkg/logging"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/namespace"
)

// Request carries one statement plus the caller's routing hints.
type Request struct {
	SQL          string
	UserQuestion string
	// Params are caller-supplied values screened for injection before any
	// engine sees the statement.
	Params map[string]any
	// Catalog and Schema steer federated execution; ignored for
	// single-engine dialects.
	Catalog string
	Schema  string
	// Batch forces the distributed batch sidecar regardless of the
	// project's dialect. Set for large ingests.
	Batch bool
}

// IngestRoute is the destination for a bulk upload.
type IngestRoute string

const (
	// IngestRouteRowStore loads through the project's row engine.
	IngestRouteRowStore IngestRoute = "row_store"
	// IngestRouteBatch loads through the distributed batch sidecar.
	IngestRouteBatch IngestRoute = "batch"
)

// EngineOpener opens the physical engine for a routed request. Swappable in
// tests.
type EngineOpener func(project *models.Project, req Request) (engines.Engine, error)

// Router owns no persistent state; it is decision logic over project
// metadata and statement shape. Engines are opened per call and closed when
// the call completes.
type Router struct {
	cfg        *config.Config
	namespacer *namespace.Namespacer
	recorder   *intent.Recorder
	open       EngineOpener
	logger     *zap.Logger
}

// New creates a Router using the real engine constructors.
func New(cfg *config.Config, namespacer *namespace.Namespacer, recorder *intent.Recorder, logger *zap.Logger) *Router {
	r := &Router{
		cfg:        cfg,
		namespacer: namespacer,
		recorder:   recorder,
		logger:     logger.Named("router"),
	}
	r.open = r.openEngine
	return r
}

// Execute rewrites the statement for the project's namespace, runs it on the
// routed engine, and records the outcome as a query intent. Engine failures
// are recorded as failed intents before they surface.
func (r *Router) Execute(ctx context.Context, project *models.Project, req Request) (*engines.Result, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, apperrors.Validation("sql is required")
	}
	if err := checkParameters(req.Params); err != nil {
		return nil, err
	}

	rewritten := r.namespacer.Rewrite(req.SQL, project.ID)

	engine, err := r.open(project, req)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	start := time.Now()
	result, execErr := engine.Execute(ctx, rewritten)
	duration := time.Since(start)

	outcome := intent.Outcome{
		SQL:          rewritten,
		UserQuestion: req.UserQuestion,
		Duration:     duration,
		Success:      execErr == nil,
	}
	if execErr != nil {
		outcome.ErrorMessage = logging.SanitizeError(execErr)
	}
	r.recorder.RecordOutcome(ctx, project.ID, outcome)

	if execErr != nil {
		r.logger.Warn("statement execution failed",
			zap.String("project_id", project.ID),
			zap.String("dialect", string(project.Dialect)),
			zap.Duration("duration", duration),
			zap.String("error", logging.SanitizeError(execErr)))
		return nil, apperrors.Upstream(execErr)
	}

	r.logger.Debug("statement executed",
		zap.String("project_id", project.ID),
		zap.String("dialect", string(project.Dialect)),
		zap.Duration("duration", duration))
	return result, nil
}

// RouteIngest picks the load path for an upload of the given size. Payloads
// at or above the configured threshold go to the batch sidecar.
func (r *Router) RouteIngest(payloadBytes int64) IngestRoute {
	if payloadBytes >= r.cfg.Ingest.BatchThresholdBytes {
		return IngestRouteBatch
	}
	return IngestRouteRowStore
}

// OpenForProject opens the engine a project's statements route to, for
// callers that need introspection rather than execution.
func (r *Router) OpenForProject(project *models.Project, req Request) (engines.Engine, error) {
	return r.open(project, req)
}

func (r *Router) openEngine(project *models.Project, req Request) (engines.Engine, error) {
	if req.Batch {
		return engines.NewSpark(&r.cfg.Spark), nil
	}

	dialect, _ := project.Dialect.Canonical()
	switch dialect {
	case models.DialectMySQL:
		r.logOpen(dialect, r.cfg.MySQL.DSN(project.Database))
		return engines.OpenMySQL(&r.cfg.MySQL, project.Database)
	case models.DialectPostgres:
		r.logOpen(dialect, r.cfg.Postgres.ConnectionString(project.Database))
		return engines.OpenPostgres(&r.cfg.Postgres, project.Database)
	case models.DialectTrino:
		if req.Catalog == "" && !r.hasQualifiedTargets(req.SQL, project.ID) {
			return nil, apperrors.Validation("federated execution requires catalog and schema parameters or fully qualified table names")
		}
		r.logOpen(dialect, r.cfg.Trino.DSN(req.Catalog, req.Schema))
		return engines.OpenTrino(&r.cfg.Trino, req.Catalog, req.Schema)
	case models.DialectSpark:
		return engines.NewSpark(&r.cfg.Spark), nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedDialect, project.Dialect)
	}
}

// logOpen records the engine target with credentials stripped from the DSN.
func (r *Router) logOpen(dialect models.Dialect, dsn string) {
	r.logger.Debug("opening engine",
		zap.String("dialect", string(dialect)),
		zap.String("dsn", logging.SanitizeDSN(dsn)))
}

// hasQualifiedTargets reports whether every referenced table carries a
// catalog.schema.table qualification, which lets a federated statement run
// without session catalog parameters.
func (r *Router) hasQualifiedTargets(sql, projectID string) bool {
	tables := r.namespacer.ExtractDisplayTables(sql, projectID)
	if len(tables) == 0 {
		return false
	}
	for _, table := range tables {
		if strings.Count(table, ".") < 2 {
			return false
		}
	}
	return true
}
