package main

import (
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/analytics"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/handlers"
	"github.com/sqlfabric/fabric/pkg/intent"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/llm"
	"github.com/sqlfabric/fabric/pkg/logging"
	"github.com/sqlfabric/fabric/pkg/namespace"
	"github.com/sqlfabric/fabric/pkg/router"
	"github.com/sqlfabric/fabric/pkg/schema"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("port", cfg.Port),
		zap.String("redis", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		zap.Bool("analytics", cfg.Analytics.Enabled),
		zap.Bool("ai", cfg.AI.IsAvailable()))

	// A failed Redis connection does not stop the process; the store starts
	// unavailable and reconnects lazily.
	kv := kvstore.NewRedis(&cfg.Redis, logger)
	defer func() { _ = kv.Close() }()
	store := contextstore.NewStore(kv, logger)

	extractor := namespace.RegexExtractor{}
	namespacer := namespace.New(extractor, logger)
	recorder := intent.NewRecorder(store, extractor, logger)
	engineRouter := router.New(cfg, namespacer, recorder, logger)
	discovery := schema.NewService(store, engineRouter, logger)

	var patterns handlers.PatternLogger
	var analyticsStore *analytics.Store
	if cfg.Analytics.Enabled {
		analyticsStore, err = analytics.Open(cfg.Analytics.DBPath, extractor, logger)
		if err != nil {
			logger.Warn("analytics disabled", zap.Error(err))
		} else {
			defer func() { _ = analyticsStore.Close() }()
			patterns = analyticsStore
		}
	}

	var generator llm.SQLGenerator
	if cfg.AI.IsAvailable() {
		generator, err = llm.New(&cfg.AI, logger)
		if err != nil {
			logger.Warn("NL-to-SQL generation disabled", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, store, logger).RegisterRoutes(mux)
	handlers.NewProjectsHandler(store, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(store, discovery, logger).RegisterRoutes(mux)
	handlers.NewSessionsHandler(store, logger).RegisterRoutes(mux)
	handlers.NewIntentsHandler(store, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(store, engineRouter, discovery, generator, patterns, logger).RegisterRoutes(mux)
	handlers.NewIngestHandler(store, engineRouter, logger).RegisterRoutes(mux)
	if analyticsStore != nil {
		handlers.NewAnalyticsHandler(analyticsStore, logger).RegisterRoutes(mux)
	}

	addr := fmt.Sprintf("%s:%s", cfg.BindAddr, cfg.Port)
	logger.Info("starting fabric", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
