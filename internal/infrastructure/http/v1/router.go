// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/tx"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/fixture"
	"seedgraph/internal/infrastructure/http/v1/handlers"
	"seedgraph/internal/infrastructure/http/v1/middleware"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Schema lists the types clients may address by name
	Schema *metadata.Schema

	// Options are applied to every per-request fixture builder
	Options []fixture.Option

	// Sink and TxManager enable persist=true and DELETE; both may be nil
	Sink      persist.Sink
	TxManager tx.Manager

	// DB backs the readiness probe; nil reports the database as disabled
	DB    handlers.Pinger
	Stats handlers.Stats

	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	// One builder made of the base options owns the descriptor and scan caches
	// that the metadata view and every fixture request share.
	shared, err := fixture.New(cfg.Options...)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Stats, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")

	metaHandler := handlers.NewMetadataHandler(cfg.Schema, shared.Scanner())
	meta := api.Group("/meta")
	{
		meta.GET("", metaHandler.ListEntities)
		meta.GET("/:name", metaHandler.GetEntity)
	}

	fixtureHandler := handlers.NewFixtureHandler(cfg.Schema, cfg.Options, shared.Scanner(), cfg.Sink, cfg.TxManager)
	fixtures := api.Group("/fixtures")
	{
		fixtures.POST("/:name", fixtureHandler.Generate)
		fixtures.DELETE("/:name", fixtureHandler.Cleanup)
	}

	return router, nil
}
