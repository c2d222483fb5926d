// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/optilens/demand-engine/internal/api"
	"github.com/optilens/demand-engine/internal/cache"
	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/service"
	"github.com/optilens/demand-engine/internal/storage"
	"github.com/optilens/demand-engine/internal/store"
	"github.com/optilens/demand-engine/internal/store/postgres"
	"github.com/optilens/demand-engine/pkg/logger"
)

func main() {
	cfg := config.Load()

	if cfg.Server.Mode == "debug" {
		logger.SetLevel("debug")
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel("info")
		gin.SetMode(gin.ReleaseMode)
	}

	csvStore := store.NewCSVStore(cfg.App.DataDir)

	var inputs store.InputSource = csvStore
	if cfg.Database.URL != "" {
		pg, err := postgres.NewInputSource(cfg.Database.URL)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pg.Close()
		inputs = pg
		logger.Log.Info().Msg("Reading input tables from Postgres")
	}

	estimates, err := cache.NewPredictionCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, running without it")
		estimates = cache.NewNoopPredictionCache()
	}
	summaries, err := cache.NewSummaryCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Summary cache unavailable, running without it")
		summaries = cache.NewNoopSummaryCache()
	}

	var publisher storage.Publisher
	if cfg.Publish.Enabled {
		p, err := storage.NewMinioPublisher(cfg.Publish)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Artifact publishing disabled")
		} else {
			publisher = p
		}
	}

	planning := service.NewPlanningService(cfg, inputs, csvStore, estimates, summaries, publisher)
	router := api.NewRouter(planning, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
