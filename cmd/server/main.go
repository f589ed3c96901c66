package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/grobertson/Rosey-Robot-sub001/internal/config"
	"github.com/grobertson/Rosey-Robot-sub001/internal/database"
	"github.com/grobertson/Rosey-Robot-sub001/internal/handlers"
	"github.com/grobertson/Rosey-Robot-sub001/internal/logger"
	"github.com/grobertson/Rosey-Robot-sub001/internal/metrics"
	"github.com/grobertson/Rosey-Robot-sub001/internal/middleware"
	"github.com/grobertson/Rosey-Robot-sub001/internal/migration"
	"github.com/grobertson/Rosey-Robot-sub001/internal/query"
	"github.com/grobertson/Rosey-Robot-sub001/internal/schema"
)

func main() {
	addr := flag.String("addr", "", "Listen address (overrides config)")
	migrationsDir := flag.String("migrations-dir", "", "Directory of per-namespace migration scripts (overrides config)")
	flag.Parse()

	cfg, err := config.Load("ROSEY_")
	if err != nil {
		logger.Get().Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *migrationsDir != "" {
		cfg.Server.MigrationsDir = *migrationsDir
	}

	logger.Init(cfg.Log)
	log := logger.Get()

	// Database + internal schema bootstrap
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Schema registry, seeded from the live catalog
	registry := schema.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := registry.LoadAll(ctx, db.Pool); err != nil {
		cancel()
		log.Error("failed to load table schemas", "error", err)
		os.Exit(1)
	}
	cancel()
	log.Info("schema registry loaded", "tables", len(registry.Tables()))

	// Core executors
	queryExecutor := query.NewExecutor(db.Pool, registry)

	var source migration.Source
	if cfg.Server.MigrationsDir != "" {
		source = migration.NewFSSource(os.DirFS(cfg.Server.MigrationsDir))
	} else {
		source = migration.NewMemorySource()
	}
	hostname, _ := os.Hostname()
	migrationExecutor := migration.NewExecutor(db.Pool, source, hostname)

	// Handlers
	queryHandler := handlers.NewQueryHandler(queryExecutor)
	migrationHandler := handlers.NewMigrationHandler(migrationExecutor)

	// Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.Server.CORSOrigin != "" {
		router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigin))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(cfg.Server.RequestsPerMinute, cfg.Server.RateBurst))

	v1.POST("/tables/:table/search", queryHandler.Search)
	v1.POST("/tables/:table/update", queryHandler.Update)

	v1.POST("/namespaces/:namespace/migrations/apply", migrationHandler.Apply)
	v1.POST("/namespaces/:namespace/migrations/rollback", migrationHandler.Rollback)
	v1.GET("/namespaces/:namespace/migrations/status", migrationHandler.Status)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}
