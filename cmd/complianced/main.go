// Command complianced runs the tokenized-asset compliance engine with its
// operational endpoints (health, readiness, metrics).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/veridex/compliance-core/internal/audit"
	"github.com/veridex/compliance-core/internal/compliance"
	"github.com/veridex/compliance-core/internal/config"
	"github.com/veridex/compliance-core/internal/identity"
	"github.com/veridex/compliance-core/internal/storage"
	"github.com/veridex/compliance-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("complianced exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Durable store
	var db *gorm.DB
	var err error
	switch cfg.Database.Driver {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.Database.DSN)
	default:
		db, err = storage.NewSQLiteDB(cfg.Database.DSN)
	}
	if err != nil {
		return err
	}
	repo, err := storage.NewRepository(db, log)
	if err != nil {
		return err
	}

	// Result cache
	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	cache := storage.NewRedisCache(redisClient, "compliance")

	// Artifact store
	artifacts, err := storage.NewFileArtifactStore(cfg.ArtifactDir)
	if err != nil {
		return err
	}

	// Identity provider fallback chain, priority order as configured
	providers := make([]identity.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, identity.NewHTTPProvider(p.Name, p.Endpoint, p.APIKey, p.Timeout))
	}
	verifier, err := identity.NewFallbackVerifier(log, cfg.Policy.ProviderTimeout, providers...)
	if err != nil {
		return err
	}

	auditLog := audit.NewLog(log, db, cfg.Audit)
	defer auditLog.Close()

	access := compliance.NewAccessControl(log)
	access.Grant(cfg.AdminCaller, compliance.AccessAdministrative)

	profiles := compliance.NewProfileStore(log, access, []byte(cfg.ProfileSecret), repo)
	catalog := compliance.NewRuleCatalog(log)

	svc, err := compliance.NewService(
		log, cfg.Policy, catalog, profiles, access, auditLog, verifier, cache, artifacts,
		compliance.WithReportRepository(repo),
	)
	if err != nil {
		return err
	}

	log.Info("compliance engine ready",
		zap.Strings("jurisdictions", svc.GetSupportedJurisdictions()),
		zap.Strings("identity_providers", verifier.Providers()))

	// Operational surface only; the compliance API proper is served by the
	// platform gateway.
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("operational server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}
