// Package main is the entry point for the grnflow API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grnflow/internal/config"
	"grnflow/internal/core/security"
	"grnflow/internal/domain/grn"
	v1 "grnflow/internal/infrastructure/http/v1"
	"grnflow/internal/infrastructure/sapb1"
	"grnflow/internal/infrastructure/storage/postgres"
	"grnflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting grnflow server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.PGDSN))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	repo := postgres.NewGRNRepo(txManager)
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- SAP Service Layer ---
	sapClient := sapb1.NewClient(sapb1.Config{
		BaseURL:            cfg.SAPBaseURL,
		Username:           cfg.SAPUsername,
		Password:           cfg.SAPPassword,
		CompanyDB:          cfg.SAPCompanyDB,
		Timeout:            cfg.SAPTimeout,
		InsecureSkipVerify: cfg.SAPSkipTLSVerify,
	})
	queryService := sapb1.NewQueryService(sapClient, cfg.EnableMockData)
	posterService := sapb1.NewPosterService(sapClient)
	if cfg.EnableMockData {
		log.Warn("mock data fallback enabled, read lookups may serve canned data")
	}

	// --- Access policy ---
	policy := security.DefaultBatchPolicy()
	if cfg.BatchAccessExpr != "" {
		policy, err = security.NewBatchPolicy(cfg.BatchAccessExpr)
		if err != nil {
			log.Fatalw("invalid batch access expression", "error", err)
		}
	}

	// --- Workflow service ---
	grnService := grn.NewService(repo, txManager, queryService, posterService, policy, auditService)
	grnService.SetBranchID(cfg.BranchID)

	// --- JWT ---
	jwtConfig := security.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.JWTTTL
	jwtService := security.NewJWTService(jwtConfig)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		GRNService:   grnService,
		Query:        queryService,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.AppAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
