package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-analytics/internal/agents"
	"callcenter-analytics/internal/auth"
	"callcenter-analytics/internal/calls"
	"callcenter-analytics/internal/config"
	"callcenter-analytics/internal/feedback"
	"callcenter-analytics/internal/httpapi"
	"callcenter-analytics/internal/ingest"
	"callcenter-analytics/internal/knowledge"
	"callcenter-analytics/internal/kpi"
	"callcenter-analytics/pkg/logger"
	"callcenter-analytics/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callRepo := calls.NewRepository(db)
	feedbackRepo := feedback.NewPostgresRepo(db)

	// Order matters: feedback's foreign key references calls.
	if err := callRepo.EnsureSchema(rootCtx); err != nil {
		log.Error("calls schema failed", "err", err)
		os.Exit(1)
	}
	if err := feedbackRepo.EnsureSchema(rootCtx); err != nil {
		log.Error("feedback schema failed", "err", err)
		os.Exit(1)
	}

	directory := agents.NewCachedDirectory(
		agents.NewClient(cfg.AgentDir.BaseURL, cfg.AgentDir.APIKey),
		rdb,
	)
	ingestor := ingest.NewIngestor(cfg.Webhook.Secret, callRepo, directory)

	deps := appDeps{
		handlers: httpapi.Handlers{
			Auth:      authManager,
			Calls:     callRepo,
			Feedback:  feedback.NewService(feedbackRepo),
			KPI:       kpi.NewService(callRepo, feedbackRepo, rdb),
			Knowledge: knowledge.NewService(knowledge.NewVectorClient(cfg.VectorSearch.Host, cfg.VectorSearch.APIKey, cfg.VectorSearch.Namespace)),
		},
		webhook: ingest.NewHandler(ingestor),
		ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, authManager, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
