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

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/httpapi"
	"callbridge/internal/platform"
	"callbridge/internal/session"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

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

	client, err := platform.NewClient(platform.ClientConfig{
		RTCBaseURL:   cfg.Platform.RTCBaseURL,
		VoiceBaseURL: cfg.Platform.VoiceBaseURL,
		AccountID:    cfg.Platform.AccountID,
		Username:     cfg.Platform.Username,
		Password:     cfg.Platform.Password,
	})
	if err != nil {
		log.Error("platform client init failed", "err", err)
		os.Exit(1)
	}

	// Session and binding state is in-memory by default; a process restart
	// then loses all live-call state. Configure Redis for durability.
	var sessionStore session.Store = session.NewMemoryStore()
	var bindingStore calls.BindingStore = calls.NewMemoryBindingStore()
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb)
		bindingStore = calls.NewRedisBindingStore(rdb)
	}

	var auditRepo audit.Repository = audit.NewMemoryRepo()
	if cfg.PostgresEnabled() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		auditRepo = audit.NewPostgresRepo(db)
	}

	var authManager *auth.Manager
	if cfg.AuthEnabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	}

	orch := calls.NewOrchestrator(
		session.NewRegistry(sessionStore, client),
		calls.NewLifecycle(client),
		bindingStore,
		client,
		calls.DialPlan{
			FromNumber:         cfg.Call.AgentNumber,
			ToNumber:           cfg.Call.UserNumber,
			ApplicationID:      cfg.Call.ApplicationID,
			AnswerURL:          cfg.AnswerURL(),
			CallTimeoutSeconds: cfg.Call.TimeoutSeconds,
		},
		audit.NewService(auditRepo),
	)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{Orch: orch}, authManager, cfg.Auth.ConsoleKey)

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
}
