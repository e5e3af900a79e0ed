package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readearn/internal/audit"
	"readearn/internal/auth"
	"readearn/internal/clock"
	"readearn/internal/config"
	"readearn/internal/db"
	httpServer "readearn/internal/http"
	"readearn/internal/http/handlers"
	"readearn/internal/http/middleware"
	"readearn/internal/logger"
	"readearn/internal/reading"
	"readearn/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// tokenTTL bounds how long an idle BFF session keeps its tokens in Redis.
const tokenTTL = 7 * 24 * time.Hour

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the backend-for-frontend HTTP server",
		Long: `Run the HTTP server that keeps reading sessions and the publish gate for
browser sessions and streams session events over /ws.

Redis (REDIS_ADDR) stores tokens and rate limits; without it both live in
memory. DATABASE_URL enables the audit journal.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, port, cmd)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default APP_PORT)")
	return cmd
}

func runServe(opts *RootOptions, port string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	cfg, err := config.Parse()
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if port == "" {
		port = cfg.AppPort
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger.InitWithWriter(cmd.ErrOrStderr(), level, cfg.LogJSON)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}

	var tokens auth.Store = auth.NewMemoryStore()
	if rdb := middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rdb != nil {
		defer rdb.Close()
		tokens = auth.NewRedisStore(rdb, tokenTTL)
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	} else {
		logger.Warn("redis unavailable, sessions are kept in memory and lost on restart")
	}

	var auditSvc *audit.Service
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = out.Error(ErrCodeConfig, "database: "+err.Error(), nil)
			return WrapExitError(ExitCommandError, "database unavailable", err)
		}
		defer pool.Close()
		auditSvc = audit.NewService(audit.NewRepository(pool))
		checks["database"] = handlers.PingFunc(pool.Ping)
	}

	sessOpts := reading.Options{
		Clock:              clock.Real{},
		TickInterval:       cfg.TickInterval,
		SendElapsedMinutes: cfg.SendElapsedMinutes,
	}
	if auditSvc != nil {
		sessOpts.Journal = auditSvc
	}
	registry := reading.NewRegistry(sessOpts)
	defer registry.CloseAll()

	hub := ws.NewHub()
	h := handlers.NewHandler(handlers.HandlerConfig{
		APIBaseURL:        cfg.APIBaseURL,
		APITimeout:        cfg.APITimeout,
		PublishMinBalance: cfg.PublishMinBalance,
		AllowedOrigin:     cfg.AllowedOrigin,
		Clock:             clock.Real{},
	}, tokens, registry, auditSvc)
	h.Sockets = hub

	registry.StartCleanup(ctx, cfg.SweepInterval, cfg.IdleTTL)
	h.StartCleanup(ctx, cfg.SweepInterval, cfg.IdleTTL)

	r := httpServer.NewEngine(cfg.AllowedOrigin)
	checks["platform_api"] = handlers.UpstreamPing(cfg.APIBaseURL, nil)
	health := handlers.NewHealthHandler(Version, checks).
		Gauge("reading_sessions", registry.Len).
		Gauge("ws_clients", hub.Total).
		Gauge("accounts", h.Accounts)
	httpServer.RegisterRoutes(r, h, health, hub, httpServer.RouteConfig{
		AllowedOrigin: cfg.AllowedOrigin,
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "port", port, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = out.Error(ErrCodeGeneric, "listen: "+err.Error(), nil)
			return WrapExitError(ExitCommandError, "listen", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return WrapExitError(ExitFailure, "shutdown", err)
	}

	logger.Info("server exited")
	return nil
}
