package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillqa17/vpn-api/internal/config"
	entitlementrepository "github.com/kirillqa17/vpn-api/internal/entitlement/repository"
	entitlementservice "github.com/kirillqa17/vpn-api/internal/entitlement/service"
	entitlementhttp "github.com/kirillqa17/vpn-api/internal/entitlement/transport/http"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	promorepository "github.com/kirillqa17/vpn-api/internal/promocode/repository"
	promoservice "github.com/kirillqa17/vpn-api/internal/promocode/service"
	promohttp "github.com/kirillqa17/vpn-api/internal/promocode/transport/http"
	"github.com/kirillqa17/vpn-api/internal/provisioning"
	referralservice "github.com/kirillqa17/vpn-api/internal/referral/service"
	referralhttp "github.com/kirillqa17/vpn-api/internal/referral/transport/http"
	"github.com/kirillqa17/vpn-api/migrations"
	"github.com/kirillqa17/vpn-api/pkg/db"
	"github.com/kirillqa17/vpn-api/pkg/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.Migrate(database, migrations.FS); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	panel := provisioning.NewClient(provisioning.Config{
		BaseURL:   cfg.PanelURL,
		Token:     cfg.PanelToken,
		ProxyAddr: cfg.PanelProxy,
		Timeout:   cfg.PanelTimeout,
		SquadIDs:  cfg.SquadIDs(),
	})

	entitlementRepo := entitlementrepository.NewPostgresRepository(database)
	entitlementService := entitlementservice.NewService(entitlementRepo, panel, entitlementservice.Options{
		RenewCooldown:    cfg.RenewCooldown,
		MaxRenewFailures: cfg.RenewMaxFailures,
	})
	overrides := entitlementservice.NewOverrideScheduler(entitlementRepo, panel, cfg.OverrideDelay, nil)
	defer overrides.Stop()

	if restored, err := overrides.Recover(ctx); err != nil {
		slog.Error("override recovery failed", "error", err)
	} else if restored > 0 {
		slog.Info("overdue device limits restored", "count", restored)
	}

	runner := entitlementservice.NewRunner(
		entitlementService,
		overrides,
		cfg.SweepInterval,
		time.Duration(cfg.SweepHorizonDays)*24*time.Hour,
	)
	go runner.Run(ctx)

	referralService := referralservice.NewService(entitlementRepo)
	promoService := promoservice.NewService(promorepository.NewPostgresPromoCodeRepository(database))

	entitlementHandler := entitlementhttp.NewHandler(entitlementService, overrides)
	referralHandler := referralhttp.NewHandler(referralService)
	promoHandler := promohttp.NewHandler(promoService)

	r := chi.NewRouter()

	r.Use(middleware.RequestLogger)
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(cfg.JWTSecret))
		pr.Use(middleware.ValidateRequest)

		entitlementHandler.Routes(pr)
		referralHandler.Routes(pr)
		promoHandler.Routes(pr)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	if cfg.MetricsPasswordHash != "" {
		r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPasswordHash)).Handle("/metrics", promhttp.Handler())
	} else {
		slog.Warn("METRICS_PASSWORD_HASH is empty, /metrics is disabled")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server running", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
