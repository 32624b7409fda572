package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/cache"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/config"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/database"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/logging"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/middleware"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/server"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/sweeper"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// @title Linkrem API
// @version 1.0
// @description Bookmarks with tags, sessions and shortcuts, for the web app and the browser extension.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT or extension token. Format: "Bearer {token}"

func main() {
	app := &cli.App{
		Name:  "linkrem-server",
		Usage: "Linkrem bookmark service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the ini configuration file",
				EnvVars: []string{"LINKREM_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP server", Action: serve},
			{Name: "migrate", Usage: "create or update the database schema", Action: migrate},
			{Name: "sweep", Usage: "delete orphaned tags once and exit", Action: sweep},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, the logger and the database
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := database.Connect(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", slog.String("driver", cfg.Database.Driver))
	return cfg, logger, nil
}

func migrate(c *cli.Context) error {
	_, _, err := setup(c)
	if err != nil {
		return err
	}
	return database.Close()
}

func sweep(c *cli.Context) error {
	_, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := reconcile.New(database.GetDB(), reconcile.WithLogger(logger)).SweepAll(c.Context)
	if err != nil {
		return err
	}
	logger.Info("orphan tag sweep finished", slog.Int64("deleted", n))
	return nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth.Configure(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if auth.UsingDevSecret() {
		logger.Warn("Auth.JWTSecret is not set, using the development secret")
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Environment: cfg.Server.Mode,
	})
	if err != nil {
		return err
	}

	store, closeStore := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	defer closeStore()
	tagCache := cache.NewTagCache(store, cfg.Cache.TTL, logger)

	engine := reconcile.New(database.GetDB(),
		reconcile.WithLogger(logger),
		reconcile.WithInvalidator(tagCache),
	)

	loginLimiter := middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	tokenLimiter := middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	scheduler := sweeper.New(logger)
	if err := scheduler.Add(cfg.Sweep.Schedule, sweeper.NewOrphanTagJob(engine, logger)); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", cfg.Sweep.Schedule, err)
	}
	if err := scheduler.Add("@every 10m", sweeper.NewPruneJob("LoginLimiterPrune", loginLimiter)); err != nil {
		return err
	}
	if err := scheduler.Add("@every 10m", sweeper.NewPruneJob("TokenLimiterPrune", tokenLimiter)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := server.NewRouter(server.Options{
		Engine:       engine,
		TagCache:     tagCache,
		Logger:       logger,
		CORSOrigins:  cfg.Server.CORSOrigins,
		LoginLimiter: loginLimiter,
		TokenLimiter: tokenLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(router, "linkrem"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting Linkrem server", slog.String("addr", srv.Addr), slog.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", slog.Any("error", err))
	}
	return nil
}
