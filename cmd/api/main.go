package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"waypost.app/internal/auth"
	"waypost.app/internal/blacklist"
	"waypost.app/internal/config"
	"waypost.app/internal/httpapi"
	"waypost.app/internal/messaging"
	"waypost.app/internal/notify"
	"waypost.app/internal/obs"
	"waypost.app/internal/realtime"
)

var commit = "unknown"

func main() {
	cfg, err := config.Load(os.Getenv("WAYPOST_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(cfg.App.Version, commit)

	var db *sql.DB
	if cfg.DB.DSN != "" {
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	accessTTL, err := auth.ParseTTL(cfg.Auth.AccessTTL)
	if err != nil {
		logger.Fatal("parse access ttl", zap.Error(err))
	}

	revocations := blacklist.NewRetrying(
		blacklist.NewMemory(),
		cfg.Cache.RetryAttempts,
		blacklist.ExpoJitter{Base: cfg.Cache.RetryBase, Max: cfg.Cache.RetryMax, Jitter: 0.2},
		logger,
	)

	sessions, err := auth.NewService(
		auth.NewPGStore(db),
		revocations,
		cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(accessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("init session service", zap.Error(err))
	}

	gwOpts := []realtime.Option{realtime.WithLogger(logger)}
	if cfg.App.Env == "dev" {
		gwOpts = append(gwOpts, realtime.WithDevNotificationAuth())
	}
	gateway := realtime.NewGateway(sessions, messaging.NewPGStore(db), notify.NewPGStore(db), gwOpts...)

	api := httpapi.New(sessions, gateway, httpapi.ReadyProbe{DB: db}, httpapi.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Path:   cfg.Auth.CookiePath,
		Secure: cfg.Auth.CookieSecure,
	}, cfg.App.Version, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		// SSE streams outlive any sensible write timeout; the connection is
		// bounded by client disconnect instead.
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("starting waypost-api",
		zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}
