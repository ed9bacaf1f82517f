package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"advisory/api/internal/app"
	"advisory/api/internal/authpw"
	"advisory/api/internal/config"
	"advisory/api/internal/email"
	"advisory/api/internal/export"
	"advisory/api/internal/logging"
	"advisory/api/internal/metrics"
	"advisory/api/internal/search"
	"advisory/api/internal/session"
	"advisory/api/internal/storage"
	"advisory/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db.DB, cfg.MigrationsDir); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	dataStore := store.NewPostgresStore(db, logger)
	dataStore.OnHistoryFailure(m.HistoryFailure)

	var sessionBackend session.Store = dataStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		sessionBackend = redisStore
	} else {
		logger.Info("using postgres for session storage")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}

	deps := app.Deps{
		Store:       dataStore,
		Sessions:    session.NewManager(sessionBackend, dataStore, cfg.SessionTTL, logger),
		Credentials: authpw.NewService(dataStore),
		Search:      search.NewService(meiliClient, dataStore, logger),
		Renderer:    export.NewChrome(cfg.ExportTimeout, logger),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
		Metrics: m,
		Logger:  logger,
		AppURL:  cfg.AppURL,
	}
	if cfg.MinIO.Enabled() {
		exports, err := storage.NewMinIOClient(ctx, cfg.MinIO, logger)
		if err != nil {
			// archiving is optional; direct downloads still work
			logger.Warn("minio unavailable, export archiving disabled", "error", err)
		} else {
			deps.Exports = exports
		}
	}
	service := app.New(deps)

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		CORSOrigin:         cfg.CORSOrigin,
		CookieName:         cfg.CookieName,
		CookieSecure:       cfg.CookieSecure,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginBurst:         cfg.LoginBurst,
	}, m, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("advisory api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	service.Wait()
}
