package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	webAdapter "bloodbank/internal/adapters/web"
	"bloodbank/internal/core"
	"bloodbank/internal/db"
	"bloodbank/internal/logger"
	"bloodbank/internal/notify"
)

const alertQueueSize = 64

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = godotenv.Load()

	log := logger.New(os.Getenv("APP_ENV"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := runMigrations(dsn); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database connected")

	// Alert chain: gateway (or log fallback) behind an optional redis
	// throttle, fed by an async dispatcher so issuances never wait on it.
	var notifier notify.Notifier
	emailURL, smsURL := os.Getenv("ALERT_EMAIL_URL"), os.Getenv("ALERT_SMS_URL")
	if emailURL == "" && smsURL == "" {
		log.Warn("no alert gateway configured, low-stock alerts will only be logged")
		notifier = notify.NewLogNotifier(log)
	} else {
		notifier = notify.NewGatewayNotifier(emailURL, smsURL)
	}

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		notifier = notify.NewThrottle(notifier, rdb, time.Hour)
		log.Info("alert throttling enabled", "addr", addr)
	}

	dispatcher := notify.NewDispatcher(notifier, alertQueueSize, log)

	aggregates := core.NewAggregateStore(pool)
	ledger := core.NewLedgerStore(pool)
	svc := core.NewInventoryService(pool, aggregates, ledger, dispatcher, log)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	handler := webAdapter.NewHandler(svc, os.Getenv("ALLOWED_ORIGINS"), log)
	srv := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		log.Info("server started", "port", port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}

	// Drain queued alerts before closing connections.
	dispatcher.Close()
	log.Info("shutdown complete")
}
