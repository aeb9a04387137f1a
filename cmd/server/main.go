package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/Louguiman/tekra-store-sub002/internal/access"
	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/notify"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/recorder"
	auditmem "github.com/Louguiman/tekra-store-sub002/internal/audit/store/memory"
	auditpg "github.com/Louguiman/tekra-store-sub002/internal/audit/store/postgres"
	"github.com/Louguiman/tekra-store-sub002/internal/jwt_token"
	"github.com/Louguiman/tekra-store-sub002/internal/monitor"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/config"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/httpserver"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/logger"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/metrics"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/middleware"
	platformredis "github.com/Louguiman/tekra-store-sub002/internal/platform/redis"
	"github.com/Louguiman/tekra-store-sub002/internal/stats"
	"github.com/Louguiman/tekra-store-sub002/internal/supplier"
	suppliermem "github.com/Louguiman/tekra-store-sub002/internal/supplier/store/memory"
	supplierpg "github.com/Louguiman/tekra-store-sub002/internal/supplier/store/postgres"
	httptransport "github.com/Louguiman/tekra-store-sub002/internal/transport/http"
)

// main wires the audit pipeline: stores, notification sinks, the recorder
// and its consumers, and the HTTP surface. Business logic lives in the
// internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	auditStore, supplierStore, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sinks := []notify.Notifier{notify.NewLogNotifier(log)}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sinks = append(sinks, notify.NewRedisNotifier(redisClient, cfg.Redis.Channel))
		log.Info("redis notification sink enabled", "channel", cfg.Redis.Channel)
	}

	var kafkaSink *notify.KafkaNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err = notify.NewKafkaNotifier(cfg.Kafka, log,
			notify.WithDropCounter(m.NotifyDropped))
		if err != nil {
			return err
		}
		sinks = append(sinks, kafkaSink)
		log.Info("kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	}

	fanout := notify.NewFanout(sinks,
		notify.WithLogger(log),
		notify.WithFailureCounter(m.NotifyFailures),
	)

	rec, err := recorder.New(auditStore,
		recorder.WithLogger(log),
		recorder.WithNotifier(fanout),
		recorder.WithMetrics(m),
		recorder.WithWriteTimeout(cfg.Audit.WriteTimeout),
	)
	if err != nil {
		return err
	}

	mon, err := monitor.New(auditStore, rec,
		monitor.WithConfig(cfg.Monitor),
		monitor.WithLogger(log),
	)
	if err != nil {
		return err
	}

	auditor, err := supplier.NewAuditor(rec, auditStore,
		supplier.WithStore(supplierStore),
		supplier.WithLogger(log),
	)
	if err != nil {
		return err
	}

	aggregator, err := stats.New(auditStore)
	if err != nil {
		return err
	}

	decider, err := access.New(rec,
		access.WithLogger(log),
		access.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "tekra-audit", "tekra-api")
	handler := httptransport.New(rec, auditor, aggregator, mon, log)
	router := httptransport.NewRouter(handler,
		middleware.Authenticate(jwtService, log),
		func(roles ...string) func(http.Handler) http.Handler {
			return access.Require(decider, roles...)
		},
		log,
	)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("audit server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if kafkaSink != nil {
		g.Go(func() error {
			if err := kafkaSink.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStores picks PostgreSQL when configured and falls back to the
// in-memory stores for local development.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, supplier.Store, func(), error) {
	if cfg.PostgresURL == "" {
		log.Warn("no postgres URL configured, using in-memory stores")
		return auditmem.NewInMemoryStore(), suppliermem.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	auditStore := auditpg.New(db)
	if err := auditStore.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	supplierStore := supplierpg.New(db)
	if err := supplierStore.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return auditStore, supplierStore, func() { db.Close() }, nil
}
