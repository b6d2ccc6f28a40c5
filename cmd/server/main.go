// Command server runs the metrology compliance API: the instrument
// registry, the checks lifecycle, due-date projections, and the audit
// relay. Without DATABASE_URL it runs entirely in memory, which is handy
// for local work and demos.
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

	auditpkg "metrology/internal/audit"
	audithandler "metrology/internal/audit/handler"
	"metrology/internal/audit/relay"
	"metrology/internal/checks"
	checkshandler "metrology/internal/checks/handler"
	checksservice "metrology/internal/checks/service"
	"metrology/internal/directory"
	directoryhandler "metrology/internal/directory/handler"
	"metrology/internal/instrument"
	instrumenthandler "metrology/internal/instrument/handler"
	instrumentservice "metrology/internal/instrument/service"
	"metrology/internal/lookup"
	lookuphandler "metrology/internal/lookup/handler"
	"metrology/internal/platform/config"
	"metrology/internal/platform/httpserver"
	"metrology/internal/platform/logger"
	"metrology/internal/platform/metrics"
	"metrology/internal/platform/postgres"
	"metrology/internal/platform/redis"
	"metrology/internal/projection"
	projectionhandler "metrology/internal/projection/handler"
	"metrology/internal/store/memdb"
	httptransport "metrology/internal/transport/http"
	"metrology/pkg/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Logger)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	directory directory.Store
	instr     instrument.Store
	checks    checks.Store
	audit     auditpkg.Store
	lookups   lookup.Store
	runner    tx.Runner
	health    func(ctx context.Context) error
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New()
	recorder := auditpkg.NewRecorder(st.audit, m)

	instrumentSvc := instrumentservice.New(st.instr, recorder, st.runner, m, log)
	checksSvc := checksservice.New(st.checks, recorder, st.runner, m, log)

	cache, err := buildCache(cfg, log)
	if err != nil {
		return err
	}
	refresher := projection.NewRefresher(st.checks, cache, m, log)

	router := httptransport.NewRouter(log, st.health,
		directoryhandler.New(st.directory, log),
		instrumenthandler.New(instrumentSvc, log),
		checkshandler.New(checksSvc, log),
		projectionhandler.New(refresher, log),
		audithandler.New(st.audit, log),
		lookuphandler.New(st.lookups, log),
	)
	server := httpserver.New(cfg.Server.Addr, router)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := relay.NewKafkaProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		auditRelay := relay.New(st.audit, producer, cfg.Kafka.AuditTopic, log, m).
			WithInterval(cfg.Kafka.RelayTick)
		go func() {
			if err := auditRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
		log.Info("audit relay started", "topic", cfg.Kafka.AuditTopic)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		db := memdb.New()
		return stores{
			directory: directory.NewMemoryStore(db),
			instr:     instrument.NewMemoryStore(db),
			checks:    checks.NewMemoryStore(db),
			audit:     auditpkg.NewMemoryStore(db),
			lookups:   lookup.NewMemoryStore(db),
			runner:    db,
			health:    func(ctx context.Context) error { return nil },
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return stores{}, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, nil, err
	}
	log.Info("postgres ready")
	return stores{
		directory: directory.NewPostgresStore(db),
		instr:     instrument.NewPostgresStore(db),
		checks:    checks.NewPostgresStore(db),
		audit:     auditpkg.NewPostgresStore(db),
		lookups:   lookup.NewPostgresStore(db),
		runner:    postgres.NewRunner(db),
		health:    pingFunc(db),
	}, func() { db.Close() }, nil
}

func pingFunc(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func buildCache(cfg config.Config, log *slog.Logger) (projection.Cache, error) {
	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return projection.NewMemoryCache(), nil
	}
	log.Info("redis snapshot cache enabled")
	return projection.NewRedisCache(client), nil
}
