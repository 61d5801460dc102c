// Command server runs the compliance core: the erasure admin API, the audit
// pipeline, and the startup invariant checker. Dependencies with no
// configured backend (databases, redis, kafka) degrade to in-memory or
// disabled equivalents so local development needs no infrastructure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"custodia/internal/audit/ingest"
	"custodia/internal/checks"
	erasureservice "custodia/internal/erasure/service"
	"custodia/internal/erasure/store/lock"
	"custodia/internal/erasure/store/request"
	"custodia/internal/isolation"
	"custodia/internal/platform/config"
	"custodia/internal/platform/database"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/kafka/consumer"
	"custodia/internal/platform/kafka/producer"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/redis"
	"custodia/internal/platform/token"
	subjectmem "custodia/internal/subject/store/memory"
	subjectpg "custodia/internal/subject/store/postgres"
	httptransport "custodia/internal/transport/http"
	"custodia/pkg/platform/audit"
	auditmem "custodia/pkg/platform/audit/store/memory"
	auditpg "custodia/pkg/platform/audit/store/postgres"
	"custodia/pkg/platform/audit/recorder"
	"custodia/pkg/platform/audit/relay"
)

const (
	tokenIssuer   = "custodia"
	tokenAudience = "custodia-admin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Startup invariants run before anything touches a database. Every
	// finding is reported; only blocking ones stop the boot.
	result := checks.NewRegistry().Run(ctx, cfg)
	httpMetrics := metrics.New()
	for _, f := range result.Findings {
		httpMetrics.ObserveFinding(f.CheckID, string(f.Severity))
		log.Warn("startup check finding",
			"check", f.CheckID,
			"severity", string(f.Severity),
			"message", f.Message,
			"hint", f.Hint,
		)
	}
	if blocking := result.Blocking(false); len(blocking) > 0 {
		for _, f := range blocking {
			log.Error("startup blocked by invariant violation",
				"check", f.CheckID,
				"message", f.Message,
				"hint", f.Hint,
			)
		}
		return fmt.Errorf("startup blocked: %d invariant violation(s)", len(blocking))
	}

	var ready []httptransport.ReadyCheck

	// Audit store: the physically separate audit database, or memory for
	// local development.
	var auditStore audit.Store
	if cfg.AuditDB.URL != "" {
		auditDB, err := database.OpenAudit(ctx, cfg.AuditDB)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer auditDB.Close()
		if err := database.MigrateAudit(ctx, auditDB); err != nil {
			return fmt.Errorf("migrate audit database: %w", err)
		}
		store, err := auditpg.New(auditDB, isolation.StoreAudit)
		if err != nil {
			return err
		}
		auditStore = store
		ready = append(ready, httptransport.ReadyCheck{Name: "audit-db", Check: auditDB.PingContext})
	} else {
		log.Warn("no audit database configured, using the in-memory audit store")
		auditStore = auditmem.NewInMemoryStore()
	}

	// SIEM relay and foreign-event ingest, both optional on brokers.
	recorderOpts := []recorder.Option{
		recorder.WithLogger(log),
		recorder.WithMetrics(recorder.NewMetrics()),
	}
	brokers := cfg.Kafka.BrokerList()
	if len(brokers) > 0 {
		if err := kafka.EnsureTopics(ctx, brokers, cfg.Kafka.RelayTopic, cfg.Kafka.IngestTopic); err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}

		sink, err := producer.New(ctx, brokers, cfg.Kafka.RelayTopic)
		if err != nil {
			return fmt.Errorf("kafka relay producer: %w", err)
		}
		defer sink.Close()
		publisher := relay.New(sink,
			relay.WithLogger(log),
			relay.WithMetrics(relay.NewMetrics()),
		)
		defer publisher.Close() //nolint:errcheck
		recorderOpts = append(recorderOpts, recorder.WithForwarder(publisher))

		ingestHandler := ingest.NewHandler(auditStore, log, ingest.WithMetrics(ingest.NewMetrics()))
		ingestRouter := ingest.NewRouter(log, nil)
		ingestRouter.Register(cfg.Kafka.IngestTopic, ingestHandler)
		ingestConsumer, err := consumer.New(ctx, consumer.Config{
			Brokers: brokers,
			Group:   cfg.Kafka.IngestGroup,
			Topics:  []string{cfg.Kafka.IngestTopic},
		}, ingestRouter, log)
		if err != nil {
			return fmt.Errorf("kafka ingest consumer: %w", err)
		}
		defer ingestConsumer.Close()
		go func() {
			if err := ingestConsumer.Run(ctx); err != nil {
				log.Error("audit ingest consumer stopped", "error", err)
			}
		}()
	} else {
		log.Info("no kafka brokers configured, relay and ingest disabled")
	}
	auditRecorder := recorder.New(auditStore, recorderOpts...)

	// Primary stores: subjects and erasure requests share the primary
	// database, never the audit one.
	var (
		requests erasureservice.RequestStore
		subjects erasureservice.SubjectStore
	)
	if cfg.PrimaryDB.URL != "" {
		pool, err := database.OpenPrimary(ctx, cfg.PrimaryDB)
		if err != nil {
			return fmt.Errorf("open primary database: %w", err)
		}
		defer pool.Close()
		if err := database.MigratePrimary(ctx, pool); err != nil {
			return fmt.Errorf("migrate primary database: %w", err)
		}
		requests, err = request.NewPostgres(pool, isolation.StorePrimary)
		if err != nil {
			return err
		}
		subjects, err = subjectpg.New(pool, isolation.StorePrimary)
		if err != nil {
			return err
		}
		ready = append(ready, httptransport.ReadyCheck{Name: "primary-db", Check: pool.Ping})
	} else {
		log.Warn("no primary database configured, using in-memory stores")
		requests = request.NewInMemory()
		subjects = subjectmem.NewInMemoryStore()
	}

	// Decision lock: redis when configured, in-process otherwise.
	var locker erasureservice.Locker
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedis(redisClient.Client, cfg.Redis.LockTTL)
		ready = append(ready, httptransport.ReadyCheck{Name: "redis", Check: redisClient.Health})
	} else {
		log.Info("no redis configured, decision locks are in-process")
		locker = lock.NewInProcess()
	}

	erasure := erasureservice.New(requests, subjects, auditRecorder, locker,
		erasureservice.WithLogger(log),
		erasureservice.WithMetrics(erasureservice.NewMetrics()),
	)

	chain, err := middleware.Build(cfg.HTTP.MiddlewareEntries(), middleware.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Validator:      token.NewService(cfg.Security.JWTSigningKey, tokenIssuer, tokenAudience),
		Security:       auditRecorder,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("build middleware chain: %w", err)
	}

	router := httptransport.NewRouter(
		httptransport.NewErasureHandler(erasure, log),
		httptransport.NewAuditHandler(auditStore, log),
		chain,
		ready...,
	)

	srv := httpserver.New(cfg.HTTP, router.Handler())
	if err := httpserver.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, log); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
