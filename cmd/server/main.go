package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	certassembler "sigil/internal/certificate"
	certhandler "sigil/internal/certificate/handler"
	"sigil/internal/envelope"
	"sigil/internal/platform/config"
	"sigil/internal/platform/database"
	"sigil/internal/platform/httpserver"
	"sigil/internal/platform/kafka/producer"
	"sigil/internal/platform/logger"
	"sigil/internal/platform/metrics"
	platformredis "sigil/internal/platform/redis"
	"sigil/internal/retention"
	retentionhandler "sigil/internal/retention/handler"
	"sigil/internal/trail/announce"
	trailhandler "sigil/internal/trail/handler"
	"sigil/internal/trail/ledger"
	"sigil/internal/trail/store"
	memorystore "sigil/internal/trail/store/memory"
	postgresstore "sigil/internal/trail/store/postgres"
	httptransport "sigil/internal/transport/http"
	"sigil/internal/verifier"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing sigil trail service",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.KafkaBrokers != "",
	)

	m := metrics.New()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	var events store.EventStore
	var envelopes envelope.Store
	if pool != nil {
		events = postgresstore.New(pool.DB())
		envelopes = envelope.NewPostgresStore(pool.DB())
	} else {
		log.Warn("no database configured, using in-memory stores")
		events = memorystore.NewInMemoryStore()
		envelopes = envelope.NewInMemoryStore()
	}

	var holds retention.HoldStore
	var policies retention.PolicyStore
	if pool != nil {
		holds = retention.NewPostgresHoldStore(pool.DB())
		policies = retention.NewPostgresPolicyStore(pool.DB())
	} else {
		holds = retention.NewInMemoryHoldStore()
		policies = retention.NewInMemoryPolicyStore()
	}

	var authz retention.AuthorizationStore
	if redisClient != nil {
		authz = retention.NewRedisAuthorizationStore(redisClient.Client)
	} else {
		log.Warn("no redis configured, delete authorizations held in process memory")
		authz = retention.NewInMemoryAuthorizationStore()
	}

	ledgerOpts := []ledger.Option{ledger.WithMetrics(m)}
	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		kafkaProducer, err = producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		announcer := announce.New(kafkaProducer, log,
			announce.WithTopic(cfg.TrailTopic),
			announce.WithMetrics(m),
		)
		ledgerOpts = append(ledgerOpts, ledger.WithAnnouncer(announcer))
	}

	ledgerSvc := ledger.New(events, envelopes, ledgerOpts...)
	chainVerifier := verifier.New(events, verifier.WithMetrics(m))
	guard := retention.NewGuard(ledgerSvc, events, holds, policies, authz,
		retention.WithAuthorizationTTL(cfg.AuthorizationTTL),
		retention.WithMetrics(m),
	)
	assembler := certassembler.NewAssembler(ledgerSvc, envelopes, chainVerifier,
		certassembler.NewLocatorSigner(cfg.CertSigningKey, "sigil"),
		certassembler.WithMetrics(m),
	)

	checks := map[string]httptransport.HealthChecker{}
	if pool != nil {
		checks["postgres"] = pool
	} else {
		checks["postgres"] = nil
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	} else {
		checks["redis"] = nil
	}

	router := httptransport.NewRouter(checks,
		trailhandler.New(ledgerSvc, chainVerifier, log, m),
		retentionhandler.New(guard, log),
		certhandler.New(assembler, log),
	)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	if kafkaProducer != nil {
		kafkaProducer.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	pool.Close()

	log.Info("server stopped")
}
