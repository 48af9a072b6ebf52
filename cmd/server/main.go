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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	jwttoken "pastebin/internal/jwt_token"
	"pastebin/internal/platform/config"
	"pastebin/internal/platform/health"
	"pastebin/internal/platform/kafka/producer"
	"pastebin/internal/platform/logger"
	"pastebin/internal/platform/metrics"
	platformredis "pastebin/internal/platform/redis"
	"pastebin/internal/ratelimit/events"
	"pastebin/internal/ratelimit/identity"
	rlmetrics "pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/store"
	"pastebin/internal/ratelimit/store/memory"
	redisstore "pastebin/internal/ratelimit/store/redis"
	httptransport "pastebin/internal/transport/http"
	"pastebin/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	cfg.TrustProxyHeaders = identity.TrustFromEnv(os.Getenv)
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing pastebin",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"redis", cfg.Redis.URL != "",
		"ratelimit_store", cfg.RateLimit.Store,
		"kafka", cfg.Kafka.Brokers != "",
		"trust_proxy_headers", cfg.TrustProxyHeaders,
	)
	if cfg.UsesDefaultSigningKey() && cfg.Environment != "local" {
		log.Warn("JWT_SIGNING_KEY is the development default")
	}
	if cfg.AdminAPIToken == "" {
		log.Warn("ADMIN_API_TOKEN is not set; admin and decision routes will reject every request")
	}

	rlCfg, err := loadRateLimitConfig(cfg)
	if err != nil {
		return err
	}
	rlMetrics := rlmetrics.New()
	healthHandler := health.New(cfg.Environment)

	st, redisClient, err := openStore(ctx, cfg, rlMetrics, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // process is exiting
		prometheus.MustRegister(redisClient.PoolCollector())
	}
	if st != nil {
		healthHandler.RegisterCheck("ratelimit_store", st.Ping)
	}

	var publisher *events.KafkaPublisher
	var kafkaProducer *producer.Producer
	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err = producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		publisher, err = events.NewKafkaPublisher(kafkaProducer, cfg.Kafka.EventsTopic, cfg.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		healthHandler.RegisterOptionalCheck("kafka", kafkaProducer.Check)
	}

	stack, err := buildRateLimit(cfg, rlCfg, st, publisher, rlMetrics, log)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Metrics:    metrics.New(),
		Health:     healthHandler,
		RateLimit:  stack.handler,
		Limiter:    stack.limiter,
		Validator:  jwttoken.NewValidator(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)),
		AdminToken: cfg.AdminAPIToken,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if stack.events != nil {
		stack.events.Start(gctx)
	}
	if stack.cleanup != nil {
		g.Go(func() error {
			if err := stack.cleanup.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		// Drain queued events before the producer they mirror to goes away.
		if stack.events != nil {
			if err := stack.events.Close(shutdownCtx); err != nil {
				log.Warn("ratelimit event queue not drained", "error", err)
			}
		}
		if kafkaProducer != nil {
			if err := kafkaProducer.Close(shutdownTimeout); err != nil {
				log.Warn("kafka producer close failed", "error", err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openStore connects to Redis behind a circuit breaker. Without REDIS_URL it
// returns the in-process store when RATE_LIMIT_STORE=memory, and otherwise no
// store at all.
func openStore(ctx context.Context, cfg config.Server, m *rlmetrics.Metrics, log *slog.Logger) (store.Store, *platformredis.Client, error) {
	if cfg.Redis.URL == "" {
		switch cfg.RateLimit.Store {
		case config.StoreMemory:
			log.Warn("rate limit state is kept in process memory and not shared between instances")
			return memory.New(), nil, nil
		case "":
			// the gate warns on its first check
			return nil, nil, nil
		default:
			return nil, nil, fmt.Errorf("unknown RATE_LIMIT_STORE %q", cfg.RateLimit.Store)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout+time.Second)
	defer cancel()
	client, err := platformredis.New(dialCtx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	rs, err := redisstore.New(client.Client)
	if err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, nil, err
	}
	breaker := circuit.New("ratelimit_store",
		circuit.WithFailureThreshold(cfg.RateLimit.BreakerThreshold),
		circuit.WithCooldown(cfg.RateLimit.BreakerCooldown),
	)
	guarded, err := store.NewGuarded(rs, breaker,
		store.WithGuardLogger(log),
		store.WithGuardMetrics(m),
	)
	if err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, nil, err
	}
	return guarded, client, nil
}
