package main

import (
	"fmt"
	"log/slog"

	"pastebin/internal/platform/config"
	"pastebin/internal/platform/middleware"
	"pastebin/internal/ratelimit/abuse"
	"pastebin/internal/ratelimit/admin"
	"pastebin/internal/ratelimit/ban"
	rlconfig "pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/events"
	"pastebin/internal/ratelimit/gate"
	rlhandler "pastebin/internal/ratelimit/handler"
	"pastebin/internal/ratelimit/identity"
	rlmetrics "pastebin/internal/ratelimit/metrics"
	rlmiddleware "pastebin/internal/ratelimit/middleware"
	"pastebin/internal/ratelimit/monitoring"
	"pastebin/internal/ratelimit/quota"
	"pastebin/internal/ratelimit/store"
	"pastebin/internal/ratelimit/workers/cleanup"
)

// rateLimitStack is every rate limiting component, built around one store.
// Without a store only the handler and limiter are set.
type rateLimitStack struct {
	events  *events.Logger
	cleanup *cleanup.Service
	handler *rlhandler.Handler
	limiter *rlmiddleware.Middleware
}

// loadRateLimitConfig returns the built-in limits, overlaid by the YAML file
// when one is configured.
func loadRateLimitConfig(cfg config.Server) (*rlconfig.Config, error) {
	if cfg.RateLimit.ConfigFile == "" {
		return rlconfig.DefaultConfig(), nil
	}
	rlCfg, err := rlconfig.LoadFile(cfg.RateLimit.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load rate limit config: %w", err)
	}
	return rlCfg, nil
}

// buildRateLimit wires the subsystem. publisher may be nil when Kafka
// mirroring is off. A nil st disables rate limiting: the gate answers every
// check with the caller's failure policy.
func buildRateLimit(cfg config.Server, rlCfg *rlconfig.Config, st store.Store, publisher *events.KafkaPublisher, m *rlmetrics.Metrics, logger *slog.Logger) (*rateLimitStack, error) {
	if st == nil {
		return buildUnconfigured(m, logger)
	}

	banOpts := []ban.Option{ban.WithLogger(logger), ban.WithMetrics(m)}
	eventOpts := []events.Option{events.WithLogger(logger), events.WithMetrics(m)}
	adminOpts := []admin.Option{admin.WithLogger(logger)}
	if publisher != nil {
		banOpts = append(banOpts, ban.WithAuditPublisher(publisher))
		eventOpts = append(eventOpts, events.WithPublisher(publisher))
		adminOpts = append(adminOpts, admin.WithAuditPublisher(publisher))
	}

	bans, err := ban.New(st, banOpts...)
	if err != nil {
		return nil, fmt.Errorf("ban registry: %w", err)
	}
	quotas, err := quota.New(st, rlCfg, quota.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("quota service: %w", err)
	}
	detector, err := abuse.New(st, bans, rlCfg, abuse.WithLogger(logger), abuse.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("abuse detector: %w", err)
	}
	eventLog, err := events.NewLogger(st, rlCfg, eventOpts...)
	if err != nil {
		return nil, fmt.Errorf("event logger: %w", err)
	}
	analyzer, err := events.NewAnalyzer(st, rlCfg,
		events.WithAnalyzerLogger(logger),
		events.WithAnalyzerMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("pattern analyzer: %w", err)
	}
	aggregator, err := monitoring.New(st, rlCfg,
		monitoring.WithLogger(logger),
		monitoring.WithMetrics(m),
		monitoring.WithPatternDetector(analyzer),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics aggregator: %w", err)
	}

	gateSvc, err := gate.New(identity.NewResolver(cfg.TrustProxyHeaders), bans, quotas, detector,
		gate.WithLogger(logger),
		gate.WithMetrics(m),
		gate.WithEventSink(eventLog),
		gate.WithDualTracking(!cfg.RateLimit.DisableDualTracking),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit gate: %w", err)
	}

	adminSvc, err := admin.New(bans, st, aggregator, analyzer, adminOpts...)
	if err != nil {
		return nil, fmt.Errorf("rate limit admin: %w", err)
	}

	limiter, err := rlmiddleware.New(gateSvc,
		rlmiddleware.WithLogger(logger),
		rlmiddleware.WithCurrentUser(rlmiddleware.CurrentUserFunc(middleware.UserIDFromRequest)),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit middleware: %w", err)
	}

	return &rateLimitStack{
		events: eventLog,
		cleanup: cleanup.New(aggregator,
			cleanup.WithLogger(logger),
			cleanup.WithInterval(cfg.RateLimit.CleanupInterval),
			cleanup.WithMetrics(m),
		),
		handler: rlhandler.New(adminSvc, gateSvc, logger),
		limiter: limiter,
	}, nil
}

func buildUnconfigured(m *rlmetrics.Metrics, logger *slog.Logger) (*rateLimitStack, error) {
	gateSvc := gate.NewUnconfigured(gate.WithLogger(logger), gate.WithMetrics(m))
	limiter, err := rlmiddleware.New(gateSvc,
		rlmiddleware.WithLogger(logger),
		rlmiddleware.WithCurrentUser(rlmiddleware.CurrentUserFunc(middleware.UserIDFromRequest)),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit middleware: %w", err)
	}
	return &rateLimitStack{
		handler: rlhandler.New(nil, gateSvc, logger),
		limiter: limiter,
	}, nil
}
