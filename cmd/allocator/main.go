package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/adapter/cache"
	"github.com/evfleetops/alloc-core/internal/adapter/http/fiberserver"
	"github.com/evfleetops/alloc-core/internal/adapter/priceforecast"
	"github.com/evfleetops/alloc-core/internal/adapter/queue"
	"github.com/evfleetops/alloc-core/internal/adapter/storage/postgres"
	"github.com/evfleetops/alloc-core/internal/adapter/vault"
	"github.com/evfleetops/alloc-core/internal/coordinator"
	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/infrastructure/circuitbreaker"
	"github.com/evfleetops/alloc-core/internal/observability/telemetry"
	"github.com/evfleetops/alloc-core/internal/ports"
	"github.com/evfleetops/alloc-core/internal/solver"
	"github.com/evfleetops/alloc-core/pkg/config"
)

// Exit codes: 0 success, 1 configuration/startup error, 2 no feasible
// result and no fallback could produce one, 3 external dependency
// failure (database or Vault unreachable at startup, or a repository
// read failing during a run). Solver failures fall back to the greedy
// path and queue failures are only logged; neither changes the code.
const (
	exitOK               = 0
	exitStartupError     = 1
	exitInfeasibleResult = 2
	exitRunError         = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: allocator <allocation|scheduling|unified|serve> [flags]")
		return exitStartupError
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return exitStartupError
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return exitStartupError
	}

	if cfg.OpenTelemetry.Enabled {
		tp, err := telemetry.InitTracer(cfg.App.Name, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Error("failed to initialize tracer", zap.Error(err))
			return exitStartupError
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	coord, cleanup, err := buildCoordinator(cfg, logger)
	if err != nil {
		logger.Error("failed to build coordinator", zap.Error(err))
		return exitRunError
	}
	defer cleanup()

	switch args[0] {
	case "serve":
		return serve(coord, cfg, logger)
	case "allocation", "scheduling", "unified":
		return runOnce(coord, args[0], args[1:], logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		return exitStartupError
	}
}

// buildCoordinator wires every adapter behind the coordinator's port
// interfaces: Postgres for fleet/site data, a Vault-backed credential
// source and circuit-breaker-wrapped client for the external solver,
// Redis (falling back to an in-memory cache) for site parameters, and
// NATS or RabbitMQ for publishing results.
func buildCoordinator(cfg *config.Config, logger *zap.Logger) (*coordinator.Coordinator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := postgres.NewConnection(cfg.Database.URL, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
	}
	closers = append(closers, func() { _ = postgres.Close(db) })

	repo := postgres.NewRepository(db, logger)

	appCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("redis not available, falling back to in-memory cache", zap.Error(err))
		appCache = cache.NewLocalCache(time.Minute, logger)
	}
	closers = append(closers, func() { _ = appCache.Close() })
	var siteParams ports.SiteParameterRepository = cache.NewCachedSiteParameters(repo, appCache, 30*time.Second, logger)

	var secrets solver.CredentialSource
	if cfg.Vault.Address != "" {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect vault: %w", err)
		}
		secrets = sm
	} else {
		secrets = noCredentials{}
	}

	breakerManager := circuitbreaker.NewManager(logger)
	httpSolver := solver.NewHTTPSolver(cfg.Solver.Endpoint, breakerManager, secrets, logger)

	mq, err := connectQueue(cfg, logger)
	if err != nil {
		logger.Warn("message queue not available, results will not be published", zap.Error(err))
		mq = nil
	} else {
		closers = append(closers, func() { _ = mq.Close() })
	}

	var publisher ports.ResultPublisher
	if mq != nil {
		publisher = queue.NewResultPublisher(mq)
	}

	prices := priceforecast.NewProvider(priceforecast.DefaultConfig())

	coord := coordinator.New(repo, prices, siteParams, publisher, httpSolver, logger)
	return coord, cleanup, nil
}

type noCredentials struct{}

func (noCredentials) GetSolverCredentials() (string, error) {
	return "", fmt.Errorf("no vault address configured")
}

// connectQueue picks RabbitMQ when the configured URL uses the amqp
// scheme, NATS otherwise.
func connectQueue(cfg *config.Config, logger *zap.Logger) (queue.MessageQueue, error) {
	url := cfg.NATS.URL
	if len(url) >= 4 && url[:4] == "amqp" {
		return queue.NewRabbitMQQueue(url, logger)
	}
	return queue.NewNATSQueue(url, logger)
}

func serve(coord *coordinator.Coordinator, cfg *config.Config, logger *zap.Logger) int {
	srv := fiberserver.New(coord, cfg.CORS, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		logger.Info("starting http server", zap.String("addr", addr))
		if err := srv.Listen(addr); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return exitStartupError
	}
	return exitOK
}

func runOnce(coord *coordinator.Coordinator, command string, args []string, logger *zap.Logger) int {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	siteID := fs.String("site-id", "", "site identifier")
	startTimeStr := fs.String("start-time", "", "run window start, RFC3339")
	windowHours := fs.Int("window-hours", 0, "override the site's default window length in hours")
	allocationWeight := fs.Float64("allocation-weight", 1.0, "objective weight for allocation coverage and cost")
	schedulingWeight := fs.Float64("scheduling-weight", 1.0, "objective weight for charging cost and shortfall")
	targetSOC := fs.Float64("target-soc", 0, "override the site's target state of charge percent")
	siteCapacity := fs.Float64("site-capacity", 0, "override the site's charging capacity in kW")
	allocationTimeLimit := fs.Duration("allocation-time-limit", 0, "time limit for the allocation solver call")
	schedulingTimeLimit := fs.Duration("scheduling-time-limit", 0, "time limit for the charge scheduling solver call")
	integratedTimeLimit := fs.Duration("integrated-time-limit", 0, "time limit for an integrated-mode run")

	if err := fs.Parse(args); err != nil {
		return exitStartupError
	}

	if *siteID == "" {
		fmt.Fprintln(os.Stderr, "--site-id is required")
		return exitStartupError
	}
	startTime := time.Now()
	if *startTimeStr != "" {
		t, err := time.Parse(time.RFC3339, *startTimeStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "--start-time must be RFC3339:", err)
			return exitStartupError
		}
		startTime = t
	}

	mode := map[string]domain.CoordinatorMode{
		"allocation": domain.ModeAllocationOnly,
		"scheduling": domain.ModeSchedulingOnly,
		"unified":    domain.ModeIntegrated,
	}[command]

	runID := fmt.Sprintf("%s-%s-%d", command, *siteID, startTime.Unix())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := coord.Run(ctx, runID, coordinator.RunParams{
		SiteID:              *siteID,
		StartTime:           startTime,
		WindowHours:         *windowHours,
		Mode:                mode,
		AllocationWeight:    *allocationWeight,
		SchedulingWeight:    *schedulingWeight,
		TargetSOCPercent:    *targetSOC,
		SiteCapacityKW:      *siteCapacity,
		AllocationTimeLimit: *allocationTimeLimit,
		SchedulingTimeLimit: *schedulingTimeLimit,
		IntegratedTimeLimit: *integratedTimeLimit,
	})
	if err != nil {
		logger.Error("run failed", zap.String("run_id", runID), zap.Error(err))
		return exitRunError
	}

	logger.Info("run complete",
		zap.String("run_id", runID),
		zap.String("solver_status", string(result.SolverStatus)),
		zap.Float64("objective_value", result.ObjectiveValue),
	)

	if result.SolverStatus == domain.SolverStatusInfeasible {
		return exitInfeasibleResult
	}
	return exitOK
}
