package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// The commute calendar needs the configured timezone even on hosts
	// without a system zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/Bapt252/Nextvision-sub001/internal/api"
	"github.com/Bapt252/Nextvision-sub001/pkg/batch"
	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/engine"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/logging"
	"github.com/Bapt252/Nextvision-sub001/pkg/maps"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/probe"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
	"github.com/Bapt252/Nextvision-sub001/pkg/scoring"
	"github.com/Bapt252/Nextvision-sub001/pkg/transport"
	"github.com/Bapt252/Nextvision-sub001/pkg/version"
	"github.com/Bapt252/Nextvision-sub001/pkg/weights"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault("configs/nextvision.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/nextvision.yaml")
		return
	}

	if err := run(context.Background(), "configs/nextvision.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A .env file feeds the config env fallbacks (MAPS_API_KEY,
	// REDIS_ADDR); absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(logging.Config{
		ServerPath:    cfg.Log.Server.Path,
		ServerLevel:   cfg.Log.Server.Level,
		RequestsPath:  cfg.Log.Requests.Path,
		RequestsLevel: cfg.Log.Requests.Level,
		Console:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Nextvision started", "version", version.Version, "environment", cfg.Environment)

	registry := health.NewRegistry()

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache backend: %w", err)
	}
	mlCache, err := cache.NewMultiLevel(cfg.Cache, store, registry)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer mlCache.Close()

	svcs, err := initMatchServices(cfg, mlCache, registry)
	if err != nil {
		return err
	}

	if cfg.Maps.WarmFile != "" {
		n, err := svcs.Geocoder.WarmFromFile(ctx, cfg.Maps.WarmFile)
		if err != nil {
			slog.Warn("Geocoding warm file not loaded", "path", cfg.Maps.WarmFile, "error", err)
		} else {
			slog.Info("Geocoding cache warmed", "path", cfg.Maps.WarmFile, "entries", n)
		}
	}

	results := probe.Run(ctx, startupProbes(cfg, store, svcs.Weighter))
	if err := probe.Analyze(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, cfg, svcs, mlCache, registry)
}

// MatchServices bundles the wired match pipeline.
type MatchServices struct {
	Geocoder     *maps.Geocoder
	Router       *maps.Router
	Weighter     *weights.Weighter
	Engine       *engine.Engine
	Orchestrator *batch.Orchestrator
}

func initMatchServices(cfg *config.Config, mlCache *cache.MultiLevel, registry *health.Registry) (*MatchServices, error) {
	client := maps.NewClient(cfg.Maps)
	breakers := resilience.NewBreakerRegistry(cfg.Resilience.Breaker, registry)
	exec := resilience.NewExecutor(cfg.Resilience.Retry, breakers, registry)
	degrade := resilience.NewDegradationManager(registry)

	router, err := maps.NewRouter(maps.RouterDeps{
		Client:      client,
		Cache:       mlCache,
		Exec:        exec,
		Degrade:     degrade,
		Health:      registry,
		Transport:   cfg.Transport,
		FallbackTTL: cfg.Cache.TTL.RoutingFallback.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	quota := maps.NewQuotaTracker(cfg.Maps.DailyQuota, cfg.Maps.QuotaWarnRatio, router.Location(), registry)
	geocoder := maps.NewGeocoder(maps.GeocoderDeps{
		Client:   client,
		Cache:    mlCache,
		Exec:     exec,
		Degrade:  degrade,
		Quota:    quota,
		Regions:  maps.RegionsFromConfig(cfg.Maps),
		Health:   registry,
		Cooldown: cfg.Resilience.QuotaCooldown.Std(),
	})

	commute := transport.NewScorer(transport.Deps{
		Geocoder:  geocoder,
		Router:    router,
		Transport: cfg.Transport,
	})
	// Batches reuse commute analyses across candidates from the same
	// neighbourhood, so the engine scores through the bridge.
	bridge := batch.NewBridge(commute, geocoder, mlCache, cfg.Batch.BridgeResolution)

	weighter := weights.NewWeighter(cfg.Weights)
	eng := engine.New(engine.Deps{
		Scoring:   scoring.NewScorer(cfg.Scoring),
		Transport: bridge,
		Weighter:  weighter,
		Cache:     mlCache,
	})

	orchestrator := batch.New(batch.Deps{
		Matcher: eng,
		Cache:   mlCache,
		Quota:   geocoder,
		Batch:   cfg.Batch,
	})

	return &MatchServices{
		Geocoder:     geocoder,
		Router:       router,
		Weighter:     weighter,
		Engine:       eng,
		Orchestrator: orchestrator,
	}, nil
}

func startupProbes(cfg *config.Config, store cache.RemoteStore, weighter *weights.Weighter) []probe.Probe {
	return []probe.Probe{
		{
			Name:     "Weight tables",
			Critical: true,
			Check: func(context.Context) error {
				// A base vector that cannot normalize poisons every
				// match, so it fails startup.
				_, err := weighter.For(&model.CandidateProfile{}, true)
				return err
			},
		},
		{
			Name: "Cache backend",
			Check: func(ctx context.Context) error {
				return store.Ping(ctx)
			},
		},
		{
			Name: "Maps provider",
			Check: func(context.Context) error {
				if cfg.Maps.Key == "" {
					return errors.New("no API key configured, commutes fall back to straight-line estimates")
				}
				return nil
			},
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, svcs *MatchServices, mlCache *cache.MultiLevel, registry *health.Registry) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewMatchHandler(svcs.Engine, cfg.Batch.MatchTimeout.Std()),
		api.NewBatchHandler(svcs.Orchestrator),
		api.NewHealthHandler(registry),
		api.NewStatsHandler(mlCache, registry),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
