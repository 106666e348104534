// matchcheck scores one candidate/job pair from JSON files and prints
// the breakdown. It wires the same pipeline as the server, so a pair
// that puzzles the API can be replayed offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/Bapt252/Nextvision-sub001/pkg/batch"
	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/engine"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/maps"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
	"github.com/Bapt252/Nextvision-sub001/pkg/scoring"
	"github.com/Bapt252/Nextvision-sub001/pkg/transport"
	"github.com/Bapt252/Nextvision-sub001/pkg/weights"
)

func main() {
	candidatePath := flag.String("candidate", "candidate.json", "Candidate profile JSON file")
	jobPath := flag.String("job", "job.json", "Job requirement JSON file")
	configPath := flag.String("config", "configs/nextvision.yaml", "Config file")
	asJSON := flag.Bool("json", false, "Print the raw result JSON instead of the breakdown")
	timeout := flag.Duration("timeout", 30*time.Second, "Match timeout")
	flag.Parse()

	// Keep engine chatter off stdout; the breakdown is the output.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(*candidatePath, *jobPath, *configPath, *asJSON, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "matchcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(candidatePath, jobPath, configPath string, asJSON bool, timeout time.Duration) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var candidate model.CandidateProfile
	if err := readJSON(candidatePath, &candidate); err != nil {
		return err
	}
	var job model.JobRequirement
	if err := readJSON(jobPath, &job); err != nil {
		return err
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := eng.Match(ctx, &candidate, &job)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printBreakdown(&result)
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	registry := health.NewRegistry()

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize cache backend: %w", err)
	}
	mlCache, err := cache.NewMultiLevel(cfg.Cache, store, registry)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

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
		mlCache.Close()
		return nil, nil, fmt.Errorf("failed to initialize router: %w", err)
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
	bridge := batch.NewBridge(commute, geocoder, mlCache, cfg.Batch.BridgeResolution)

	eng := engine.New(engine.Deps{
		Scoring:   scoring.NewScorer(cfg.Scoring),
		Transport: bridge,
		Weighter:  weights.NewWeighter(cfg.Weights),
		Cache:     mlCache,
	})
	return eng, func() { mlCache.Close() }, nil
}

func printBreakdown(r *model.MatchResult) {
	fmt.Printf("Candidate %s vs job %s\n", r.CandidateID, r.JobID)
	fmt.Printf("Score: %.3f  %s  (confidence %.2f)\n", r.Score, r.Recommendation, r.Confidence)
	if r.Meta.FromCache {
		fmt.Println("Served from the result cache.")
	}
	fmt.Println()

	fmt.Println("Breakdown:")
	for _, line := range r.Explanations {
		fmt.Printf("  %s\n", line)
	}

	if len(r.Alerts) > 0 {
		fmt.Println("\nAlerts:")
		for _, a := range r.Alerts {
			fmt.Printf("  %s\n", a)
		}
	}

	if t := r.Transport; t != nil && len(t.Assessments) > 0 {
		fmt.Println("\nCommute:")
		for _, a := range t.Assessments {
			mark := " "
			if a.Feasible {
				mark = "*"
			}
			fmt.Printf("  %s %-10s %5.1f min (allowed %d, comfort %.2f, reliability %.2f)\n",
				mark, a.Mode, a.Route.EffectiveMinutes(), a.AllowedMinutes, a.Comfort, a.Reliability)
		}
		if t.BestMode != "" {
			fmt.Printf("  best mode: %s (%s routing)\n", t.BestMode, t.Source)
		}
		for _, rec := range t.Recommendations {
			fmt.Printf("  note: %s\n", rec)
		}
	}
}
