// Package config loads and validates the engine configuration. Defaults
// come first, a YAML file is merged over them, and missing secrets fall
// back to environment variables. Outside the development environment,
// unknown configuration keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config holds the application configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Maps        MapsConfig       `yaml:"maps"`
	Cache       CacheConfig      `yaml:"cache"`
	Resilience  ResilienceConfig `yaml:"resilience"`
	Transport   TransportConfig  `yaml:"transport"`
	Scoring     ScoringConfig    `yaml:"scoring"`
	Weights     WeightsConfig    `yaml:"weights"`
	Batch       BatchConfig      `yaml:"batch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MapsConfig holds settings for the geocoding and routing provider.
type MapsConfig struct {
	Provider       string         `yaml:"provider"`
	BaseURL        string         `yaml:"base_url"`
	Key            string         `yaml:"key"`
	Language       string         `yaml:"language"`
	RegionBias     string         `yaml:"region_bias"`
	Timeout        Duration       `yaml:"timeout"`
	SoftTimeout    Duration       `yaml:"soft_timeout"`
	DailyQuota     int            `yaml:"daily_quota"`
	QuotaWarnRatio float64        `yaml:"quota_warn_ratio"`
	WarmFile       string         `yaml:"warm_file"`
	DefaultRegion  RegionConfig   `yaml:"default_region"`
	Regions        []RegionConfig `yaml:"regions"`
}

// RegionConfig describes a fallback region: its centroid, a lat/lon
// bounding box and the postal prefixes that hint an address belongs to it.
type RegionConfig struct {
	Name           string   `yaml:"name"`
	Lat            float64  `yaml:"lat"`
	Lon            float64  `yaml:"lon"`
	MinLat         float64  `yaml:"min_lat"`
	MinLon         float64  `yaml:"min_lon"`
	MaxLat         float64  `yaml:"max_lat"`
	MaxLon         float64  `yaml:"max_lon"`
	PostalPrefixes []string `yaml:"postal_prefixes"`
}

// CacheConfig holds multi-level cache settings.
type CacheConfig struct {
	Backend        string         `yaml:"backend"`
	Redis          RedisConfig    `yaml:"redis"`
	SQLitePath     string         `yaml:"sqlite_path"`
	L1Size         int            `yaml:"l1_size"`
	L1PromoteTTL   Duration       `yaml:"l1_promote_ttl"`
	ReconnectEvery Duration       `yaml:"reconnect_every"`
	TTL            CacheTTLConfig `yaml:"ttl"`
}

// RedisConfig holds the remote cache store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheTTLConfig holds the per-namespace TTLs.
type CacheTTLConfig struct {
	Geocoding       Duration `yaml:"geocoding"`
	Routing         Duration `yaml:"routing"`
	RoutingFallback Duration `yaml:"routing_fallback"`
	MatchResult     Duration `yaml:"match_result"`
	Bridge          Duration `yaml:"bridge"`
}

// ResilienceConfig holds circuit breaker and retry settings.
type ResilienceConfig struct {
	Breaker       BreakerConfig `yaml:"breaker"`
	Retry         RetryConfig   `yaml:"retry"`
	QuotaCooldown Duration      `yaml:"quota_cooldown"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold  int      `yaml:"failure_threshold"`
	RecoveryTimeout   Duration `yaml:"recovery_timeout"`
	HalfOpenSuccesses int      `yaml:"half_open_successes"`
}

// RetryConfig holds retry executor settings.
type RetryConfig struct {
	Strategy    string   `yaml:"strategy"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	MaxElapsed  Duration `yaml:"max_elapsed"`
}

// TransportConfig holds commute scoring settings.
type TransportConfig struct {
	Tolerance           float64            `yaml:"tolerance"`
	DefaultMaxTransfers int                `yaml:"default_max_transfers"`
	Timezone            string             `yaml:"timezone"`
	RushHours           []RushWindow       `yaml:"rush_hours"`
	// RushHourFactor inflates estimated driving and transit durations
	// when the provider gives no in-traffic figure. Must be >= 1.
	RushHourFactor    float64            `yaml:"rush_hour_factor"`
	FallbackSpeedsKmh map[string]float64 `yaml:"fallback_speeds_kmh"`
	Comfort           map[string]float64 `yaml:"comfort"`
	Reliability       map[string]float64 `yaml:"reliability"`
}

// RushWindow is a weekday rush-hour window, hours in [0, 24).
type RushWindow struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// ScoringConfig holds the semantic, sectoral and penalty tables.
type ScoringConfig struct {
	// Synonyms maps a canonical skill to aliases with match confidence.
	Synonyms map[string]map[string]float64 `yaml:"synonyms"`
	// SectorFamilies group sectors that transfer well into each other.
	SectorFamilies []SectorFamily `yaml:"sector_families"`
	// SectorIncompatibilities lists sector pairs that rarely convert.
	// Their score doubles as the multiplicative penalty on the final.
	SectorIncompatibilities []SectorPair `yaml:"sector_incompatibilities"`
	DefaultSectorScore      float64      `yaml:"default_sector_score"`
	// OverqualPenalties is indexed by hierarchical gap; the last entry
	// applies to any larger gap.
	OverqualPenalties []float64 `yaml:"overqual_penalties"`
	// MotivationThemes maps a motivation theme to the evidence keywords
	// that signal it. Themes without a fulfilment rule are ignored.
	MotivationThemes map[string][]string `yaml:"motivation_themes"`
	// MotivationConfidence is the minimum share of a candidate's
	// motivation evidence that must be recognized before the component
	// counts; below it the weight is redistributed.
	MotivationConfidence float64 `yaml:"motivation_confidence"`
}

// SectorFamily names a group of related sectors and the score a
// cross-family-member match earns.
type SectorFamily struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Score   float64  `yaml:"score"`
}

// SectorPair marks two sectors as incompatible with the given score.
type SectorPair struct {
	A     string  `yaml:"a"`
	B     string  `yaml:"b"`
	Score float64 `yaml:"score"`
}

// WeightsConfig holds the base component weights and the listening-reason
// adjustments, keyed reason -> component -> delta.
type WeightsConfig struct {
	Base                map[string]float64            `yaml:"base"`
	Adjustments         map[string]map[string]float64 `yaml:"adjustments"`
	ManyExperienceCount int                           `yaml:"many_experience_count"`
}

// BatchConfig holds batch orchestration settings.
type BatchConfig struct {
	MaxConcurrency   int      `yaml:"max_concurrency"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkTimeout     Duration `yaml:"chunk_timeout"`
	MatchTimeout     Duration `yaml:"match_timeout"`
	BridgeResolution int      `yaml:"bridge_resolution"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address: "localhost:8050",
		},
		Maps: MapsConfig{
			Provider:       "google",
			BaseURL:        "https://maps.googleapis.com",
			Key:            "",
			Language:       "fr",
			RegionBias:     "fr",
			Timeout:        Duration(10 * time.Second),
			SoftTimeout:    Duration(5 * time.Second),
			DailyQuota:     25000,
			QuotaWarnRatio: 0.9,
			WarmFile:       "",
			DefaultRegion: RegionConfig{
				Name: "france",
				Lat:  46.2276, Lon: 2.2137,
				MinLat: 41.0, MinLon: -5.5, MaxLat: 51.5, MaxLon: 10.0,
			},
			Regions: []RegionConfig{
				{
					Name: "ile_de_france",
					Lat:  48.8566, Lon: 2.3522,
					MinLat: 48.1, MinLon: 1.4, MaxLat: 49.3, MaxLon: 3.6,
					PostalPrefixes: []string{"75", "77", "78", "91", "92", "93", "94", "95"},
				},
				{
					Name: "auvergne_rhone_alpes",
					Lat:  45.7640, Lon: 4.8357,
					MinLat: 44.1, MinLon: 2.0, MaxLat: 46.8, MaxLon: 7.2,
					PostalPrefixes: []string{"69", "38", "42", "63", "73", "74"},
				},
				{
					Name: "provence_alpes_cote_azur",
					Lat:  43.2965, Lon: 5.3698,
					MinLat: 42.9, MinLon: 4.2, MaxLat: 45.1, MaxLon: 7.8,
					PostalPrefixes: []string{"13", "83", "84", "06", "04", "05"},
				},
			},
		},
		Cache: CacheConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			SQLitePath:     "./data/nextvision-cache.db",
			L1Size:         1000,
			L1PromoteTTL:   Duration(5 * time.Minute),
			ReconnectEvery: Duration(30 * time.Second),
			TTL: CacheTTLConfig{
				Geocoding:       Duration(Day),
				Routing:         Duration(1 * time.Hour),
				RoutingFallback: Duration(30 * time.Minute),
				MatchResult:     Duration(15 * time.Minute),
				Bridge:          Duration(5 * time.Minute),
			},
		},
		Resilience: ResilienceConfig{
			Breaker: BreakerConfig{
				FailureThreshold:  5,
				RecoveryTimeout:   Duration(60 * time.Second),
				HalfOpenSuccesses: 3,
			},
			Retry: RetryConfig{
				Strategy:    "jittered",
				MaxAttempts: 5,
				BaseDelay:   Duration(500 * time.Millisecond),
				MaxDelay:    Duration(30 * time.Second),
				MaxElapsed:  Duration(2 * time.Minute),
			},
			QuotaCooldown: Duration(1 * time.Hour),
		},
		Transport: TransportConfig{
			Tolerance:           0.15,
			DefaultMaxTransfers: 2,
			Timezone:            "Europe/Paris",
			RushHours: []RushWindow{
				{StartHour: 7, EndHour: 9},
				{StartHour: 17, EndHour: 19},
			},
			RushHourFactor: 1.3,
			FallbackSpeedsKmh: map[string]float64{
				"walking":        5,
				"cycling":        15,
				"driving":        30,
				"public_transit": 20,
			},
			Comfort: map[string]float64{
				"public_transit": 0.65,
				"driving":        0.80,
				"cycling":        0.55,
				"walking":        0.50,
			},
			Reliability: map[string]float64{
				"public_transit": 0.75,
				"driving":        0.65,
				"cycling":        0.85,
				"walking":        0.95,
			},
		},
		Scoring: ScoringConfig{
			Synonyms: map[string]map[string]float64{
				"javascript": {"js": 0.90, "typescript": 0.80, "node.js": 0.75},
				"python":     {"py": 0.90, "django": 0.75, "flask": 0.72},
				"react":      {"reactjs": 0.95, "react.js": 0.95, "next.js": 0.80},
				"go":         {"golang": 0.95},
				"postgresql": {"postgres": 0.95, "sql": 0.70},
				"java":       {"kotlin": 0.75, "spring": 0.78},
				"management": {"leadership": 0.80, "team management": 0.90},
				"accounting": {"bookkeeping": 0.85, "comptabilite": 0.90},
			},
			SectorFamilies: []SectorFamily{
				{Name: "business", Members: []string{"finance", "accounting", "consulting", "insurance"}, Score: 0.85},
				{Name: "commerce", Members: []string{"retail", "marketing", "hospitality"}, Score: 0.80},
				{Name: "engineering", Members: []string{"tech", "telecom", "industry"}, Score: 0.85},
				{Name: "public", Members: []string{"education", "healthcare", "administration"}, Score: 0.80},
			},
			SectorIncompatibilities: []SectorPair{
				{A: "tech", B: "accounting", Score: 0.5},
				{A: "tech", B: "hospitality", Score: 0.55},
				{A: "healthcare", B: "construction", Score: 0.5},
				{A: "legal", B: "construction", Score: 0.55},
			},
			DefaultSectorScore: 0.6,
			OverqualPenalties:  []float64{1.0, 0.9, 0.7, 0.5},
			MotivationThemes: map[string][]string{
				"flexibility":  {"remote", "télétravail", "teletravail", "flexible", "flexibilité", "équilibre", "work-life"},
				"growth":       {"growth", "évolution", "evolution", "carrière", "career", "learning", "apprendre", "progression", "responsabilités"},
				"compensation": {"salaire", "salary", "rémunération", "remuneration", "pay"},
			},
			MotivationConfidence: 0.3,
		},
		Weights: WeightsConfig{
			Base: map[string]float64{
				model.ComponentSemantic:     0.27,
				model.ComponentHierarchical: 0.14,
				model.ComponentCompensation: 0.18,
				model.ComponentExperience:   0.15,
				model.ComponentLocation:     0.13,
				model.ComponentSector:       0.05,
				model.ComponentMotivations:  0.08,
			},
			Adjustments: map[string]map[string]float64{
				string(model.ReasonTooFar):       {model.ComponentLocation: 0.05, model.ComponentSemantic: -0.05},
				string(model.ReasonUnderpaid):    {model.ComponentCompensation: 0.05, model.ComponentSemantic: -0.05},
				string(model.ReasonCareerGrowth): {model.ComponentMotivations: 0.04, model.ComponentSemantic: -0.04},
				"many_experiences":               {model.ComponentExperience: 0.03, model.ComponentSemantic: -0.03},
			},
			ManyExperienceCount: 4,
		},
		Batch: BatchConfig{
			MaxConcurrency:   10,
			ChunkSize:        50,
			ChunkTimeout:     Duration(60 * time.Second),
			MatchTimeout:     Duration(30 * time.Second),
			BridgeResolution: 8,
		},
	}
}

// Load loads the configuration from the given path. If the file does not
// exist it is created with default values. Unknown keys in the file are
// an error unless the environment is development.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		// First run: write defaults so the file is editable.
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
		applyEnvFallbacks(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvFallbacks(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse merges YAML data over the defaults. A strict decode runs first;
// when it trips on unknown keys the data is re-read leniently, and the
// lenient result is only accepted in the development environment.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	strictErr := dec.Decode(cfg)
	if strictErr == nil || errors.Is(strictErr, io.EOF) {
		return cfg, nil
	}

	lenient := DefaultConfig()
	if err := yaml.Unmarshal(data, lenient); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if lenient.Environment != EnvDevelopment {
		return nil, fmt.Errorf("config rejected in %q environment: %w", lenient.Environment, strictErr)
	}
	return lenient, nil
}

// applyEnvFallbacks fills empty secrets from the environment. Values in
// the file always win; nothing is saved back to disk.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Maps.Key == "" {
		if key := os.Getenv("MAPS_API_KEY"); key != "" {
			cfg.Maps.Key = key
		}
	}
	if cfg.Cache.Redis.Addr == "" {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cfg.Cache.Redis.Addr = addr
		}
	}
	if cfg.Cache.Redis.Password == "" {
		if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
			cfg.Cache.Redis.Password = pw
		}
	}
	if env := os.Getenv("NEXTVISION_ENV"); env != "" && cfg.Environment == EnvDevelopment {
		cfg.Environment = env
	}
}

// Validate checks cross-field invariants that a merged config must hold.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Resilience.Retry.Strategy {
	case "fixed", "linear", "exponential", "jittered", "fibonacci", "adaptive":
	default:
		return fmt.Errorf("unknown retry strategy %q", c.Resilience.Retry.Strategy)
	}

	if c.Maps.DailyQuota <= 0 {
		return fmt.Errorf("maps.daily_quota must be positive, got %d", c.Maps.DailyQuota)
	}
	if c.Maps.QuotaWarnRatio <= 0 || c.Maps.QuotaWarnRatio > 1 {
		return fmt.Errorf("maps.quota_warn_ratio must be in (0, 1], got %.2f", c.Maps.QuotaWarnRatio)
	}
	if c.Resilience.Breaker.FailureThreshold <= 0 || c.Resilience.Breaker.HalfOpenSuccesses <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Resilience.Retry.MaxAttempts)
	}
	if c.Transport.Tolerance < 0 {
		return fmt.Errorf("transport.tolerance must not be negative, got %.2f", c.Transport.Tolerance)
	}
	for _, w := range c.Transport.RushHours {
		if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
			return fmt.Errorf("invalid rush window %d-%d", w.StartHour, w.EndHour)
		}
	}
	if c.Transport.RushHourFactor < 1 {
		return fmt.Errorf("transport.rush_hour_factor must be at least 1, got %.2f", c.Transport.RushHourFactor)
	}
	for mode, speed := range c.Transport.FallbackSpeedsKmh {
		if !model.KnownMode(model.TransportMode(mode)) {
			return fmt.Errorf("unknown transport mode %q in fallback speeds", mode)
		}
		if speed <= 0 {
			return fmt.Errorf("fallback speed for %s must be positive", mode)
		}
	}
	if len(c.Scoring.OverqualPenalties) == 0 {
		return fmt.Errorf("scoring.overqual_penalties must not be empty")
	}
	for i, p := range c.Scoring.OverqualPenalties {
		if p <= 0 || p > 1 {
			return fmt.Errorf("scoring.overqual_penalties[%d] must be in (0, 1], got %.2f", i, p)
		}
	}
	if c.Scoring.MotivationConfidence < 0 || c.Scoring.MotivationConfidence > 1 {
		return fmt.Errorf("scoring.motivation_confidence must be in [0, 1], got %.2f", c.Scoring.MotivationConfidence)
	}

	var sum float64
	for name, w := range c.Weights.Base {
		known := false
		for _, comp := range model.Components() {
			if comp == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown component %q in weights.base", name)
		}
		if w < 0 {
			return fmt.Errorf("weight for %s must not be negative", name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights.base must sum to 1.0, got %.6f", sum)
	}

	if c.Batch.MaxConcurrency < 1 || c.Batch.ChunkSize < 1 {
		return fmt.Errorf("batch concurrency and chunk size must be positive")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Nextvision Configuration
# ------------------------
# Supported duration units: ns, us, ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Inject comments for enum fields so a generated file is self-describing.
	reEnv := regexp.MustCompile(`(?m)^environment:`)
	data = reEnv.ReplaceAll(data, []byte("# Options: development, staging, production, testing\nenvironment:"))

	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: memory, redis, sqlite\n${1}backend:"))

	reStrategy := regexp.MustCompile(`(?m)^(\s+)strategy:`)
	data = reStrategy.ReplaceAll(data, []byte("${1}# Options: fixed, linear, exponential, jittered, fibonacci, adaptive\n${1}strategy:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
