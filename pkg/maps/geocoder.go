package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize canonicalizes an address for cache keying: lowercased,
// commas dropped, runs of whitespace collapsed. "10 Rue de Rivoli,
// Paris" and "10 rue de rivoli paris" resolve to one cache entry.
func Normalize(address string) string {
	s := strings.ToLower(strings.TrimSpace(address))
	s = strings.ReplaceAll(s, ",", " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// GeocoderDeps bundles the collaborators a Geocoder needs.
type GeocoderDeps struct {
	Client  *Client
	Cache   cache.Cacher
	Exec    *resilience.Executor
	Degrade *resilience.DegradationManager
	Quota   *QuotaTracker
	Regions *geo.Index
	Health  *health.Registry
	// Cooldown applies after the provider itself reports quota
	// exhaustion.
	Cooldown time.Duration
}

// Geocoder resolves addresses through the cache first, then the
// provider. Failed lookups and quota stops degrade to the centroid of
// the best-guess region so matching never stalls on an address.
type Geocoder struct {
	client   *Client
	cache    cache.Cacher
	exec     *resilience.Executor
	degrade  *resilience.DegradationManager
	quota    *QuotaTracker
	regions  *geo.Index
	health   *health.Registry
	logger   *slog.Logger
	cooldown time.Duration
	group    singleflight.Group
	now      func() time.Time
}

func NewGeocoder(deps GeocoderDeps) *Geocoder {
	return &Geocoder{
		client:   deps.Client,
		cache:    deps.Cache,
		exec:     deps.Exec,
		degrade:  deps.Degrade,
		quota:    deps.Quota,
		regions:  deps.Regions,
		health:   deps.Health,
		logger:   slog.With("component", "geocoder"),
		cooldown: deps.Cooldown,
		now:      time.Now,
	}
}

// Geocode resolves one address. The returned result always carries a
// usable point; callers inspect Quality to decide how much to trust it.
func (g *Geocoder) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	normalized := Normalize(address)
	if normalized == "" {
		return g.fallbackResult(address, normalized), nil
	}

	key := cache.Key(cache.NSGeocoding, normalized)
	var cached model.GeocodeResult
	if cache.GetJSON(ctx, g.cache, cache.NSGeocoding, key, &cached) {
		return cached, nil
	}

	if !g.quota.Allow() {
		// Cache-only mode: a miss degrades straight to the region
		// centroid instead of burning a call we do not have.
		return g.fallbackResult(address, normalized), nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.resolve(ctx, address, normalized, key)
	})
	if err != nil {
		return model.GeocodeResult{}, err
	}
	return v.(model.GeocodeResult), nil
}

func (g *Geocoder) resolve(ctx context.Context, address, normalized, key string) (model.GeocodeResult, error) {
	result, err := resilience.DoValue(ctx, g.exec, health.ServiceGeocoding, func(ctx context.Context) (model.GeocodeResult, error) {
		return g.client.Geocode(ctx, normalized)
	})
	if err != nil {
		if resilience.Classify(err) == resilience.KindCanceled {
			return model.GeocodeResult{}, err
		}
		g.handleFailure(ctx, err)
		g.logger.Warn("Geocoding failed, using region fallback",
			"address", normalized, "error", err)
		return g.fallbackResult(address, normalized), nil
	}
	g.quota.Consume()

	result.Address = address
	result.Normalized = normalized
	result.ResolvedAt = g.now()
	result = g.checkPlausibility(result)
	if result.Quality == model.QualityFailed {
		// The provider answered but found nothing. Cache the centroid
		// substitute so repeats stop costing quota.
		fb := g.fallbackResult(address, normalized)
		cache.SetJSON(ctx, g.cache, cache.NSGeocoding, key, fb)
		return fb, nil
	}
	cache.SetJSON(ctx, g.cache, cache.NSGeocoding, key, result)
	return result, nil
}

func (g *Geocoder) handleFailure(ctx context.Context, err error) {
	if resilience.Classify(err) == resilience.KindQuotaExhausted {
		g.quota.StartCooldown(g.cooldown)
		if g.health != nil {
			g.health.SetState(health.ServiceGeocoding, health.StateDegraded, "provider quota exhausted")
		}
		return
	}
	if g.degrade != nil {
		g.degrade.Apply(ctx, health.ServiceGeocoding, err)
	}
}

// fallbackResult substitutes the centroid of the best-guess region,
// flagged FAILED so scoring treats the coordinates as unreliable.
func (g *Geocoder) fallbackResult(address, normalized string) model.GeocodeResult {
	region, _ := g.regions.ByAddress(normalized)
	return model.GeocodeResult{
		Address:    address,
		Normalized: normalized,
		Point:      region.Centroid,
		Quality:    model.QualityFailed,
		Provider:   "fallback",
		Region:     region.Name,
		ResolvedAt: g.now(),
	}
}

// checkPlausibility demotes results that land outside every configured
// region bound. A biased query can still return a homonym on another
// continent.
func (g *Geocoder) checkPlausibility(r model.GeocodeResult) model.GeocodeResult {
	if !r.Point.Valid() {
		r.Quality = model.QualityFailed
		return r
	}
	if r.Quality == model.QualityFailed {
		return r
	}
	if region, ok := g.regions.ByPoint(r.Point); ok {
		r.Region = region.Name
		return r
	}
	if g.regions.Default().Contains(r.Point) {
		r.Region = g.regions.Default().Name
		return r
	}
	g.logger.Debug("Geocode outside configured bounds, demoting quality",
		"address", r.Normalized, "lat", r.Point.Lat, "lon", r.Point.Lon)
	r.Quality = model.QualityPartial
	return r
}

// QuotaNearLimit reports whether batch planning should throttle.
func (g *Geocoder) QuotaNearLimit() bool {
	return g.quota.NearLimit()
}

type warmEntry struct {
	Address string               `json:"address"`
	Lat     float64              `json:"lat"`
	Lon     float64              `json:"lon"`
	Quality model.GeocodeQuality `json:"quality,omitempty"`
}

// WarmFromFile preloads the geocoding namespace from a JSON snapshot.
// A missing file is not an error; a malformed one is.
func (g *Geocoder) WarmFromFile(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Debug("No geocoding warm file", "path", path)
			return 0, nil
		}
		return 0, err
	}
	var entries []warmEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("failed to decode warm file: %w", err)
	}

	n := 0
	for _, e := range entries {
		normalized := Normalize(e.Address)
		point := geo.Point{Lat: e.Lat, Lon: e.Lon}
		if normalized == "" || !point.Valid() {
			continue
		}
		quality := e.Quality
		if quality == "" {
			quality = model.QualityApproximate
		}
		result := model.GeocodeResult{
			Address:    e.Address,
			Normalized: normalized,
			Point:      point,
			Quality:    quality,
			Provider:   "warm",
			ResolvedAt: g.now(),
		}
		cache.SetJSON(ctx, g.cache, cache.NSGeocoding, cache.Key(cache.NSGeocoding, normalized), result)
		n++
	}
	g.logger.Info("Warmed geocoding cache", "entries", n, "path", path)
	return n, nil
}
