package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

// RouterDeps bundles the collaborators a Router needs.
type RouterDeps struct {
	Client    *Client
	Cache     cache.Cacher
	Exec      *resilience.Executor
	Degrade   *resilience.DegradationManager
	Health    *health.Registry
	Transport config.TransportConfig
	// FallbackTTL bounds how long straight-line estimates may serve
	// from cache.
	FallbackTTL time.Duration
}

// Router fetches commutes through the cache first, then the provider.
// When routing is unavailable it estimates from straight-line distance
// at per-mode speeds, cached with a shorter TTL so live routes replace
// the estimates quickly.
type Router struct {
	client      *Client
	cache       cache.Cacher
	exec        *resilience.Executor
	degrade     *resilience.DegradationManager
	health      *health.Registry
	speeds      map[model.TransportMode]float64
	rush        []config.RushWindow
	rushFactor  float64
	loc         *time.Location
	fallbackTTL time.Duration
	group       singleflight.Group
	now         func() time.Time
}

func NewRouter(deps RouterDeps) (*Router, error) {
	loc, err := time.LoadLocation(deps.Transport.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", deps.Transport.Timezone, err)
	}
	speeds := make(map[model.TransportMode]float64, len(deps.Transport.FallbackSpeedsKmh))
	for m, s := range deps.Transport.FallbackSpeedsKmh {
		speeds[model.TransportMode(m)] = s
	}
	return &Router{
		client:      deps.Client,
		cache:       deps.Cache,
		exec:        deps.Exec,
		degrade:     deps.Degrade,
		health:      deps.Health,
		speeds:      speeds,
		rush:        deps.Transport.RushHours,
		rushFactor:  deps.Transport.RushHourFactor,
		loc:         loc,
		fallbackTTL: deps.FallbackTTL,
		now:         time.Now,
	}, nil
}

// Location returns the timezone commute times are evaluated in.
func (r *Router) Location() *time.Location {
	return r.loc
}

// Route returns the commute for one mode. Departures are truncated to
// the hour for cache keying: traffic patterns do not shift faster than
// that.
func (r *Router) Route(ctx context.Context, origin, dest geo.Point, mode model.TransportMode, departure time.Time) (model.Route, error) {
	hour := departure.In(r.loc).Truncate(time.Hour)
	key := cache.Key(cache.NSRouting,
		origin.Key(), dest.Key(), string(mode), hour.Format(time.RFC3339))

	var cached model.Route
	if cache.GetJSON(ctx, r.cache, cache.NSRouting, key, &cached) {
		return cached, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, origin, dest, mode, departure, key)
	})
	if err != nil {
		return model.Route{}, err
	}
	return v.(model.Route), nil
}

func (r *Router) resolve(ctx context.Context, origin, dest geo.Point, mode model.TransportMode, departure time.Time, key string) (model.Route, error) {
	route, err := resilience.DoValue(ctx, r.exec, health.ServiceRouting, func(ctx context.Context) (model.Route, error) {
		return r.client.Directions(ctx, origin, dest, mode, departure)
	})
	if err == nil {
		cache.SetJSON(ctx, r.cache, cache.NSRouting, key, route)
		return route, nil
	}
	if resilience.Classify(err) == resilience.KindCanceled {
		return model.Route{}, err
	}
	if !errors.Is(err, ErrNoRoute) {
		if r.degrade != nil {
			r.degrade.Apply(ctx, health.ServiceRouting, err)
		}
		slog.Warn("Routing failed, estimating from distance",
			"mode", mode, "error", err)
	}

	fb := r.estimate(origin, dest, mode, departure)
	cache.SetJSONTTL(ctx, r.cache, cache.NSRouting, key, fb, r.fallbackTTL)
	return fb, nil
}

// estimate builds a straight-line commute at the mode's fallback speed.
// Rush-hour departures inflate motorized modes by the configured factor.
func (r *Router) estimate(origin, dest geo.Point, mode model.TransportMode, departure time.Time) model.Route {
	dist := geo.Distance(origin, dest)
	speed := r.speeds[mode]
	if speed <= 0 {
		speed = 20
	}
	minutes := geo.TravelMinutes(dist, speed)
	if minutes < 1 {
		minutes = 1
	}

	route := model.Route{
		Origin:          origin.Round6(),
		Destination:     dest.Round6(),
		Mode:            mode,
		DistanceMeters:  dist,
		DurationMinutes: minutes,
		TrafficFactor:   1.0,
		Source:          model.SourceFallback,
		ComputedAt:      r.now(),
	}
	if r.InRushHour(departure) && (mode == model.ModeDriving || mode == model.ModePublicTransit) {
		route.TrafficFactor = r.rushFactor
		route.TrafficMinutes = minutes * r.rushFactor
	}
	return route
}

// InRushHour reports whether t falls inside a weekday rush window.
func (r *Router) InRushHour(t time.Time) bool {
	lt := t.In(r.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	for _, w := range r.rush {
		if lt.Hour() >= w.StartHour && lt.Hour() < w.EndHour {
			return true
		}
	}
	return false
}

// NextCommuteDeparture picks the reference departure used for scoring:
// the next weekday morning at half past eight, local time.
func (r *Router) NextCommuteDeparture(from time.Time) time.Time {
	lt := from.In(r.loc)
	depart := time.Date(lt.Year(), lt.Month(), lt.Day(), 8, 30, 0, 0, r.loc)
	for !depart.After(lt) || isWeekend(depart) {
		depart = depart.AddDate(0, 0, 1)
	}
	return depart
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
