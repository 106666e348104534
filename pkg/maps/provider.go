// Package maps talks to the geocoding and directions provider and turns
// its wire format into domain results. Client is the raw HTTP layer;
// Geocoder and Router wrap it with caching, quota management, retries
// and offline fallbacks.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Provider-level status values carried in the response body.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
)

// ErrNoRoute marks origin/destination pairs the provider cannot connect
// for the requested mode.
var ErrNoRoute = errors.New("no route found")

// Client is the raw provider client. BaseURL is overridable for tests.
type Client struct {
	BaseURL string

	http     *http.Client
	logger   *slog.Logger
	name     string
	key      string
	language string
	region   string
	soft     time.Duration
}

func NewClient(cfg config.MapsConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		BaseURL:  base,
		http:     &http.Client{Timeout: cfg.Timeout.Std()},
		logger:   slog.With("component", "maps_client"),
		name:     cfg.Provider,
		key:      cfg.Key,
		language: cfg.Language,
		region:   cfg.RegionBias,
		soft:     cfg.SoftTimeout.Std(),
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		PartialMatch     bool   `json:"partial_match"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves a free-form address. A response without results is
// not an error: it comes back as a FAILED-quality result for the caller
// to substitute.
func (c *Client) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	u, err := url.Parse(c.BaseURL + "/geocode/json")
	if err != nil {
		return model.GeocodeResult{}, err
	}
	q := u.Query()
	q.Add("address", address)
	if c.language != "" {
		q.Add("language", c.language)
	}
	if c.region != "" {
		q.Add("region", c.region)
	}
	if c.key != "" {
		q.Add("key", c.key)
	}
	u.RawQuery = q.Encode()

	var resp geocodeResponse
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return model.GeocodeResult{}, err
	}
	if err := statusError(resp.Status, resp.ErrorMessage, health.ServiceGeocoding); err != nil {
		return model.GeocodeResult{}, err
	}
	if len(resp.Results) == 0 {
		return model.GeocodeResult{
			Address:  address,
			Quality:  model.QualityFailed,
			Provider: c.name,
		}, nil
	}

	best := resp.Results[0]
	return model.GeocodeResult{
		Address:  address,
		Point:    geo.Point{Lat: best.Geometry.Location.Lat, Lon: best.Geometry.Location.Lng},
		Quality:  qualityFor(best.Geometry.LocationType, best.PartialMatch),
		Provider: c.name,
	}, nil
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Steps []struct {
				TravelMode string `json:"travel_mode"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
	ErrorMessage string `json:"error_message"`
}

// Directions fetches the commute for one mode. Durations arrive in
// seconds and are converted to minutes here.
func (c *Client) Directions(ctx context.Context, origin, dest geo.Point, mode model.TransportMode, departure time.Time) (model.Route, error) {
	u, err := url.Parse(c.BaseURL + "/directions/json")
	if err != nil {
		return model.Route{}, err
	}
	q := u.Query()
	q.Add("origin", fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lon))
	q.Add("destination", fmt.Sprintf("%.6f,%.6f", dest.Lat, dest.Lon))
	q.Add("mode", providerMode(mode))
	if !departure.IsZero() {
		q.Add("departure_time", strconv.FormatInt(departure.Unix(), 10))
	}
	if c.language != "" {
		q.Add("language", c.language)
	}
	if c.key != "" {
		q.Add("key", c.key)
	}
	u.RawQuery = q.Encode()

	var resp directionsResponse
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return model.Route{}, err
	}
	if err := statusError(resp.Status, resp.ErrorMessage, health.ServiceRouting); err != nil {
		return model.Route{}, err
	}
	if len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return model.Route{}, resilience.E(resilience.KindClient, health.ServiceRouting, ErrNoRoute)
	}

	var durationSec, trafficSec, distanceM, transitSteps int
	for _, leg := range resp.Routes[0].Legs {
		durationSec += leg.Duration.Value
		trafficSec += leg.DurationInTraffic.Value
		distanceM += leg.Distance.Value
		for _, step := range leg.Steps {
			if step.TravelMode == "TRANSIT" {
				transitSteps++
			}
		}
	}

	route := model.Route{
		Origin:          origin.Round6(),
		Destination:     dest.Round6(),
		Mode:            mode,
		DistanceMeters:  float64(distanceM),
		DurationMinutes: float64(durationSec) / 60,
		TrafficFactor:   1.0,
		Source:          model.SourceLive,
		ComputedAt:      time.Now(),
	}
	if trafficSec > 0 {
		route.TrafficMinutes = float64(trafficSec) / 60
		if durationSec > 0 && trafficSec > durationSec {
			route.TrafficFactor = float64(trafficSec) / float64(durationSec)
		}
	}
	if mode == model.ModePublicTransit && transitSteps > 1 {
		route.Transfers = transitSteps - 1
	}
	return route, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if elapsed := time.Since(start); c.soft > 0 && elapsed > c.soft {
		c.logger.Warn("Slow provider call", "url", redactKey(rawURL), "elapsed", elapsed)
	}
	if resp.StatusCode != http.StatusOK {
		return &resilience.StatusError{Code: resp.StatusCode, URL: redactKey(rawURL)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	return nil
}

// statusError maps provider body statuses onto error kinds so the retry
// executor treats each correctly. ZERO_RESULTS is an answer, not an
// error.
func statusError(status, message, service string) error {
	switch status {
	case statusOK, statusZeroResults:
		return nil
	case statusOverQueryLimit:
		return resilience.E(resilience.KindQuotaExhausted, service,
			fmt.Errorf("provider over query limit: %s", message))
	case statusRequestDenied, statusInvalidRequest:
		return resilience.E(resilience.KindClient, service,
			fmt.Errorf("provider rejected request (%s): %s", status, message))
	default:
		return resilience.E(resilience.KindServer, service,
			fmt.Errorf("provider error (%s): %s", status, message))
	}
}

func qualityFor(locationType string, partial bool) model.GeocodeQuality {
	if partial {
		return model.QualityPartial
	}
	switch locationType {
	case "ROOFTOP":
		return model.QualityExact
	case "RANGE_INTERPOLATED", "GEOMETRIC_CENTER":
		return model.QualityApproximate
	default:
		return model.QualityPartial
	}
}

func providerMode(mode model.TransportMode) string {
	switch mode {
	case model.ModePublicTransit:
		return "transit"
	case model.ModeCycling:
		return "bicycling"
	case model.ModeWalking:
		return "walking"
	default:
		return "driving"
	}
}

// redactKey strips the API key from URLs before they reach logs.
func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
