package batch

import (
	"context"
	"fmt"
	"strings"

	h3 "github.com/uber/h3-go/v4"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// defaultBridgeResolution is H3 resolution 8, cells of roughly 460 m
// edge length. Commutes that start and end in the same pair of cells are
// close enough to share a transport analysis.
const defaultBridgeResolution = 8

// TransportScorer is the commute scorer the bridge wraps. Both
// *transport.Scorer and the bridge itself satisfy the engine's
// transport dependency.
type TransportScorer interface {
	Score(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.TransportAnalysis, error)
}

// Geocoder resolves addresses. The bridge only uses the coordinates to
// derive cells; resolution reliability is judged the same way the
// scorer judges it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.GeocodeResult, error)
}

// Bridge memoizes transport analyses for commutes that collapse onto the
// same (home cell, office cell) pair under the same mobility constraints
// and job context. Within a batch, candidates clustered in one area and
// jobs clustered at one office resolve to a handful of cell pairs, so
// most routing calls are saved. Entries live only for the short
// bridge-cache TTL.
//
// The geocode lookups the bridge issues are answered from the geocoder's
// own cache on the second sighting of an address, so wrapping the scorer
// adds no provider traffic.
type Bridge struct {
	inner      TransportScorer
	geocoder   Geocoder
	cache      cache.Cacher
	resolution int
}

// NewBridge wraps inner with the cell-pair memo. A resolution of 0
// selects the default.
func NewBridge(inner TransportScorer, geocoder Geocoder, cacher cache.Cacher, resolution int) *Bridge {
	if resolution <= 0 {
		resolution = defaultBridgeResolution
	}
	return &Bridge{
		inner:      inner,
		geocoder:   geocoder,
		cache:      cacher,
		resolution: resolution,
	}
}

// Score replays a memoized analysis when one exists for the commute's
// cell pair, otherwise it scores through the wrapped scorer and stores
// the outcome. Replayed analyses are re-labelled with the requesting
// pair and marked as cache-sourced.
func (b *Bridge) Score(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.TransportAnalysis, error) {
	key, ok := b.key(ctx, c, j)
	if !ok {
		return b.inner.Score(ctx, c, j)
	}

	var cached model.TransportAnalysis
	if cache.GetJSON(ctx, b.cache, cache.NSBridge, key, &cached) {
		cached.CandidateID = c.ID
		cached.JobID = j.ID
		cached.Source = model.SourceCache
		return cached, nil
	}

	analysis, err := b.inner.Score(ctx, c, j)
	if err != nil {
		return analysis, err
	}
	stored := analysis
	stored.CandidateID = ""
	stored.JobID = ""
	cache.SetJSON(ctx, b.cache, cache.NSBridge, key, stored)
	return analysis, nil
}

// key derives the memo key, or reports false when memoizing would not be
// sound: no cache wired, a full-remote job (the scorer short-circuits
// without routing, bridging would only add geocode lookups), or an
// endpoint that did not resolve reliably.
func (b *Bridge) key(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (string, bool) {
	if b.cache == nil || c == nil || j == nil {
		return "", false
	}
	if j.RemotePolicy == model.RemoteFull {
		return "", false
	}

	home, err := b.geocoder.Geocode(ctx, c.HomeAddress)
	if err != nil || !home.Reliable() {
		return "", false
	}
	office, err := b.geocoder.Geocode(ctx, j.OfficeAddress)
	if err != nil || !office.Reliable() {
		return "", false
	}

	homeCell, err := h3.LatLngToCell(h3.NewLatLng(home.Point.Lat, home.Point.Lon), b.resolution)
	if err != nil {
		return "", false
	}
	officeCell, err := h3.LatLngToCell(h3.NewLatLng(office.Point.Lat, office.Point.Lon), b.resolution)
	if err != nil {
		return "", false
	}

	return cache.Key(cache.NSBridge,
		homeCell.String(),
		officeCell.String(),
		mobilityFingerprint(c.Mobility),
		jobContextFingerprint(j),
	), true
}

// mobilityFingerprint folds everything on the candidate side that the
// scorer reads into a stable string. Keying on the raw mode set alone
// would alias candidates with different commute budgets.
func mobilityFingerprint(m model.MobilityConstraints) string {
	var sb strings.Builder
	for _, mode := range m.AcceptedModes() {
		fmt.Fprintf(&sb, "%s=%d;", mode, m.AllowedMinutes(mode))
	}
	if m.MaxTransfers != nil {
		fmt.Fprintf(&sb, "transfers=%d;", *m.MaxTransfers)
	}
	fmt.Fprintf(&sb, "flex=%t;remote=%d", m.FlexibleHours, m.RemoteDays)
	return sb.String()
}

// jobContextFingerprint folds the job-side inputs of the scorer: remote
// policy and days, parking, flexible hours.
func jobContextFingerprint(j *model.JobRequirement) string {
	return fmt.Sprintf("%s;%d;parking=%t;flex=%t",
		j.RemotePolicy, j.RemoteDays, j.ParkingProvided, j.FlexibleHours)
}
