package geo

import (
	"strings"

	"github.com/paulmach/orb"
)

// Region describes a geographic area used for geocoding fallbacks and
// plausibility checks: results landing outside the region's bound are
// suspect, and failed lookups fall back to the region centroid.
type Region struct {
	Name           string
	Centroid       Point
	Bound          orb.Bound
	PostalPrefixes []string
}

// Contains reports whether the point falls inside the region's bound.
func (r Region) Contains(p Point) bool {
	return r.Bound.Contains(orb.Point{p.Lon, p.Lat})
}

// Index resolves addresses and points to regions. The zero Index matches
// nothing and falls back to its default region.
type Index struct {
	regions  []Region
	fallback Region
}

// NewIndex builds an Index from the configured regions. The default region
// is used when no postal prefix or bound matches.
func NewIndex(regions []Region, fallback Region) *Index {
	return &Index{regions: regions, fallback: fallback}
}

// Default returns the fallback region.
func (ix *Index) Default() Region {
	return ix.fallback
}

// ByAddress guesses the region from postal-prefix fragments in a
// normalized address. Returns the fallback region when nothing matches.
func (ix *Index) ByAddress(normalized string) (Region, bool) {
	for _, r := range ix.regions {
		for _, prefix := range r.PostalPrefixes {
			if prefix != "" && containsToken(normalized, prefix) {
				return r, true
			}
		}
	}
	return ix.fallback, false
}

// ByPoint returns the first region whose bound contains the point.
func (ix *Index) ByPoint(p Point) (Region, bool) {
	for _, r := range ix.regions {
		if r.Contains(p) {
			return r, true
		}
	}
	return ix.fallback, false
}

// containsToken reports whether any whitespace-separated token of the
// address starts with the prefix. Postal codes arrive as standalone
// tokens after normalization.
func containsToken(normalized, prefix string) bool {
	for _, tok := range strings.Fields(normalized) {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}
