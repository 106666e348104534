// Package weights derives the component weight vector for a match. The
// configured base vector is adjusted for the candidate's listening
// reason and experience depth, then normalized once. Vectors fingerprint
// stably so they can key cached match results.
package weights

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// manyExperiencesKey is the adjustment table row for candidates with a
// deep position history.
const manyExperiencesKey = "many_experiences"

// sumTolerance bounds how far a normalized vector may drift from 1.0.
const sumTolerance = 1e-6

// Vector maps component names to their normalized weights.
type Vector map[string]float64

// Sum returns the total weight.
func (v Vector) Sum() float64 {
	var sum float64
	for _, w := range v {
		sum += w
	}
	return sum
}

// Fingerprint returns a stable 16-character digest of the vector.
// Component order is canonical and weights are rounded to six decimals,
// so equal vectors fingerprint identically across runs and hosts.
func (v Vector) Fingerprint() string {
	var b strings.Builder
	for _, name := range model.Components() {
		w, ok := v[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:%.6f|", name, w)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// Weighter builds weight vectors from the configured base and
// adjustment tables.
type Weighter struct {
	cfg config.WeightsConfig
}

// NewWeighter creates a Weighter.
func NewWeighter(cfg config.WeightsConfig) *Weighter {
	return &Weighter{cfg: cfg}
}

// For returns the normalized weight vector for the candidate. All
// applicable adjustments are applied to the base first; normalization
// happens once at the end. When the motivations component is
// unavailable its key is dropped and the single normalization spreads
// its weight proportionally over the rest.
func (w *Weighter) For(c *model.CandidateProfile, motivationsAvailable bool) (Vector, error) {
	v := make(Vector, len(w.cfg.Base))
	for name, weight := range w.cfg.Base {
		v[name] = weight
	}

	for _, key := range w.adjustmentKeys(c) {
		for name, delta := range w.cfg.Adjustments[key] {
			if _, ok := v[name]; !ok {
				return nil, fmt.Errorf("adjustment %q targets unknown component %q", key, name)
			}
			v[name] += delta
		}
	}

	if !motivationsAvailable {
		delete(v, model.ComponentMotivations)
	}

	// Adjustments trade weight between components; a large custom delta
	// must not drive one negative.
	for name, weight := range v {
		if weight < 0 {
			v[name] = 0
		}
	}

	sum := v.Sum()
	if sum <= 0 {
		return nil, fmt.Errorf("weight vector sums to %.6f", sum)
	}
	for name, weight := range v {
		v[name] = weight / sum
	}
	if math.Abs(v.Sum()-1.0) > sumTolerance {
		return nil, fmt.Errorf("normalized weights sum to %.9f", v.Sum())
	}
	return v, nil
}

// adjustmentKeys lists the adjustment rows that apply to the candidate,
// in a stable order.
func (w *Weighter) adjustmentKeys(c *model.CandidateProfile) []string {
	var keys []string
	if reason := string(c.ListeningReason); reason != "" {
		if _, ok := w.cfg.Adjustments[reason]; ok {
			keys = append(keys, reason)
		}
	}
	if w.cfg.ManyExperienceCount > 0 && c.ExperienceCount >= w.cfg.ManyExperienceCount {
		if _, ok := w.cfg.Adjustments[manyExperiencesKey]; ok {
			keys = append(keys, manyExperiencesKey)
		}
	}
	return keys
}
