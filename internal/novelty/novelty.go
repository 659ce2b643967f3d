// Package novelty decides whether an award's kinds are fresh enough to earn
// the novelty multiplier.
package novelty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/ledger"
)

// #region config
// Config holds the novelty rule parameters.
type Config struct {
	Bonus       float64       // multiplier applied when every kind is unseen
	Window      time.Duration // a kind is "seen" if it occurred within this window
	Lookback    time.Duration // how far back the ledger sample reaches
	SampleLimit int           // max ledger entries sampled
}

// DefaultConfig returns the standard novelty rule: 1.5x for kinds unseen in
// the last hour, sampling at most 200 entries from the last 24 hours.
func DefaultConfig() Config {
	return Config{
		Bonus:       1.5,
		Window:      time.Hour,
		Lookback:    24 * time.Hour,
		SampleLimit: 200,
	}
}

// #endregion config

// #region decision
// Decision is the novelty outcome for one event.
type Decision struct {
	Novel      bool
	Multiplier float64  // Bonus when Novel, otherwise 1
	Seen       []string // event kinds found in the recent window
	Sampled    int      // ledger entries inspected
}

// #endregion decision

// #region source
// KindSource supplies recent ledger sightings. *ledger.Ledger satisfies it.
type KindSource interface {
	RecentKinds(ctx context.Context, userID string, since, until time.Time, limit int) ([]ledger.Sighting, error)
}

// #endregion source

// #region detector
// Detector runs the novelty rule against a ledger.
type Detector struct {
	src KindSource
	cfg Config
}

// NewDetector creates a detector reading from src.
func NewDetector(src KindSource, cfg Config) *Detector {
	return &Detector{src: src, cfg: cfg}
}

// Check samples the ledger for userID and applies Decide.
func (d *Detector) Check(ctx context.Context, userID string, kinds []string, now time.Time) (Decision, error) {
	limit := d.cfg.SampleLimit
	if limit <= 0 {
		limit = DefaultConfig().SampleLimit
	}
	sightings, err := d.src.RecentKinds(ctx, userID, now.Add(-d.cfg.Lookback), now, limit)
	if err != nil {
		return Decision{}, fmt.Errorf("novelty lookup: %w", err)
	}
	return Decide(kinds, sightings, now, d.cfg), nil
}

// #endregion detector

// #region decide
// Decide is all-or-nothing: the multiplier applies only when none of kinds
// appears in a sighting within cfg.Window of now. A partially novel event
// gets no bonus.
func Decide(kinds []string, sightings []ledger.Sighting, now time.Time, cfg Config) Decision {
	cutoff := now.Add(-cfg.Window)
	recent := make(map[string]bool)
	for _, s := range sightings {
		if s.OccurredAt.Before(cutoff) || s.OccurredAt.After(now) {
			continue
		}
		for _, k := range s.Kinds {
			recent[normalize(k)] = true
		}
	}

	var seen []string
	for _, k := range kinds {
		if recent[normalize(k)] {
			seen = append(seen, k)
		}
	}

	dec := Decision{Novel: len(seen) == 0 && len(kinds) > 0, Multiplier: 1, Seen: seen, Sampled: len(sightings)}
	if dec.Novel && cfg.Bonus > 0 {
		dec.Multiplier = cfg.Bonus
	}
	return dec
}

func normalize(k string) string {
	return strings.TrimSpace(k)
}

// #endregion decide
