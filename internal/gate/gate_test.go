package gate

import (
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

var now = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func scores(vals map[state.Dimension]float64) state.Scores {
	s := state.NeutralScores(50)
	for d, v := range vals {
		s[d] = v
	}
	return s
}

func TestGate_BlockedOnPCP(t *testing.T) {
	g := NewGate(DefaultLadder())
	dec := g.Evaluate(0.72, scores(map[state.Dimension]float64{state.DimSIP: 70, state.DimPCP: 55}), time.Time{}, now)

	if dec.Pass {
		t.Fatal("expected gate to block")
	}
	if !strings.Contains(dec.Reason, "PCP") {
		t.Fatalf("expected reason to reference PCP, got %q", dec.Reason)
	}
	if dec.Tier != 0.70 {
		t.Fatalf("expected 0.70 tier, got %v", dec.Tier)
	}
}

func TestGate_BelowLadderPasses(t *testing.T) {
	g := NewGate(DefaultLadder())
	for _, s := range []state.Scores{scores(nil), scores(map[state.Dimension]float64{state.DimSIP: 0, state.DimPCP: 0}), {}} {
		dec := g.Evaluate(0.60, s, time.Time{}, now)
		if !dec.Pass || dec.Reason != "" || dec.Applied {
			t.Fatalf("expected unconditional pass, got %+v", dec)
		}
	}
}

func TestGate_SeventyTierFirstFailingWins(t *testing.T) {
	g := NewGate(DefaultLadder())
	dec := g.Evaluate(0.75, scores(map[state.Dimension]float64{state.DimSIP: 10, state.DimPCP: 10}), time.Time{}, now)
	if dec.Pass || dec.Reason != "SIP below threshold" {
		t.Fatalf("expected SIP to be reported first, got %+v", dec)
	}
}

func TestGate_SeventyTierPasses(t *testing.T) {
	g := NewGate(DefaultLadder())
	dec := g.Evaluate(0.70, scores(map[state.Dimension]float64{state.DimSIP: 65, state.DimPCP: 60}), time.Time{}, now)
	if !dec.Pass {
		t.Fatalf("thresholds are inclusive, got %+v", dec)
	}
}

func TestGate_TopTier(t *testing.T) {
	g := NewGate(DefaultLadder())
	good := scores(map[state.Dimension]float64{state.DimHPP: 75})

	dec := g.Evaluate(0.9, scores(map[state.Dimension]float64{state.DimHPP: 60}), now.Add(-time.Hour), now)
	if dec.Pass || dec.Reason != "HPP below threshold" {
		t.Fatalf("expected HPP failure, got %+v", dec)
	}

	dec = g.Evaluate(0.9, good, now.Add(-15*24*time.Hour), now)
	if dec.Pass || dec.Reason != "no ADP in 14 days" {
		t.Fatalf("expected ADP recency failure, got %+v", dec)
	}

	dec = g.Evaluate(0.9, good, time.Time{}, now)
	if dec.Pass || dec.Reason != "no ADP in 14 days" {
		t.Fatalf("never-touched ADP must fail, got %+v", dec)
	}

	dec = g.Evaluate(0.9, good, now.Add(-13*24*time.Hour), now)
	if !dec.Pass {
		t.Fatalf("expected pass, got %+v", dec)
	}
}

func TestGate_HPPCheckedBeforeADP(t *testing.T) {
	g := NewGate(DefaultLadder())
	dec := g.Evaluate(0.9, scores(map[state.Dimension]float64{state.DimHPP: 10}), time.Time{}, now)
	if dec.Reason != "HPP below threshold" {
		t.Fatalf("expected HPP reason first, got %q", dec.Reason)
	}
}

func TestGate_TopTierDoesNotFallThrough(t *testing.T) {
	// At 0.9 the 0.70 tier's SIP/PCP checks do not apply.
	g := NewGate(DefaultLadder())
	s := scores(map[state.Dimension]float64{state.DimHPP: 80, state.DimSIP: 0, state.DimPCP: 0})
	dec := g.Evaluate(0.9, s, now, now)
	if !dec.Pass {
		t.Fatalf("expected pass, got %+v", dec)
	}
}

func TestGate_MissingDimensionReadsZero(t *testing.T) {
	g := NewGate(DefaultLadder())
	dec := g.Evaluate(0.72, state.Scores{state.DimSIP: 90}, time.Time{}, now)
	if dec.Pass || dec.Reason != "PCP below threshold" {
		t.Fatalf("expected PCP failure for missing key, got %+v", dec)
	}
}

func TestNewGate_SortsLadder(t *testing.T) {
	l := DefaultLadder()
	reversed := Ladder{l[1], l[0]}
	g := NewGate(reversed)
	dec := g.Evaluate(0.9, scores(map[state.Dimension]float64{state.DimHPP: 10}), now, now)
	if dec.Tier != 0.85 {
		t.Fatalf("expected most restrictive tier to apply, got %v", dec.Tier)
	}
}

func TestCheck_GeneratedReasons(t *testing.T) {
	c := Check{Kind: CheckMinScore, Dimension: state.DimCOV, Min: 10}
	if got := c.reason(); got != "COV below threshold" {
		t.Errorf("got %q", got)
	}
	c = Check{Kind: CheckRecentADP, Within: 7 * 24 * time.Hour}
	if got := c.reason(); got != "no ADP in 7 days" {
		t.Errorf("got %q", got)
	}
}
