package update

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApply_SingleDimensionWithNovelty(t *testing.T) {
	scores := state.NeutralScores(50)
	res := Apply(scores, map[state.Dimension]float64{state.DimSIP: 5}, 1.0, 1.5, DefaultUpdateConfig())

	if res.Diversity {
		t.Error("single dimension must not receive diversity bonus")
	}
	if !approx(res.EventTotal, 7.5) {
		t.Errorf("expected event total 7.5, got %f", res.EventTotal)
	}
	if !approx(res.Scores[state.DimSIP], 37.25) {
		t.Errorf("expected SIP EWMA 37.25, got %f", res.Scores[state.DimSIP])
	}
	if res.Scores[state.DimHPP] != 50 {
		t.Errorf("untouched dimension moved: %f", res.Scores[state.DimHPP])
	}
	if scores[state.DimSIP] != 50 {
		t.Error("input scores were mutated")
	}
}

func TestApply_QualityClamped(t *testing.T) {
	dims := map[state.Dimension]float64{state.DimCMP: 4}
	high := Apply(state.NeutralScores(50), dims, 3.0, 1, DefaultUpdateConfig())
	if !approx(high.EventTotal, 4) || high.Quality != 1 {
		t.Errorf("quality above 1 must clamp to 1, got total=%f q=%f", high.EventTotal, high.Quality)
	}
	low := Apply(state.NeutralScores(50), dims, -2, 1, DefaultUpdateConfig())
	if low.EventTotal != 0 {
		t.Errorf("quality below 0 must clamp to 0, got %f", low.EventTotal)
	}
	half := Apply(state.NeutralScores(50), dims, 0.5, 1, DefaultUpdateConfig())
	if !approx(half.EventTotal, 2) {
		t.Errorf("expected 2, got %f", half.EventTotal)
	}
}

func TestApply_DiversityBonusAboveTwoDims(t *testing.T) {
	two := Apply(state.NeutralScores(50), map[state.Dimension]float64{
		state.DimSIP: 1, state.DimCMP: 1,
	}, 1, 1, DefaultUpdateConfig())
	if two.Diversity || !approx(two.EventTotal, 2) {
		t.Errorf("two dims: diversity=%v total=%f", two.Diversity, two.EventTotal)
	}

	three := Apply(state.NeutralScores(50), map[state.Dimension]float64{
		state.DimSIP: 1, state.DimCMP: 1, state.DimPCP: 1,
	}, 1, 1, DefaultUpdateConfig())
	if !three.Diversity || !approx(three.EventTotal, 3.3) {
		t.Errorf("three dims: diversity=%v total=%f", three.Diversity, three.EventTotal)
	}
}

func TestApply_NonPositiveSkipped(t *testing.T) {
	dims := map[state.Dimension]float64{
		state.DimSIP: -3,
		state.DimCMP: 0,
		state.DimPCP: math.NaN(),
		state.DimHPP: 2,
		state.DimCOV: -1,
	}
	res := Apply(state.NeutralScores(50), dims, 1, 1, DefaultUpdateConfig())

	// Only HPP is positive, so no diversity bonus even though five keys were sent.
	if res.Diversity {
		t.Error("diversity counts positive dimensions only")
	}
	if len(res.Contributions) != 1 || res.Contributions[0].Dimension != state.DimHPP {
		t.Fatalf("unexpected contributions: %+v", res.Contributions)
	}
	for _, d := range []state.Dimension{state.DimSIP, state.DimCMP, state.DimPCP, state.DimCOV} {
		if res.Scores[d] != 50 {
			t.Errorf("%s moved to %f", d, res.Scores[d])
		}
	}
}

func TestApply_EmptyDims(t *testing.T) {
	res := Apply(state.NeutralScores(50), nil, 1, 1.5, DefaultUpdateConfig())
	if res.EventTotal != 0 || len(res.Contributions) != 0 {
		t.Fatalf("expected zero contribution, got %+v", res)
	}
}

func TestApply_TouchedADP(t *testing.T) {
	res := Apply(state.NeutralScores(50), map[state.Dimension]float64{state.DimADP: 1}, 1, 1, DefaultUpdateConfig())
	if !res.TouchedADP {
		t.Fatal("expected TouchedADP")
	}
	res = Apply(state.NeutralScores(50), map[state.Dimension]float64{state.DimADP: 0}, 1, 1, DefaultUpdateConfig())
	if res.TouchedADP {
		t.Fatal("zero ADP must not count as touching")
	}
}

func TestApply_CanonicalOrder(t *testing.T) {
	res := Apply(state.NeutralScores(50), map[state.Dimension]float64{
		state.DimADP: 1, state.DimSIP: 1,
	}, 1, 1, DefaultUpdateConfig())
	if res.Contributions[0].Dimension != state.DimSIP || res.Contributions[1].Dimension != state.DimADP {
		t.Fatalf("expected canonical order, got %+v", res.Contributions)
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.4: 0.4, 1: 1, 7: 1}
	for in, want := range cases {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%f) = %f, want %f", in, got, want)
		}
	}
	if got := Clamp01(math.NaN()); got != 0 {
		t.Errorf("Clamp01(NaN) = %f", got)
	}
}
