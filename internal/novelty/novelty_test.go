package novelty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/ledger"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	sightings []ledger.Sighting
	err       error

	gotSince, gotUntil time.Time
	gotLimit           int
}

func (f *fakeSource) RecentKinds(_ context.Context, _ string, since, until time.Time, limit int) ([]ledger.Sighting, error) {
	f.gotSince, f.gotUntil, f.gotLimit = since, until, limit
	return f.sightings, f.err
}

func seenAt(ago time.Duration, kinds ...string) ledger.Sighting {
	return ledger.Sighting{OccurredAt: now.Add(-ago), Kinds: kinds}
}

func TestDecide_AllUnseenGetsExactBonus(t *testing.T) {
	dec := Decide([]string{"first_insight", "module_run"}, []ledger.Sighting{seenAt(10*time.Minute, "chat")}, now, DefaultConfig())
	if !dec.Novel {
		t.Fatal("expected novel")
	}
	if dec.Multiplier != 1.5 {
		t.Fatalf("expected multiplier 1.5, got %f", dec.Multiplier)
	}
}

func TestDecide_MixedGetsNoBonus(t *testing.T) {
	dec := Decide([]string{"first_insight", "chat"}, []ledger.Sighting{seenAt(10*time.Minute, "chat")}, now, DefaultConfig())
	if dec.Novel {
		t.Fatal("partially seen event must not be novel")
	}
	if dec.Multiplier != 1 {
		t.Fatalf("expected multiplier 1, got %f", dec.Multiplier)
	}
	if len(dec.Seen) != 1 || dec.Seen[0] != "chat" {
		t.Fatalf("expected seen=[chat], got %v", dec.Seen)
	}
}

func TestDecide_OutsideWindowIsUnseen(t *testing.T) {
	dec := Decide([]string{"chat"}, []ledger.Sighting{seenAt(61*time.Minute, "chat")}, now, DefaultConfig())
	if !dec.Novel {
		t.Fatal("a kind last seen over an hour ago is unseen")
	}
}

func TestDecide_WindowEdgeCountsAsSeen(t *testing.T) {
	dec := Decide([]string{"chat"}, []ledger.Sighting{seenAt(time.Hour, "chat")}, now, DefaultConfig())
	if dec.Novel {
		t.Fatal("a kind seen exactly one hour ago is inside the window")
	}
}

func TestDecide_TrimsKinds(t *testing.T) {
	dec := Decide([]string{" chat "}, []ledger.Sighting{seenAt(time.Minute, "chat")}, now, DefaultConfig())
	if dec.Novel {
		t.Fatal("expected whitespace-insensitive match")
	}
}

func TestDecide_EmptyLedgerIsNovel(t *testing.T) {
	dec := Decide([]string{"k"}, nil, now, DefaultConfig())
	if !dec.Novel || dec.Multiplier != 1.5 || dec.Sampled != 0 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestDetector_QueriesLookbackWindow(t *testing.T) {
	src := &fakeSource{}
	cfg := DefaultConfig()
	if _, err := NewDetector(src, cfg).Check(context.Background(), "u1", []string{"k"}, now); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !src.gotSince.Equal(now.Add(-24*time.Hour)) || !src.gotUntil.Equal(now) {
		t.Errorf("unexpected range [%v, %v]", src.gotSince, src.gotUntil)
	}
	if src.gotLimit != 200 {
		t.Errorf("expected limit 200, got %d", src.gotLimit)
	}
}

func TestDetector_PropagatesError(t *testing.T) {
	src := &fakeSource{err: errors.New("disk gone")}
	_, err := NewDetector(src, DefaultConfig()).Check(context.Background(), "u1", []string{"k"}, now)
	if err == nil {
		t.Fatal("expected error")
	}
}
