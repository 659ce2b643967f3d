package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "scenario.yaml"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(f.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(f.Events))
	}
	ev := f.Events[0]
	if !ev.At.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("at = %v", ev.At)
	}
	if ev.Dims["SIP"] != 5 || ev.Kinds[0] != "first_insight" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Expect == nil || ev.Expect.DeltaXP == nil || *ev.Expect.DeltaXP != 7.5 {
		t.Errorf("expect = %+v", ev.Expect)
	}
	if f.Tolerance != 1e-6 {
		t.Errorf("tolerance = %v, want default", f.Tolerance)
	}
	if f.Engine.SessionCap != 30 {
		t.Errorf("session cap = %v, want default 30", f.Engine.SessionCap)
	}
}

func TestParseFixture_Overrides(t *testing.T) {
	f, err := ParseFixture([]byte(`
tolerance: 0.01
engine:
  session_cap: 10
events:
  - at: 2026-03-02T09:00:00Z
    user_id: u1
    kinds: [k]
`))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	if f.Engine.SessionCap != 10 || f.Engine.DayCap != 100 {
		t.Errorf("caps = %v/%v", f.Engine.SessionCap, f.Engine.DayCap)
	}
	if f.Tolerance != 0.01 {
		t.Errorf("tolerance = %v", f.Tolerance)
	}
	if got := f.Events[0].Label(0); got != "event-1" {
		t.Errorf("label = %q", got)
	}
}

func TestParseFixture_MissingTime(t *testing.T) {
	_, err := ParseFixture([]byte("events:\n  - user_id: u1\n    kinds: [k]\n"))
	if err == nil {
		t.Fatal("expected error for event without at")
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("events: {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestToRequest_PinsTime(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ev := FixtureEvent{At: at, UserID: "u1", Kinds: []string{"k"}}
	req := ev.ToRequest().ToEngine()
	if !req.At.Equal(at) {
		t.Errorf("at = %v, want %v", req.At, at)
	}
	if req.Quality != 1.0 {
		t.Errorf("quality = %v, want 1.0", req.Quality)
	}
}
