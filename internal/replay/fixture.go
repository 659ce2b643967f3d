package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/config"
)

// #region fixture-types

// Fixture is the top-level YAML structure for a replay fixture.
type Fixture struct {
	Description string              `yaml:"description"`
	Tolerance   float64             `yaml:"tolerance"`
	Engine      config.EngineConfig `yaml:"engine"`
	Events      []FixtureEvent      `yaml:"events"`
}

// FixtureEvent is one timestamped award and its expected outcome.
type FixtureEvent struct {
	Name    string             `yaml:"name"`
	At      time.Time          `yaml:"at"`
	UserID  string             `yaml:"user_id"`
	Dims    map[string]float64 `yaml:"dims"`
	Quality *float64           `yaml:"quality"`
	Kinds   []string           `yaml:"kinds"`
	Source  string             `yaml:"source"`
	Expect  *Expectation       `yaml:"expect"`
}

// Expectation lists the fields to check; nil fields are not compared.
type Expectation struct {
	DeltaXP       *float64 `yaml:"delta_xp"`
	NewXPTotal    *float64 `yaml:"new_xp_total"`
	Percent       *float64 `yaml:"progress_percent"`
	PassesGates   *bool    `yaml:"passes_gates"`
	BlockedReason *string  `yaml:"blocked_reason"`
	Novel         *bool    `yaml:"novel"`
	Milestone     *int     `yaml:"milestone"`
	Error         string   `yaml:"error"` // "invalid" or "transient"
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a YAML fixture file. Engine settings the
// file leaves out keep their defaults.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

// ParseFixture parses fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	f := Fixture{
		Tolerance: 1e-6,
		Engine:    config.Default().Engine,
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i, ev := range f.Events {
		if ev.At.IsZero() {
			return nil, fmt.Errorf("event %d (%s): at is required", i, ev.Name)
		}
	}
	return &f, nil
}

// ToRequest converts a FixtureEvent to a wire award request pinned to At.
func (ev *FixtureEvent) ToRequest() api.AwardRequest {
	at := ev.At
	return api.AwardRequest{
		UserID:  ev.UserID,
		Dims:    ev.Dims,
		Quality: ev.Quality,
		Kinds:   ev.Kinds,
		Source:  ev.Source,
		At:      &at,
	}
}

// Label names the event in reports.
func (ev *FixtureEvent) Label(i int) string {
	if ev.Name != "" {
		return ev.Name
	}
	return fmt.Sprintf("event-%d", i+1)
}

// #endregion fixture-loader
