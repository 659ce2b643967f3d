// Package config loads service and engine settings.
//
// Values are layered: Default, then an optional YAML file, then
// PROGRESSION_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/progression-engine/internal/caps"
	"github.com/danielpatrickdp/progression-engine/internal/gate"
	"github.com/danielpatrickdp/progression-engine/internal/logging"
	"github.com/danielpatrickdp/progression-engine/internal/novelty"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/progress"
	"github.com/danielpatrickdp/progression-engine/internal/rollover"
	"github.com/danielpatrickdp/progression-engine/internal/state"
	"github.com/danielpatrickdp/progression-engine/internal/update"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROGRESSION_"

// #region types

// Config is the full process configuration.
type Config struct {
	Service `yaml:",inline"`
	Engine  EngineConfig `yaml:"engine"`
}

// Service holds process-level settings.
type Service struct {
	DBPath    string `yaml:"db_path" env:"DB_PATH"`
	GRPCAddr  string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// OTelEndpoint is the OTLP/HTTP trace endpoint; empty disables export.
	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// EngineConfig holds scoring tunables and the gate ladder.
type EngineConfig struct {
	Tunables `yaml:",inline"`
	Gates    []GateTier `yaml:"gates"`
}

// Tunables are the scalar engine parameters. Each can be overridden with
// PROGRESSION_ENGINE_<NAME>.
type Tunables struct {
	SeedXP       float64 `yaml:"seed_xp" env:"SEED_XP"`
	NeutralScore float64 `yaml:"neutral_score" env:"NEUTRAL_SCORE"`

	Alpha            float64 `yaml:"alpha" env:"ALPHA"`
	DiversityBonus   float64 `yaml:"diversity_bonus" env:"DIVERSITY_BONUS"`
	DiversityMinDims int     `yaml:"diversity_min_dims" env:"DIVERSITY_MIN_DIMS"`

	NoveltyBonus       float64       `yaml:"novelty_bonus" env:"NOVELTY_BONUS"`
	NoveltyWindow      time.Duration `yaml:"novelty_window" env:"NOVELTY_WINDOW"`
	NoveltyLookback    time.Duration `yaml:"novelty_lookback" env:"NOVELTY_LOOKBACK"`
	NoveltySampleLimit int           `yaml:"novelty_sample_limit" env:"NOVELTY_SAMPLE_LIMIT"`

	SessionCap     float64       `yaml:"session_cap" env:"SESSION_CAP"`
	DayCap         float64       `yaml:"day_cap" env:"DAY_CAP"`
	WeekCap        float64       `yaml:"week_cap" env:"WEEK_CAP"`
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
	Timezone       string        `yaml:"timezone" env:"TIMEZONE"`

	Midpoint   float64 `yaml:"midpoint" env:"MIDPOINT"`
	Scale      float64 `yaml:"scale" env:"SCALE"`
	Milestones []int   `yaml:"milestones" env:"MILESTONES"`

	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// GateTier is the file form of a gate.Tier.
type GateTier struct {
	MinPercent float64     `yaml:"min_percent"`
	Checks     []GateCheck `yaml:"checks"`
}

// GateCheck is the file form of a gate.Check.
type GateCheck struct {
	Kind      string        `yaml:"kind"`
	Dimension string        `yaml:"dimension,omitempty"`
	Min       float64       `yaml:"min,omitempty"`
	Within    time.Duration `yaml:"within,omitempty"`
	Reason    string        `yaml:"reason"`
}

// #endregion types

// #region defaults

// Default returns the standard configuration.
func Default() Config {
	eng := orchestrator.DefaultConfig()
	return Config{
		Service: Service{
			DBPath:    "progression.db",
			GRPCAddr:  "localhost:50061",
			HTTPAddr:  "localhost:8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Engine: EngineConfig{
			Tunables: Tunables{
				SeedXP:             eng.Seed.XPTotal,
				NeutralScore:       eng.Seed.NeutralScore,
				Alpha:              eng.Update.Alpha,
				DiversityBonus:     eng.Update.DiversityBonus,
				DiversityMinDims:   eng.Update.DiversityMinDims,
				NoveltyBonus:       eng.Novelty.Bonus,
				NoveltyWindow:      eng.Novelty.Window,
				NoveltyLookback:    eng.Novelty.Lookback,
				NoveltySampleLimit: eng.Novelty.SampleLimit,
				SessionCap:         eng.Limits.Session,
				DayCap:             eng.Limits.Day,
				WeekCap:            eng.Limits.Week,
				SessionTimeout:     eng.Rollover.SessionTimeout,
				Timezone:           "UTC",
				Midpoint:           eng.Progress.Midpoint,
				Scale:              eng.Progress.Scale,
				Milestones:         append([]int(nil), eng.Progress.Milestones...),
				MaxAttempts:        eng.MaxAttempts,
			},
			Gates: fromLadder(eng.Gates),
		},
	}
}

func fromLadder(l gate.Ladder) []GateTier {
	out := make([]GateTier, len(l))
	for i, t := range l {
		checks := make([]GateCheck, len(t.Checks))
		for j, c := range t.Checks {
			checks[j] = GateCheck{
				Kind:      string(c.Kind),
				Dimension: string(c.Dimension),
				Min:       c.Min,
				Within:    c.Within,
				Reason:    c.Reason,
			}
		}
		out[i] = GateTier{MinPercent: t.MinPercent, Checks: checks}
	}
	return out
}

// #endregion defaults

// #region load

// Load layers the YAML file at path (skipped when path is empty) and the
// environment over Default, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(&cfg.Service, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Engine.Tunables, env.Options{Prefix: EnvPrefix + "ENGINE_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// #endregion load

// #region validate

// Validate rejects tunables the engine cannot run with.
func (c Config) Validate() error {
	t := c.Engine.Tunables
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q: must be text or json", c.LogFormat))
	}
	if !(t.Alpha > 0 && t.Alpha <= 1) {
		errs = append(errs, fmt.Errorf("alpha %v outside (0,1]", t.Alpha))
	}
	if t.DiversityBonus < 1 {
		errs = append(errs, fmt.Errorf("diversity_bonus %v below 1", t.DiversityBonus))
	}
	if t.NoveltyBonus < 1 {
		errs = append(errs, fmt.Errorf("novelty_bonus %v below 1", t.NoveltyBonus))
	}
	if t.NoveltyWindow <= 0 || t.NoveltyLookback < t.NoveltyWindow {
		errs = append(errs, fmt.Errorf("novelty window %v and lookback %v: need 0 < window <= lookback", t.NoveltyWindow, t.NoveltyLookback))
	}
	if t.NoveltySampleLimit <= 0 {
		errs = append(errs, errors.New("novelty_sample_limit must be positive"))
	}
	if t.SessionCap <= 0 || t.DayCap <= 0 || t.WeekCap <= 0 {
		errs = append(errs, errors.New("caps must be positive"))
	}
	if t.SessionTimeout <= 0 {
		errs = append(errs, errors.New("session_timeout must be positive"))
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", t.Timezone, err))
	}
	if t.Scale <= 0 || math.IsNaN(t.Midpoint) || math.IsInf(t.Midpoint, 0) {
		errs = append(errs, errors.New("scale must be positive and midpoint finite"))
	}
	for i := 1; i < len(t.Milestones); i++ {
		if t.Milestones[i] <= t.Milestones[i-1] {
			errs = append(errs, fmt.Errorf("milestones must be ascending, got %v", t.Milestones))
			break
		}
	}
	if t.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max_attempts must be positive"))
	}
	if _, err := toLadder(c.Engine.Gates); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region engine

// Orchestrator converts the tunables into the orchestrator's form.
func (c Config) Orchestrator() (orchestrator.Config, error) {
	t := c.Engine.Tunables
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("timezone %q: %w", t.Timezone, err)
	}
	ladder, err := toLadder(c.Engine.Gates)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		Seed: state.Seed{XPTotal: t.SeedXP, NeutralScore: t.NeutralScore},
		Update: update.UpdateConfig{
			Alpha:            t.Alpha,
			DiversityBonus:   t.DiversityBonus,
			DiversityMinDims: t.DiversityMinDims,
		},
		Novelty: novelty.Config{
			Bonus:       t.NoveltyBonus,
			Window:      t.NoveltyWindow,
			Lookback:    t.NoveltyLookback,
			SampleLimit: t.NoveltySampleLimit,
		},
		Limits:      caps.Limits{Session: t.SessionCap, Day: t.DayCap, Week: t.WeekCap},
		Rollover:    rollover.Config{Location: loc, SessionTimeout: t.SessionTimeout},
		Progress:    progress.Config{Midpoint: t.Midpoint, Scale: t.Scale, Milestones: append([]int(nil), t.Milestones...)},
		Gates:       ladder,
		MaxAttempts: t.MaxAttempts,
	}, nil
}

func toLadder(tiers []GateTier) (gate.Ladder, error) {
	out := make(gate.Ladder, 0, len(tiers))
	for i, t := range tiers {
		if t.MinPercent <= 0 || t.MinPercent >= 1 {
			return nil, fmt.Errorf("gates[%d]: min_percent %v outside (0,1)", i, t.MinPercent)
		}
		tier := gate.Tier{MinPercent: t.MinPercent}
		for j, c := range t.Checks {
			check := gate.Check{Kind: gate.CheckKind(c.Kind), Reason: c.Reason}
			switch check.Kind {
			case gate.CheckMinScore:
				d, err := state.ParseDimension(c.Dimension)
				if err != nil {
					return nil, fmt.Errorf("gates[%d].checks[%d]: %w", i, j, err)
				}
				check.Dimension = d
				check.Min = c.Min
			case gate.CheckRecentADP:
				if c.Within <= 0 {
					return nil, fmt.Errorf("gates[%d].checks[%d]: within must be positive", i, j)
				}
				check.Within = c.Within
			default:
				return nil, fmt.Errorf("gates[%d].checks[%d]: unknown kind %q", i, j, c.Kind)
			}
			if check.Reason == "" {
				return nil, fmt.Errorf("gates[%d].checks[%d]: reason is required", i, j)
			}
			tier.Checks = append(tier.Checks, check)
		}
		out = append(out, tier)
	}
	return out, nil
}

// #endregion engine
