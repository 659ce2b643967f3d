// Package rollover normalizes a loaded progression state to the current
// session, day and ISO week before any scoring runs.
package rollover

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region config
// Config controls window boundaries.
type Config struct {
	Location       *time.Location // calendar used for day and week markers
	SessionTimeout time.Duration  // idle gap after which the session window resets
}

// DefaultConfig uses UTC calendar days and a 30 minute session idle timeout.
func DefaultConfig() Config {
	return Config{
		Location:       time.UTC,
		SessionTimeout: 30 * time.Minute,
	}
}

// #endregion config

// #region report
// Report says which windows Apply reset.
type Report struct {
	Session bool
	Day     bool
	Week    bool

	Today    string // day marker after rollover
	ThisWeek string // week marker after rollover
}

// Any reports whether at least one window was reset.
func (r Report) Any() bool {
	return r.Session || r.Day || r.Week
}

// #endregion report

// #region markers
// DayKey returns the YYYY-MM-DD marker for t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// WeekKey returns the ISO week marker (YYYY-Www) for t in loc.
func WeekKey(t time.Time, loc *time.Location) string {
	y, w := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// #endregion markers

// #region apply
// Apply returns st with expired windows zeroed. It is idempotent: applying
// it again at any instant inside the same session, day and week changes
// nothing. The input is not mutated.
func Apply(st state.UserState, now time.Time, cfg Config) (state.UserState, Report) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	out := st.Clone()
	today := DayKey(now, loc)
	week := WeekKey(now, loc)
	rep := Report{Today: today, ThisWeek: week}

	if out.LastResetDay != today {
		out.DailyXP = 0
		out.RepeatsToday = map[string]int{}
		out.LastResetDay = today
		rep.Day = true
	}

	if out.LastResetWeek != week {
		out.WeeklyXP = 0
		out.LastResetWeek = week
		rep.Week = true
	}

	if sessionExpired(out, now, cfg.SessionTimeout) {
		out.SessionXP = 0
		out.SessionStartedAt = now
		// Pin the session to now so a second Apply at the same instant
		// sees an active session.
		out.LastEventAt = now
		rep.Session = true
	}

	return out, rep
}

func sessionExpired(st state.UserState, now time.Time, timeout time.Duration) bool {
	if st.LastEventAt.IsZero() {
		return true
	}
	if timeout <= 0 {
		return false
	}
	return now.Sub(st.LastEventAt) > timeout
}

// #endregion apply
