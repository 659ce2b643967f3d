// Package caps applies the session, day and week diminishing-return windows.
//
// The three windows always run in the fixed order session → day → week.
// Each stage scales its input by the remaining headroom ratio of its window
// and feeds the result to the next stage, so a session close to its cap
// throttles an award regardless of how much day or week headroom remains.
// Every stage reads the window totals as they were before the call.
package caps

// #region window
// Window names one diminishing-return window.
type Window string

const (
	WindowSession Window = "session"
	WindowDay     Window = "day"
	WindowWeek    Window = "week"
)

// Order is the only order in which windows are applied.
var Order = [...]Window{WindowSession, WindowDay, WindowWeek}

// #endregion window

// #region limits
// Limits holds the ceiling of each window.
type Limits struct {
	Session float64
	Day     float64
	Week    float64
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() Limits {
	return Limits{Session: 30, Day: 100, Week: 500}
}

// Usage holds the accumulated total of each window before this award.
type Usage struct {
	Session float64
	Day     float64
	Week    float64
}

func (l Limits) of(w Window) float64 {
	switch w {
	case WindowSession:
		return l.Session
	case WindowDay:
		return l.Day
	default:
		return l.Week
	}
}

func (u Usage) of(w Window) float64 {
	switch w {
	case WindowSession:
		return u.Session
	case WindowDay:
		return u.Day
	default:
		return u.Week
	}
}

// #endregion limits

// #region stage
// Stage records one window's effect on an award.
type Stage struct {
	Window  Window
	Cap     float64
	Current float64
	In      float64
	Out     float64
}

// Throttled is the amount removed by this stage.
func (s Stage) Throttled() float64 {
	return s.In - s.Out
}

// #endregion stage

// #region contribution
// Contribution is the diminishing-return curve for one window:
// zero once current reaches cap, otherwise base scaled by the remaining
// headroom ratio. The result is additionally clamped to cap-current so a
// single oversized award never pushes a window past its ceiling.
func Contribution(base, cap, current float64) float64 {
	if !(base > 0) || current >= cap {
		return 0
	}
	out := base * (1 - current/cap)
	if headroom := cap - current; out > headroom {
		out = headroom
	}
	return out
}

// #endregion contribution

// #region apply
// Apply runs base through every window in Order and returns the final
// amount with a per-stage trace.
func Apply(base float64, limits Limits, usage Usage) (float64, []Stage) {
	stages := make([]Stage, 0, len(Order))
	cur := base
	if !(cur > 0) {
		cur = 0
	}
	for _, w := range Order {
		st := Stage{Window: w, Cap: limits.of(w), Current: usage.of(w), In: cur}
		st.Out = Contribution(cur, st.Cap, st.Current)
		stages = append(stages, st)
		cur = st.Out
	}
	return cur, stages
}

// #endregion apply
