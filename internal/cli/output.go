package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielpatrickdp/progression-engine/internal/api"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Replay mismatch, ledger drift
	ExitCommandError = 2 // Bad flags, unreadable config, unreachable store
)

// ExitError carries an exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printer renders command results as JSON or text.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) print(v any) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	switch r := v.(type) {
	case api.AwardResponse:
		p.award(r)
	case api.StateResponse:
		p.state(r)
	case api.LedgerResponse:
		p.ledger(r)
	case api.ReconcileResponse:
		p.reconcile(r)
	default:
		fmt.Fprintf(p.w, "%+v\n", v)
	}
	return nil
}

func (p printer) award(r api.AwardResponse) {
	gate := "pass"
	if !r.PassesGates {
		gate = "blocked (" + r.BlockedReason + ")"
	}
	fmt.Fprintf(p.w, "delta_xp=%.4f xp_total=%.4f percent=%.4f gates=%s novel=%t\n",
		r.DeltaXP, r.NewXPTotal, r.ProgressPercent, gate, r.Novel)
	for _, c := range r.TopContributors {
		fmt.Fprintf(p.w, "  %-4s %.4f\n", c.Dimension, c.XP)
	}
	if r.Milestone > 0 {
		fmt.Fprintf(p.w, "milestone %d%% reached\n", r.Milestone)
	}
}

func (p printer) state(r api.StateResponse) {
	fmt.Fprintf(p.w, "user %s  xp_total=%.4f  percent=%.4f  version=%d\n", r.UserID, r.XPTotal, r.ProgressPercent, r.Version)
	fmt.Fprintf(p.w, "windows  session=%.4f day=%.4f week=%.4f  (%s, %s)\n",
		r.SessionXP, r.DailyXP, r.WeeklyXP, r.LastResetDay, r.LastResetWeek)
	dims := make([]string, 0, len(r.DimScores))
	for d := range r.DimScores {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%s=%.2f", d, r.DimScores[d])
	}
	fmt.Fprintf(p.w, "dims     %s\n", strings.Join(parts, " "))
	if r.PassesGates {
		fmt.Fprintln(p.w, "gates    pass")
	} else {
		fmt.Fprintf(p.w, "gates    blocked: %s\n", r.BlockedReason)
	}
}

func (p printer) ledger(r api.LedgerResponse) {
	if len(r.Entries) == 0 {
		fmt.Fprintf(p.w, "no ledger entries for %s\n", r.UserID)
		return
	}
	for _, e := range r.Entries {
		fmt.Fprintf(p.w, "%s  %+9.4f  total=%.4f  kinds=%s  source=%s\n",
			e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), e.DeltaXP, e.XPTotalAfter,
			strings.Join(e.Kinds, ","), e.Source)
	}
}

func (p printer) reconcile(r api.ReconcileResponse) {
	status := "ok"
	if !r.Consistent {
		status = "DRIFT"
	}
	fmt.Fprintf(p.w, "%s  user=%s xp_total=%.4f seed=%.4f ledger_sum=%.4f entries=%d drift=%.6f\n",
		status, r.UserID, r.XPTotal, r.SeedXP, r.LedgerSum, r.Entries, r.Drift)
}
