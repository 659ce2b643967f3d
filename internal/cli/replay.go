package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/progression-engine/internal/replay"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture.yaml>",
		Short: "Replay a fixture against a fresh in-memory engine",
		Long: `Replay a YAML fixture of timestamped awards against a fresh engine
on an in-memory database and compare each outcome with its expectation.

Exits 1 when any expectation fails or a ledger does not reconcile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "load fixture", err)
			}
			results, sum, err := replay.Run(cmd.Context(), f, root.logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "replay", err)
			}
			if root.Format == "json" {
				if err := (printer{"json", cmd.OutOrStdout()}).print(replayReport(results, sum)); err != nil {
					return err
				}
			} else {
				printReplay(cmd.OutOrStdout(), f, results, sum)
			}
			if !sum.Clean() {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d events failed", sum.Failed, sum.Events))
			}
			return nil
		},
	}
}

type replayEvent struct {
	Event    string   `json:"event"`
	UserID   string   `json:"user_id"`
	DeltaXP  float64  `json:"delta_xp"`
	Error    string   `json:"error,omitempty"`
	Passed   bool     `json:"passed"`
	Mismatch []string `json:"mismatch,omitempty"`
}

type replayJSON struct {
	Events     []replayEvent      `json:"events"`
	Passed     int                `json:"passed"`
	Failed     int                `json:"failed"`
	TotalDelta float64            `json:"total_delta"`
	Drift      map[string]float64 `json:"drift"`
}

func replayReport(results []replay.Result, sum replay.Summary) replayJSON {
	out := replayJSON{Passed: sum.Passed, Failed: sum.Failed, TotalDelta: sum.TotalDelta, Drift: map[string]float64{}}
	for _, r := range results {
		ev := replayEvent{Event: r.Event, UserID: r.UserID, DeltaXP: r.Response.DeltaXP, Passed: r.Passed(), Mismatch: r.Mismatch}
		if r.Err != nil {
			ev.Error = r.Err.Error()
		}
		out.Events = append(out.Events, ev)
	}
	for u, rec := range sum.Users {
		out.Drift[u] = rec.Drift
	}
	return out
}

func printReplay(w io.Writer, f *replay.Fixture, results []replay.Result, sum replay.Summary) {
	if f.Description != "" {
		fmt.Fprintf(w, "fixture: %s\n", f.Description)
	}
	for _, r := range results {
		mark := "ok  "
		if !r.Passed() {
			mark = "FAIL"
		}
		detail := fmt.Sprintf("delta=%.4f", r.Response.DeltaXP)
		if r.Err != nil {
			detail = "error: " + r.Err.Error()
		}
		fmt.Fprintf(w, "%s %-24s %-8s %s\n", mark, r.Event, r.UserID, detail)
		for _, m := range r.Mismatch {
			fmt.Fprintf(w, "       %s\n", m)
		}
	}
	users := make([]string, 0, len(sum.Users))
	for u := range sum.Users {
		users = append(users, u)
	}
	sort.Strings(users)
	var drift []string
	for _, u := range users {
		if rec := sum.Users[u]; !rec.Consistent() {
			drift = append(drift, fmt.Sprintf("%s(%.6f)", u, rec.Drift))
		}
	}
	fmt.Fprintf(w, "\n%d events: %d passed, %d failed, %d rejected, total delta %.4f\n",
		sum.Events, sum.Passed, sum.Failed, sum.Rejected, sum.TotalDelta)
	if len(drift) > 0 {
		fmt.Fprintf(w, "ledger drift: %s\n", strings.Join(drift, " "))
	}
}
