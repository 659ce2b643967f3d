package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/progression-engine/internal/api"
)

// AwardOptions holds flags for the award command.
type AwardOptions struct {
	*RootOptions
	UserID  string
	Dims    []string
	Quality float64
	Kinds   []string
	Source  string
}

// NewAwardCommand creates the award command.
func NewAwardCommand(root *RootOptions) *cobra.Command {
	opts := &AwardOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "award",
		Short: "Award XP for one event",
		Long: `Award XP for one progress event and print the result.

Example:
  progressionctl award --user u1 --dim SIP=5 --kind first_insight
  progressionctl award --user u1 --dim SIP=2 --dim HPP=1 --quality 0.8 --kind chat --source app`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := parseDims(opts.Dims)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --dim", err)
			}
			b, err := opts.open()
			if err != nil {
				return err
			}
			defer b.Close()

			q := opts.Quality
			res, err := b.Award(cmd.Context(), api.AwardRequest{
				UserID:  opts.UserID,
				Dims:    dims,
				Quality: &q,
				Kinds:   opts.Kinds,
				Source:  opts.Source,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "award", err)
			}
			return printer{opts.Format, cmd.OutOrStdout()}.print(res)
		},
	}

	cmd.Flags().StringVarP(&opts.UserID, "user", "u", "", "user id (required)")
	cmd.Flags().StringArrayVarP(&opts.Dims, "dim", "d", nil, "dimension magnitude as CODE=VALUE, repeatable")
	cmd.Flags().Float64VarP(&opts.Quality, "quality", "q", 1.0, "quality weight in [0,1]")
	cmd.Flags().StringSliceVarP(&opts.Kinds, "kind", "k", nil, "event kind label, repeatable (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "provenance label")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

// parseDims turns CODE=VALUE pairs into a dims map. Codes are checked by
// the engine.
func parseDims(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		code, raw, ok := strings.Cut(p, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("%q: want CODE=VALUE", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		if _, dup := out[code]; dup {
			return nil, fmt.Errorf("%q: dimension given twice", p)
		}
		out[code] = v
	}
	return out, nil
}
