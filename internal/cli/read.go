package cli

import (
	"github.com/spf13/cobra"
)

// NewStateCommand creates the state command.
func NewStateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state <user>",
		Short: "Show a user's progression state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := root.open()
			if err != nil {
				return err
			}
			defer b.Close()
			st, err := b.State(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "state", err)
			}
			return printer{root.Format, cmd.OutOrStdout()}.print(st)
		},
	}
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(root *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger <user>",
		Short: "List a user's recent awards, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := root.open()
			if err != nil {
				return err
			}
			defer b.Close()
			led, err := b.Ledger(cmd.Context(), args[0], limit)
			if err != nil {
				return WrapExitError(ExitFailure, "ledger", err)
			}
			return printer{root.Format, cmd.OutOrStdout()}.print(led)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

// NewReconcileCommand creates the reconcile command. It exits non-zero when
// the ledger has drifted from xp_total.
func NewReconcileCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <user>",
		Short: "Check xp_total against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := root.open()
			if err != nil {
				return err
			}
			defer b.Close()
			rec, err := b.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "reconcile", err)
			}
			if err := (printer{root.Format, cmd.OutOrStdout()}).print(rec); err != nil {
				return err
			}
			if !rec.Consistent {
				return NewExitError(ExitFailure, "ledger drift detected")
			}
			return nil
		},
	}
}
