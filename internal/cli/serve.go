package cli

import (
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/progression-engine/internal/app"
)

// NewServeCommand creates the serve command.
func NewServeCommand(root *RootOptions, version string) *cobra.Command {
	var grpcAddr, httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if grpcAddr != "" {
				cfg.GRPCAddr = grpcAddr
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if err := app.Serve(cmd.Context(), cfg, root.logger, version); err != nil {
				return WrapExitError(ExitCommandError, "serve", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	return cmd
}
