package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Completion,
hover, go to definition and diagnostics use the configured dialect and
metadata catalog.`,
		Example: `  # Usually started by the editor
  sqlassist lsp --driver yaml --catalog-file catalog.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := config.GetLogger(ctx)

			p, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			server := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), lsp.Options{
				Provider: p,
				Logger:   logger,
				Version:  version,
			})
			return server.Run(ctx)
		},
	}

	return cmd
}
