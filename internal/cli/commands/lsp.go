package commands

import (
	"os"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/lsp"
	"github.com/spf13/cobra"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. The project is
taken from the client's initialization request (rootUri), and every open
model is checked against it as it is edited.

Diagnostics, hover, go-to-definition on ref() and completion are supported.`,
		Example: `  # Start LSP server (usually called by an editor)
  dbt-analyzer lsp

  # Log protocol traffic to stderr
  dbt-analyzer lsp --log-level debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	logger := config.GetLogger(cmd.Context())
	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, logger)
	return server.Run()
}
