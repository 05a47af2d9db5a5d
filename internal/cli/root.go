// Package cli holds the councild cobra commands: serve, ask, and
// conversations, following the teacher's own command-per-file convention
// (internal/cli/assign.go: package-level `var xCmd = &cobra.Command{...}`,
// a newXCmd() constructor, and shared package-level output flags).
package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

// NewRootCmd builds the councild root command with every subcommand wired
// in. cmd/councild/main.go calls this and Execute()s the result.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "councild",
		Short: "Council orchestrator: fan a question out to a panel of models, then synthesize a final answer",
		Long: `councild coordinates a three-stage LLM council deliberation:

  1. first_opinions — every councilor answers the question independently
  2. review         — each councilor anonymously ranks the others' answers
  3. final_response — a designated chairman model synthesizes a final answer

Run 'councild serve' to expose this over HTTP/WebSocket, or 'councild ask'
for a one-shot NDJSON stream to stdout.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "councild.toml", "path to the TOML configuration file")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output where applicable")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newConversationsCmd())

	return root
}

// IsJSONOutput mirrors the teacher's internal/cli.IsJSONOutput() convention.
func IsJSONOutput() bool {
	return jsonOutput
}
