// Package gauntletcmder assembles the gauntlet root command.
package gauntletcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/probeworks/gauntlet/cmd/gauntlet/auth"
	configcmder "github.com/probeworks/gauntlet/cmd/gauntlet/config"
	historycmder "github.com/probeworks/gauntlet/cmd/gauntlet/history"
	initcmder "github.com/probeworks/gauntlet/cmd/gauntlet/init"
	runcmder "github.com/probeworks/gauntlet/cmd/gauntlet/run"
	scorecmder "github.com/probeworks/gauntlet/cmd/gauntlet/score"
	searchcmder "github.com/probeworks/gauntlet/cmd/gauntlet/search"
	servecmder "github.com/probeworks/gauntlet/cmd/gauntlet/serve"
	versioncmder "github.com/probeworks/gauntlet/cmd/gauntlet/version"
)

const gauntletLongDesc string = `Gauntlet is a red-teaming harness for LLM targets.

Send attack prompts through converter chains, record every exchange,
judge the responses with LLM scorers, and search what you found:

  gauntlet run      Send attack prompts to a target
  gauntlet score    Judge recorded conversations with an LLM scorer
  gauntlet history  Browse recorded attack conversations
  gauntlet search   Semantic search over recorded conversations
  gauntlet serve    Run the gauntlet API and MCP server

Start with "gauntlet init" to create the .gauntlet directory and
"gauntlet auth <provider>" to store an API key.`

const gauntletShortDesc string = "Gauntlet - LLM Red-Teaming Harness"

func NewGauntletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gauntlet",
		Short: gauntletShortDesc,
		Long:  gauntletLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .gauntlet config directory")

	// Add subcommands
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(scorecmder.NewScoreCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
