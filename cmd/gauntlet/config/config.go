// Package configcmder provides the config command for managing persistent
// gauntlet configuration stored in the .gauntlet/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent gauntlet configuration.

Configuration is stored as config.toml in the .gauntlet/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  memory.provider, memory.sqlite_path, memory.postgres_url,
  target.provider, target.endpoint, target.model,
  scoring.provider, scoring.endpoint, scoring.model,
  api.listen,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  gauntlet config set <key> <value>    Set a configuration value
  gauntlet config get <key>            Get a configuration value
  gauntlet config list                 List all configuration values

Examples:
  gauntlet config set target.provider gemini
  gauntlet config set embedding.model nomic-embed-text
  gauntlet config get target.provider
  gauntlet config list`

const configShortDesc string = "Manage persistent gauntlet configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
