// Package configcmder provides the config command for managing persistent
// chatbot configuration stored in the .chatbot/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/config"
)

const configLongDesc string = `Manage persistent chatbot configuration.

Configuration is stored as config.toml in the .chatbot/ directory and provides
default values for command flags. CHATBOT_* environment variables override
the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  server.base_url, server.timeout,
  chat.default_model, chat.render_markdown,
  transcript.provider, transcript.sqlite_path, transcript.postgres_dsn,
  events.kafka_brokers, events.kafka_topic,
  devserver.listen

Use subcommands to get, set, or list configuration values:
  chatbot config set <key> <value>    Set a configuration value
  chatbot config get <key>            Get a configuration value
  chatbot config list                 List all configuration values

Examples:
  chatbot config set server.base_url https://chat.example.com
  chatbot config set events.kafka_brokers kafka-1:9092,kafka-2:9092
  chatbot config get chat.default_model
  chatbot config list`

const configShortDesc string = "Manage persistent chatbot configuration"

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

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
}
