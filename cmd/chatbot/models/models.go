// Package modelscmder provides the models command.
package modelscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

func NewModelsCmd() *cobra.Command {
	var env *cmdenv.Env

	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List the models the assistant can answer with",
		Args:    cobra.NoArgs,
		PreRunE: cmdenv.PreRunE(&env),
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := env.Client.Chat.Models(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			out := cmd.OutOrStdout()
			preferred := env.Config.Chat.DefaultModel
			for _, m := range models {
				if m == preferred {
					fmt.Fprintf(out, "  %s %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(m), cliui.DimStyle.Render("(default)"))
					continue
				}
				fmt.Fprintf(out, "    %s\n", m)
			}
			return nil
		},
	}

	return authz.RequireAuth(cmd,
		credentials.RoleAdmin,
		credentials.RoleUser,
		credentials.RoleKnowledgeManager,
	)
}
