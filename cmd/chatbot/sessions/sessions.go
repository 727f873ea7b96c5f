// Package sessionscmder provides the sessions command for listing, reading
// and deleting chat sessions stored on the backend.
package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/utils"
)

const sessionsLongDesc string = `Manage your chat sessions on the backend.

Examples:
  chatbot sessions list
  chatbot sessions history 0b7c...
  chatbot sessions delete 0b7c...`

const sessionsShortDesc string = "Manage chat sessions"

func NewSessionsCmd() *cobra.Command {
	var env *cmdenv.Env

	cmd := &cobra.Command{
		Use:               "sessions",
		Short:             sessionsShortDesc,
		Long:              sessionsLongDesc,
		PersistentPreRunE: cmdenv.PreRunE(&env),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := env.Client.Chat.Sessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintf(out, "  %s No sessions yet.\n", cliui.DimStyle.Render("●"))
				return nil
			}
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := env.Client.Chat.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n  %s  %s\n\n", cliui.KeyStyle.Render("Session:"), cliui.NameStyle.Render(args[0]))
			for i, item := range items {
				role := item.Role
				if role == "" {
					role = "assistant"
				}
				fmt.Fprintf(out, "  %s %s %s\n",
					cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
					cliui.RoleStyle.Render("["+role+"]"),
					cliui.PreviewStyle.Render(utils.Truncate(item.Message, 72)),
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Client.Chat.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	})

	return authz.RequireAuth(cmd,
		credentials.RoleAdmin,
		credentials.RoleUser,
		credentials.RoleKnowledgeManager,
	)
}
