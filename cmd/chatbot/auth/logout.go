package authcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

const logoutShortDesc string = "Log out and forget the stored session"

func NewLogoutCmd() *cobra.Command {
	var env *cmdenv.Env

	cmd := &cobra.Command{
		Use:     "logout",
		Short:   logoutShortDesc,
		Long:    "Revoke the stored token on the backend, when reachable, and remove credentials.toml.",
		Args:    cobra.NoArgs,
		PreRunE: cmdenv.PreRunE(&env),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Client.Auth.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logging out: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Logged out\n\n", cliui.SuccessMark)
			return nil
		},
	}

	return cmd
}
