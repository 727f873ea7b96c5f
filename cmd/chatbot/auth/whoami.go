package authcmder

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

const whoamiShortDesc string = "Show the stored session"

func NewWhoamiCmd() *cobra.Command {
	var (
		env      *cmdenv.Env
		validate bool
	)

	cmd := &cobra.Command{
		Use:     "whoami",
		Short:   whoamiShortDesc,
		Long:    "Show the user, roles and token expiry of the stored session. With --validate the backend is asked whether it still accepts the token.",
		Args:    cobra.NoArgs,
		PreRunE: cmdenv.PreRunE(&env),
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			session, err := env.Credentials.Load()
			if err != nil {
				return err
			}
			if !session.LoggedIn() {
				fmt.Fprintf(out, "  %s Not logged in. Use 'chatbot login <username>'.\n", cliui.DimStyle.Render("●"))
				return nil
			}

			expires := "unknown"
			if exp, ok := session.ExpiresAt(); ok {
				expires = exp.Local().Format(time.RFC1123)
				if session.Expired(time.Now()) {
					expires += " (expired)"
				}
			}

			fmt.Fprintln(out)
			cliui.KeyValues(out, [][2]string{
				{"User", session.Username},
				{"Roles", strings.Join(session.Roles, ", ")},
				{"Backend", env.Client.BaseURL()},
				{"Expires", expires},
				{"Credentials", env.Credentials.GetTarget()},
			})

			if validate {
				if env.Client.Auth.Validate(cmd.Context()) {
					fmt.Fprintf(out, "\n  %s Token accepted by the backend\n", cliui.SuccessMark)
				} else {
					fmt.Fprintf(out, "\n  %s Token rejected by the backend\n", cliui.FailMark)
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Ask the backend whether the token is still valid")

	return cmd
}
