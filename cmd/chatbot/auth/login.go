package authcmder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

const loginLongDesc string = `Log in to the chatbot backend.

The password is prompted for with hidden input, or read from the first line
of stdin when it is piped. The returned token is stored in credentials.toml
in the .chatbot/ directory and sent with every later command.

Examples:
  chatbot login alice
  echo "$PASSWORD" | chatbot login alice
  chatbot login alice --base-url https://chat.example.com`

const loginShortDesc string = "Log in to the chatbot backend"

type loginCommander struct {
	env *cmdenv.Env
}

func NewLoginCmd() *cobra.Command {
	cmder := &loginCommander{}

	cmd := &cobra.Command{
		Use:     "login <username>",
		Short:   loginShortDesc,
		Long:    loginLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmdenv.PreRunE(&cmder.env),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	return cmd
}

func (c *loginCommander) run(cmd *cobra.Command, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username cannot be empty")
	}

	out := cmd.OutOrStdout()
	password, err := readSecret(cmd.InOrStdin(), out, fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	resp, err := c.env.Client.Auth.Login(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	fmt.Fprintf(out, "\n  %s Logged in as %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(resp.Username),
		cliui.DimStyle.Render("("+strings.Join(resp.Roles, ", ")+")"),
	)
	return nil
}
