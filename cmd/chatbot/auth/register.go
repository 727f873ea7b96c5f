package authcmder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

const registerLongDesc string = `Create an account on the chatbot backend and log in with it.

New accounts are granted the user role. The password is read the same way
as for "chatbot login".

Examples:
  chatbot register alice --email alice@example.com`

const registerShortDesc string = "Create an account and log in"

type registerCommander struct {
	email string
	env   *cmdenv.Env
}

func NewRegisterCmd() *cobra.Command {
	cmder := &registerCommander{}

	cmd := &cobra.Command{
		Use:     "register <username>",
		Short:   registerShortDesc,
		Long:    registerLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmdenv.PreRunE(&cmder.env),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.email, "email", "e", "", "Email address of the new account")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (c *registerCommander) run(cmd *cobra.Command, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username cannot be empty")
	}

	out := cmd.OutOrStdout()
	password, err := readSecret(cmd.InOrStdin(), out, "Choose a password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	resp, err := c.env.Client.Auth.Register(cmd.Context(), client.RegisterRequest{
		Username: username,
		Password: password,
		Email:    c.email,
	})
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	fmt.Fprintf(out, "\n  %s Registered and logged in as %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(resp.Username),
	)
	return nil
}
