// Package userscmder provides the users command for account administration.
package userscmder

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/config"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

const usersLongDesc string = `Administer backend accounts. Requires the admin role.

Roles are given by their full name (ROLE_USER, ROLE_ADMIN,
ROLE_KNOWLEDGEMANAGER) or their short form (user, admin, knowledgemanager).

Examples:
  chatbot users list
  chatbot users get 3
  chatbot users create bob --email bob@example.com --password s3cret --role user
  chatbot users update 3 --role admin --role user
  chatbot users delete 3`

const usersShortDesc string = "Administer accounts"

const defaultPageSize = 6

type usersCommander struct {
	env *cmdenv.Env
}

func NewUsersCmd() *cobra.Command {
	cmder := &usersCommander{}

	cmd := &cobra.Command{
		Use:               "users",
		Short:             usersShortDesc,
		Long:              usersLongDesc,
		PersistentPreRunE: cmdenv.PreRunE(&cmder.env),
	}

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newGetCmd())
	cmd.AddCommand(cmder.newCreateCmd())
	cmd.AddCommand(cmder.newUpdateCmd())
	cmd.AddCommand(cmder.newDeleteCmd())

	return authz.RequireAuth(cmd, credentials.RoleAdmin)
}

// NormalizeRoles maps short role names to the backend's ROLE_ names.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		for _, part := range config.SplitList(r) {
			part = strings.ToUpper(part)
			if !strings.HasPrefix(part, "ROLE_") {
				part = "ROLE_" + part
			}
			out = append(out, part)
		}
	}
	return out
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func printUser(w io.Writer, u *client.User) {
	fmt.Fprintln(w)
	cliui.KeyValues(w, [][2]string{
		{"ID", strconv.FormatInt(u.ID, 10)},
		{"Username", u.Username},
		{"Email", u.Email},
		{"Roles", strings.Join(u.Roles, ", ")},
	})
	fmt.Fprintln(w)
}

func (c *usersCommander) newListCmd() *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.env.Client.Users.List(cmd.Context(), page, size)
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(p.Content))
			for _, u := range p.Content {
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Username, u.Email, strings.Join(u.Roles, ",")})
			}
			cliui.Table(out, []string{"ID", "USERNAME", "EMAIL", "ROLES"}, rows)
			fmt.Fprintf(out, "\n  %s\n", cliui.DimStyle.Render(fmt.Sprintf("page %d of %d, %d users", p.CurrentPage, max(p.TotalPages, 1), p.TotalElements)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", defaultPageSize, "Users per page")

	return cmd
}

func (c *usersCommander) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := c.env.Client.Users.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading user: %w", err)
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

type userFlags struct {
	email    string
	password string
	roles    []string
}

func (f *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "Email address")
	cmd.Flags().StringVar(&f.password, "password", "", "Password")
	cmd.Flags().StringSliceVarP(&f.roles, "role", "r", nil, "Role to grant, repeatable")
}

func (c *usersCommander) newCreateCmd() *cobra.Command {
	var f userFlags

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.password == "" {
				return errors.New("--password is required")
			}
			u, err := c.env.Client.Users.Create(cmd.Context(), client.User{
				Username: args[0],
				Email:    f.email,
				Password: f.password,
				Roles:    NormalizeRoles(f.roles),
			})
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created %s %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(u.Username),
				cliui.DimStyle.Render(fmt.Sprintf("(id %d)", u.ID)),
			)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func (c *usersCommander) newUpdateCmd() *cobra.Command {
	var (
		f        userFlags
		username string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an account, keeping the fields not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := c.env.Client.Users.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading user: %w", err)
			}

			if cmd.Flags().Changed("username") {
				u.Username = username
			}
			if cmd.Flags().Changed("email") {
				u.Email = f.email
			}
			if cmd.Flags().Changed("role") {
				u.Roles = NormalizeRoles(f.roles)
			}
			u.Password = f.password

			updated, err := c.env.Client.Users.Update(cmd.Context(), id, *u)
			if err != nil {
				return fmt.Errorf("updating user: %w", err)
			}
			printUser(cmd.OutOrStdout(), updated)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&username, "username", "n", "", "New username")

	return cmd
}

func (c *usersCommander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.env.Client.Users.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted user %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}
