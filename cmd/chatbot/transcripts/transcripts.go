// Package transcriptscmder provides the transcripts command for reading the
// local archive of chat exchanges written by "chatbot chat".
package transcriptscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/config"
	"github.com/papercomputeco/chatbot/pkg/storage"
	"github.com/papercomputeco/chatbot/pkg/utils"
)

const transcriptsLongDesc string = `Read the local transcript archive.

Every exchange made with "chatbot chat" is archived locally, in SQLite by
default (transcript.sqlite_path) or PostgreSQL (transcript.postgres_dsn).
The archive keeps streaming statistics the backend does not: chunk,
duplicate and malformed record counts, and errors.

Examples:
  chatbot transcripts list
  chatbot transcripts show 0b7c...
  chatbot transcripts show 0b7c... --json
  chatbot transcripts delete 0b7c...`

const transcriptsShortDesc string = "Read the local transcript archive"

type transcriptsCommander struct {
	transcriptProvider string
	sqlitePath         string
	postgresDSN        string

	env *cmdenv.Env
}

func NewTranscriptsCmd() *cobra.Command {
	cmder := &transcriptsCommander{}

	cmd := &cobra.Command{
		Use:               "transcripts",
		Short:             transcriptsShortDesc,
		Long:              transcriptsLongDesc,
		PersistentPreRunE: cmdenv.PreRunE(&cmder.env, config.ChatFlags),
	}

	config.AddPersistentStringFlag(cmd, config.ChatFlags, config.FlagTranscriptProvider, &cmder.transcriptProvider)
	config.AddPersistentStringFlag(cmd, config.ChatFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddPersistentStringFlag(cmd, config.ChatFlags, config.FlagPostgresDSN, &cmder.postgresDSN)

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newShowCmd())
	cmd.AddCommand(cmder.newDeleteCmd())

	return cmd
}

// withDriver opens the archive for the duration of fn.
func (c *transcriptsCommander) withDriver(ctx context.Context, fn func(storage.Driver) error) error {
	d, err := c.env.OpenTranscripts(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func (c *transcriptsCommander) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDriver(cmd.Context(), func(d storage.Driver) error {
				sessions, err := d.Sessions(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing transcripts: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintf(out, "  %s No transcripts yet.\n", cliui.DimStyle.Render("●"))
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						s.SessionID,
						strconv.Itoa(s.Turns),
						s.FirstAt.Local().Format(time.DateTime),
						s.LastAt.Local().Format(time.DateTime),
					})
				}
				cliui.Table(out, []string{"SESSION", "TURNS", "FIRST", "LAST"}, rows)
				return nil
			})
		},
	}
}

func (c *transcriptsCommander) newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the archived exchanges of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDriver(cmd.Context(), func(d storage.Driver) error {
				turns, err := d.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(turns)
				}

				fmt.Fprintf(out, "\n  %s  %s\n\n", cliui.KeyStyle.Render("Session:"), cliui.NameStyle.Render(args[0]))
				for i, t := range turns {
					fmt.Fprintf(out, "  %s %s %s\n",
						cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
						cliui.DimStyle.Render(t.StartedAt.Local().Format(time.DateTime)),
						cliui.DimStyle.Render(describe(t)),
					)
					fmt.Fprintf(out, "     %s %s\n", cliui.RoleStyle.Render("[you]"), cliui.PreviewStyle.Render(utils.Truncate(t.Prompt, 72)))
					if t.Error != "" {
						fmt.Fprintf(out, "     %s %s\n", cliui.FailMark, t.Error)
					}
					if t.Reply != "" {
						fmt.Fprintf(out, "     %s %s\n", cliui.RoleStyle.Render("[assistant]"), cliui.PreviewStyle.Render(utils.Truncate(t.Reply, 72)))
					}
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the turns as JSON")

	return cmd
}

func (c *transcriptsCommander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove a session from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDriver(cmd.Context(), func(d storage.Driver) error {
				n, err := d.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Removed %d turns of %s\n", cliui.SuccessMark, n, cliui.NameStyle.Render(args[0]))
				return nil
			})
		},
	}
}

// describe summarises how a turn was delivered.
func describe(t *storage.Turn) string {
	model := t.ModelID
	if model == "" {
		model = "default model"
	}
	if !t.Streamed {
		return fmt.Sprintf("%s, %s", model, cliui.FormatDuration(t.Duration()))
	}
	s := fmt.Sprintf("%s, %s, %d chunks", model, cliui.FormatDuration(t.Duration()), t.Chunks)
	if t.Duplicates > 0 {
		s += fmt.Sprintf(", %d duplicates", t.Duplicates)
	}
	if t.Malformed > 0 {
		s += fmt.Sprintf(", %d malformed", t.Malformed)
	}
	return s
}
