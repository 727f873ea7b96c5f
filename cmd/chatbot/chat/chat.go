// Package chatcmder provides the chat command for interactive, streamed
// conversations with the chatbot backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/chat"
	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/config"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

type chatCommander struct {
	model              string
	transcriptProvider string
	sqlitePath         string
	postgresDSN        string
	kafkaTopic         string

	session  string
	once     string
	noStream bool
	dumpRaw  string

	env  *cmdenv.Env
	out  io.Writer
	conv *chat.Conversation
}

const chatLongDesc string = `Start an interactive chat session with the chatbot backend.

Replies are streamed as they are generated. Every exchange is archived in
the local transcript store (see "chatbot transcripts") and, when Kafka
brokers are configured, published as a chatbot.turn.recorded event. Debug
logs of the session are appended to chat.log in the .chatbot/ directory.

Inside the session, lines starting with "/" are commands:
  /new              Start a new session
  /sessions         List your sessions
  /switch <id>      Continue another session
  /delete [id]      Delete a session (default: the current one)
  /history          Show the messages of the current session
  /models           List the available models
  /model <id>       Switch model
  /exit             Leave (Ctrl+D works too)

The session ends on its own when you log out in another terminal.

Examples:
  chatbot chat
  chatbot chat --model deepseekR1
  chatbot chat --session 0b7c... --no-stream
  chatbot chat --once "What can you do?"
  chatbot chat --dump-raw stream.log`

const chatShortDesc string = "Chat with the assistant"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:     "chat",
		Short:   chatShortDesc,
		Long:    chatLongDesc,
		Args:    cobra.NoArgs,
		PreRunE: cmdenv.PreRunE(&cmder.env, config.ChatFlags),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.ChatFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.ChatFlags, config.FlagTranscriptProvider, &cmder.transcriptProvider)
	config.AddStringFlag(cmd, config.ChatFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.ChatFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.ChatFlags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringVar(&cmder.session, "session", "", "Continue an existing session")
	cmd.Flags().StringVar(&cmder.once, "once", "", "Send a single message, print the reply and exit")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the complete reply instead of streaming it")
	cmd.Flags().StringVar(&cmder.dumpRaw, "dump-raw", "", "Append the raw response stream to this file")

	return authz.RequireAuth(cmd,
		credentials.RoleAdmin,
		credentials.RoleUser,
		credentials.RoleKnowledgeManager,
	)
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c.out = cmd.OutOrStdout()

	closeLog, err := c.env.TeeLogFile("chat.log")
	if err != nil {
		return err
	}
	defer closeLog()

	recorder, closeRecorder, err := c.openRecorder(ctx)
	if err != nil {
		return err
	}
	defer closeRecorder()

	c.conv = chat.New(chat.Config{
		API:      c.env.Client.Chat,
		Recorder: recorder,
		Model:    c.env.Config.Chat.DefaultModel,
		Logger:   c.env.Logger,
	})

	if err := c.conv.LoadModels(ctx); err != nil {
		return fmt.Errorf("loading models: %w", err)
	}
	if cmd.Flags().Changed("model") {
		if err := c.conv.SelectModel(c.model); err != nil {
			return fmt.Errorf("%w: %s (available: %s)", err, c.model, strings.Join(c.conv.Models(), ", "))
		}
	}

	if c.session != "" {
		if err := c.conv.Switch(ctx, c.session); err != nil {
			return fmt.Errorf("loading session %s: %w", c.session, err)
		}
	}

	var opts []client.StreamOption
	if c.dumpRaw != "" {
		f, err := os.OpenFile(c.dumpRaw, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening raw dump: %w", err)
		}
		defer f.Close()
		opts = append(opts, client.WithRawCopy(f))
	}

	if c.once != "" {
		return c.exchange(ctx, c.once, opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.watchCredentials(ctx, cancel)

	return c.repl(ctx, cmd.InOrStdin(), opts)
}

// watchCredentials ends the session when the stored login disappears.
func (c *chatCommander) watchCredentials(ctx context.Context, cancel context.CancelFunc) {
	err := c.env.Credentials.Watch(ctx, func(s *credentials.Session) {
		if s.LoggedIn() {
			return
		}
		c.env.Logger.Warn("logged out in another terminal")
		cancel()
	})
	if err != nil {
		c.env.Logger.Debug("credentials watch stopped", "error", err)
	}
}

func (c *chatCommander) repl(ctx context.Context, in io.Reader, opts []client.StreamOption) error {
	c.banner()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintf(c.out, "\n  %s Session ended\n\n", cliui.DimStyle.Render("●"))
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(ctx, input)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.exchange(ctx, input, opts); err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			if errors.Is(err, client.ErrUnauthorized) {
				return authz.ErrLoginRequired
			}
		}
	}
}

func (c *chatCommander) banner() {
	session := c.conv.Current()
	if session == "" {
		fmt.Fprintf(c.out, "\n  %s New conversation\n", cliui.DimStyle.Render("●"))
	} else {
		fmt.Fprintf(c.out, "\n  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(session),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(c.conv.Messages()))),
		)
	}
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.conv.Model()))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /help for commands, /exit or Ctrl+D to quit."))
}

// exchange sends input and prints the reply, streamed unless --no-stream.
func (c *chatCommander) exchange(ctx context.Context, input string, opts []client.StreamOption) error {
	if c.noStream {
		reply, err := c.conv.Send(ctx, input)
		if err != nil {
			return err
		}
		c.printReply(reply.Content)
		return nil
	}

	fmt.Fprint(c.out, cliui.AssistantPrompt)
	stats, err := c.conv.SendStreaming(ctx, input, func(fragment string) {
		fmt.Fprint(c.out, fragment)
	}, opts...)
	fmt.Fprint(c.out, "\n\n")

	c.env.Logger.Debug("stream finished",
		"session_id", c.conv.Current(),
		"emitted", stats.Emitted,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed,
		"discarded", stats.Discarded,
	)
	return err
}

func (c *chatCommander) printReply(content string) {
	if c.env.Config.Chat.Markdown() {
		if rendered, err := cliui.RenderMarkdown(content); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintf(c.out, "%s%s\n\n", cliui.AssistantPrompt, content)
}
