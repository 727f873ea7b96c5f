package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/chatbot/pkg/chat"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/utils"
)

const replHelp = `  /new              Start a new session
  /sessions         List your sessions
  /switch <id>      Continue another session
  /delete [id]      Delete a session (default: the current one)
  /history          Show the messages of the current session
  /models           List the available models
  /model <id>       Switch model
  /exit             Leave`

// command runs one slash command and reports whether the REPL should end.
func (c *chatCommander) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]

	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("usage: %s <id>", name)
		}
		return args[0], nil
	}

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintf(c.out, "%s\n\n", replHelp)

	case "/new":
		id := c.conv.NewSession()
		fmt.Fprintf(c.out, "  %s New session %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(id))

	case "/sessions":
		if err := c.conv.LoadSessions(ctx); err != nil {
			return false, err
		}
		c.printSessions()

	case "/switch":
		id, err := arg()
		if err != nil {
			return false, err
		}
		if err := c.conv.Switch(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "  %s Switched to %s %s\n\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(id),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(c.conv.Messages()))),
		)

	case "/delete":
		id := c.conv.Current()
		if len(args) > 0 {
			id = args[0]
		}
		if id == "" {
			return false, fmt.Errorf("no session to delete")
		}
		if err := c.conv.Delete(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "  %s Deleted %s, now in %s\n\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(id),
			cliui.NameStyle.Render(c.conv.Current()),
		)

	case "/history":
		c.printHistory()

	case "/models":
		for _, m := range c.conv.Models() {
			mark := " "
			if m == c.conv.Model() {
				mark = cliui.SuccessMark
			}
			fmt.Fprintf(c.out, "  %s %s\n", mark, m)
		}
		fmt.Fprintln(c.out)

	case "/model":
		model, err := arg()
		if err != nil {
			return false, err
		}
		if err := c.conv.SelectModel(model); err != nil {
			return false, fmt.Errorf("%w: %s", err, model)
		}
		fmt.Fprintf(c.out, "  %s Using %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(model))

	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}

	return false, nil
}

func (c *chatCommander) printSessions() {
	sessions := c.conv.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintf(c.out, "  %s No sessions yet.\n\n", cliui.DimStyle.Render("●"))
		return
	}
	for _, id := range sessions {
		mark := " "
		if id == c.conv.Current() {
			mark = cliui.SuccessMark
		}
		fmt.Fprintf(c.out, "  %s %s\n", mark, id)
	}
	fmt.Fprintln(c.out)
}

func (c *chatCommander) printHistory() {
	messages := c.conv.Messages()
	if len(messages) == 0 {
		fmt.Fprintf(c.out, "  %s No messages yet.\n\n", cliui.DimStyle.Render("●"))
		return
	}
	for i, msg := range messages {
		role := msg.Role
		if role == chat.RoleUser {
			role = "you"
		}
		fmt.Fprintf(c.out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.RoleStyle.Render("["+role+"]"),
			cliui.PreviewStyle.Render(utils.Truncate(msg.Content, 72)),
		)
	}
	fmt.Fprintln(c.out)
}
