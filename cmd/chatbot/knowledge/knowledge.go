// Package knowledgecmder provides the knowledge command for browsing and
// maintaining the assistant's knowledge base.
package knowledgecmder

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/utils"
)

const knowledgeLongDesc string = `Browse and maintain the knowledge base.

Requires the admin or knowledge manager role.

Examples:
  chatbot knowledge list --page 2
  chatbot knowledge search password
  chatbot knowledge category account
  chatbot knowledge get 12
  chatbot knowledge add --title "Opening hours" --category general --content "9 to 5"
  chatbot knowledge update 12 --content-file answer.md
  chatbot knowledge delete 12
  chatbot knowledge import articles.json
  chatbot knowledge export csv -o knowledge.csv`

const knowledgeShortDesc string = "Manage the knowledge base"

const defaultPageSize = 12

type knowledgeCommander struct {
	env *cmdenv.Env
}

func NewKnowledgeCmd() *cobra.Command {
	cmder := &knowledgeCommander{}

	cmd := &cobra.Command{
		Use:               "knowledge",
		Short:             knowledgeShortDesc,
		Long:              knowledgeLongDesc,
		PersistentPreRunE: cmdenv.PreRunE(&cmder.env),
	}

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newSearchCmd())
	cmd.AddCommand(cmder.newCategoryCmd())
	cmd.AddCommand(cmder.newGetCmd())
	cmd.AddCommand(cmder.newAddCmd())
	cmd.AddCommand(cmder.newUpdateCmd())
	cmd.AddCommand(cmder.newDeleteCmd())
	cmd.AddCommand(cmder.newImportCmd())
	cmd.AddCommand(cmder.newExportCmd())

	return authz.RequireAuth(cmd, credentials.RoleAdmin, credentials.RoleKnowledgeManager)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid article id %q", arg)
	}
	return id, nil
}

func printPage(w io.Writer, p *client.Page[client.Knowledge]) {
	if len(p.Content) == 0 {
		fmt.Fprintf(w, "  %s No articles.\n", cliui.DimStyle.Render("●"))
		return
	}

	rows := make([][]string, 0, len(p.Content))
	for _, k := range p.Content {
		rows = append(rows, []string{
			strconv.FormatInt(k.ID, 10),
			utils.Truncate(k.Title, 40),
			k.Category,
			k.UpdatedAt,
		})
	}
	cliui.Table(w, []string{"ID", "TITLE", "CATEGORY", "UPDATED"}, rows)
	fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render(fmt.Sprintf("page %d of %d, %d articles", p.CurrentPage, max(p.TotalPages, 1), p.TotalElements)))
}

func printArticle(w io.Writer, k *client.Knowledge) {
	fmt.Fprintln(w)
	cliui.KeyValues(w, [][2]string{
		{"ID", strconv.FormatInt(k.ID, 10)},
		{"Title", k.Title},
		{"Category", k.Category},
		{"Created", k.CreatedAt},
		{"Updated", k.UpdatedAt},
	})
	fmt.Fprintf(w, "\n%s\n\n", k.Content)
}
