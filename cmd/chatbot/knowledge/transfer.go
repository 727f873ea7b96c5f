package knowledgecmder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

// maxImport is the largest batch the backend accepts.
const maxImport = 1000

func (c *knowledgeCommander) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create articles from a JSON array or a CSV export",
		Long: `Create every article in file with one batch request.

A .csv file must carry a header row naming at least the Title and Content
columns, as written by "chatbot knowledge export csv". Anything else is
read as a JSON array of {"title", "content", "category"} objects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readArticles(args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("no articles to import")
			}
			if len(items) > maxImport {
				return fmt.Errorf("%d articles exceed the batch limit of %d", len(items), maxImport)
			}

			err = cliui.Step(cmd.OutOrStdout(), fmt.Sprintf("Importing %d articles", len(items)), func() error {
				return c.env.Client.Knowledge.BatchImport(cmd.Context(), items)
			})
			if err != nil {
				return fmt.Errorf("importing articles: %w", err)
			}
			return nil
		},
	}
}

func readArticles(path string) ([]client.Knowledge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(f)
	}

	var items []client.Knowledge
	if err := json.NewDecoder(f).Decode(&items); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	for i := range items {
		items[i].ID = 0
	}
	return items, nil
}

func readCSV(r io.Reader) ([]client.Knowledge, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	column := func(name string) int {
		return slices.IndexFunc(header, func(h string) bool { return strings.EqualFold(strings.TrimSpace(h), name) })
	}
	title, content, category := column("title"), column("content"), column("category")
	if title < 0 || content < 0 {
		return nil, errors.New("csv import needs Title and Content columns")
	}

	items := make([]client.Knowledge, 0, len(records)-1)
	for _, rec := range records[1:] {
		k := client.Knowledge{Title: rec[title], Content: rec[content]}
		if category >= 0 {
			k.Category = rec[category]
		}
		items = append(items, k)
	}
	return items, nil
}

func (c *knowledgeCommander) newExportCmd() *cobra.Command {
	var output string

	formats := make([]string, 0, len(client.ExportFormats()))
	for _, f := range client.ExportFormats() {
		formats = append(formats, string(f))
	}

	cmd := &cobra.Command{
		Use:   "export <format>",
		Short: "Download the knowledge base (" + strings.Join(formats, ", ") + ")",
		Long: `Download every article.

Without --output the file is saved in the current directory under the name
suggested by the backend.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: formats,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := client.ExportFormat(args[0])
			if !slices.Contains(formats, args[0]) {
				return fmt.Errorf("unknown export format %q (available: %s)", args[0], strings.Join(formats, ", "))
			}

			target, err := c.export(cmd, format, output)
			if errors.Is(err, client.ErrEmptyExport) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %v\n", cliui.DimStyle.Render("●"), err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Saved %s\n", cliui.SuccessMark, cliui.NameStyle.Render(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the export to")

	return cmd
}

// export downloads into output, or into a temporary file that is renamed
// to the suggested filename once the download completed.
func (c *knowledgeCommander) export(cmd *cobra.Command, format client.ExportFormat, output string) (string, error) {
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}

	tmp, err := os.CreateTemp(dir, ".chatbot-export-*")
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	suggested, err := c.env.Client.Knowledge.Export(cmd.Context(), format, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	target := output
	if target == "" {
		target = filepath.Base(suggested)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("saving export: %w", err)
	}
	return target, nil
}
