package knowledgecmder

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/cliui"
)

// articleFlags carries the editable fields of an article.
type articleFlags struct {
	title       string
	category    string
	content     string
	contentFile string
}

func (a *articleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&a.title, "title", "t", "", "Article title")
	cmd.Flags().StringVarP(&a.category, "category", "c", "", "Article category")
	cmd.Flags().StringVar(&a.content, "content", "", "Article content")
	cmd.Flags().StringVar(&a.contentFile, "content-file", "", "Read the article content from this file")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

// apply overwrites the fields of k whose flags were set on cmd.
func (a *articleFlags) apply(cmd *cobra.Command, k *client.Knowledge) error {
	if cmd.Flags().Changed("title") {
		k.Title = a.title
	}
	if cmd.Flags().Changed("category") {
		k.Category = a.category
	}
	switch {
	case cmd.Flags().Changed("content"):
		k.Content = a.content
	case a.contentFile != "":
		data, err := os.ReadFile(a.contentFile)
		if err != nil {
			return fmt.Errorf("reading content file: %w", err)
		}
		k.Content = string(data)
	}

	if strings.TrimSpace(k.Title) == "" || strings.TrimSpace(k.Content) == "" {
		return errors.New("an article needs a title and content")
	}
	return nil
}

func (c *knowledgeCommander) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			k, err := c.env.Client.Knowledge.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading article: %w", err)
			}
			printArticle(cmd.OutOrStdout(), k)
			return nil
		},
	}
}

func (c *knowledgeCommander) newAddCmd() *cobra.Command {
	var af articleFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var k client.Knowledge
			if err := af.apply(cmd, &k); err != nil {
				return err
			}
			created, err := c.env.Client.Knowledge.Create(cmd.Context(), k)
			if err != nil {
				return fmt.Errorf("creating article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created article %s\n", cliui.SuccessMark, cliui.NameStyle.Render(fmt.Sprint(created.ID)))
			return nil
		},
	}
	af.register(cmd)

	return cmd
}

func (c *knowledgeCommander) newUpdateCmd() *cobra.Command {
	var af articleFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an article, keeping the fields not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			k, err := c.env.Client.Knowledge.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading article: %w", err)
			}
			if err := af.apply(cmd, k); err != nil {
				return err
			}
			if _, err := c.env.Client.Knowledge.Update(cmd.Context(), *k); err != nil {
				return fmt.Errorf("updating article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Updated article %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
	af.register(cmd)

	return cmd
}

func (c *knowledgeCommander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.env.Client.Knowledge.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting article: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted article %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}
