package knowledgecmder

import (
	"fmt"

	"github.com/spf13/cobra"
)

type pageFlags struct {
	page int
	size int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&p.page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&p.size, "size", defaultPageSize, "Articles per page")
}

func (c *knowledgeCommander) newListCmd() *cobra.Command {
	var pf pageFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.env.Client.Knowledge.List(cmd.Context(), pf.page, pf.size)
			if err != nil {
				return fmt.Errorf("listing articles: %w", err)
			}
			printPage(cmd.OutOrStdout(), p)
			return nil
		},
	}
	pf.register(cmd)

	return cmd
}

func (c *knowledgeCommander) newSearchCmd() *cobra.Command {
	var pf pageFlags

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search article titles and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.env.Client.Knowledge.Search(cmd.Context(), args[0], pf.page, pf.size)
			if err != nil {
				return fmt.Errorf("searching articles: %w", err)
			}
			printPage(cmd.OutOrStdout(), p)
			return nil
		},
	}
	pf.register(cmd)

	return cmd
}

func (c *knowledgeCommander) newCategoryCmd() *cobra.Command {
	var pf pageFlags

	cmd := &cobra.Command{
		Use:   "category <name>",
		Short: "List the articles of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.env.Client.Knowledge.ByCategory(cmd.Context(), args[0], pf.page, pf.size)
			if err != nil {
				return fmt.Errorf("listing category: %w", err)
			}
			printPage(cmd.OutOrStdout(), p)
			return nil
		},
	}
	pf.register(cmd)

	return cmd
}
