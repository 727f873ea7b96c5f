// Package servecmder provides the serve command with subcommands for running
// local services.
package servecmder

import (
	"github.com/spf13/cobra"
)

const serveLongDesc string = `Run local chatbot services.

  chatbot serve dev    Run an in-memory backend for development and demos`

const serveShortDesc string = "Run local chatbot services"

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
	}

	cmd.AddCommand(NewDevCmd())

	return cmd
}
