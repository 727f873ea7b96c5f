// Package chatbotcmder
package chatbotcmder

import (
	"time"

	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/chatbot/cmd/chatbot/auth"
	chatcmder "github.com/papercomputeco/chatbot/cmd/chatbot/chat"
	configcmder "github.com/papercomputeco/chatbot/cmd/chatbot/config"
	knowledgecmder "github.com/papercomputeco/chatbot/cmd/chatbot/knowledge"
	modelscmder "github.com/papercomputeco/chatbot/cmd/chatbot/models"
	servecmder "github.com/papercomputeco/chatbot/cmd/chatbot/serve"
	sessionscmder "github.com/papercomputeco/chatbot/cmd/chatbot/sessions"
	transcriptscmder "github.com/papercomputeco/chatbot/cmd/chatbot/transcripts"
	userscmder "github.com/papercomputeco/chatbot/cmd/chatbot/users"
	versioncmder "github.com/papercomputeco/chatbot/cmd/version"
	"github.com/papercomputeco/chatbot/pkg/config"
)

const chatbotLongDesc string = `Chatbot is a terminal client for the chatbot backend.

Sign in and chat:
  chatbot login alice
  chatbot chat

Manage the backend:
  chatbot knowledge list      Browse the knowledge base (knowledge managers)
  chatbot users list          Administer accounts (admins)

Run a local backend for development:
  chatbot serve dev`

const chatbotShortDesc string = "Chatbot - terminal chat client"

func NewChatbotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatbot",
		Short:        chatbotShortDesc,
		Long:         chatbotLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	var (
		baseURL string
		timeout time.Duration
	)
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatbot/ config directory")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	config.AddPersistentStringFlag(cmd, config.ClientFlags, config.FlagBaseURL, &baseURL)
	config.AddPersistentDurationFlag(cmd, config.ClientFlags, config.FlagTimeout, &timeout)

	// Add subcommands
	cmd.AddCommand(authcmder.NewLoginCmd())
	cmd.AddCommand(authcmder.NewRegisterCmd())
	cmd.AddCommand(authcmder.NewLogoutCmd())
	cmd.AddCommand(authcmder.NewWhoamiCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(knowledgecmder.NewKnowledgeCmd())
	cmd.AddCommand(userscmder.NewUsersCmd())
	cmd.AddCommand(transcriptscmder.NewTranscriptsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
