package devserver

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

// Server is an in-memory emulation of the chatbot backend.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App

	mu            sync.RWMutex
	accounts      map[int64]*account
	nextAccountID int64
	revoked       map[string]time.Time
	articles      map[int64]*client.Knowledge
	nextArticleID int64
	sessions      map[string]*chatSession

	// sessionOrder holds session ids, most recently created first.
	sessionOrder []string
}

// New creates a dev server and registers its routes.
func New(config Config) (*Server, error) {
	config.applyDefaults()
	if len(config.Secret) == 0 {
		config.Secret = make([]byte, 32)
		if _, err := rand.Read(config.Secret); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}

	s := &Server{
		config:   config,
		logger:   logger.OrNop(config.Logger),
		accounts: make(map[int64]*account),
		revoked:  make(map[string]time.Time),
		articles: make(map[int64]*client.Knowledge),
		sessions: make(map[string]*chatSession),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()

	if config.SeedAccounts {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Server) routes() {
	ai := s.app.Group("/ai")

	auth := ai.Group("/auth")
	auth.Post("/login", s.handleLogin)
	auth.Post("/register", s.handleRegister)
	auth.Post("/logout", s.handleLogout)
	auth.Get("/validate", s.handleValidate)

	chat := ai.Group("/chat", s.authenticate, requireAnyRole(
		credentials.RoleAdmin, credentials.RoleUser, credentials.RoleKnowledgeManager,
	))
	chat.Post("/send", s.handleSend)
	chat.Post("/send/reactive", s.handleSendReactive)
	chat.Get("/models", s.handleModels)
	chat.Get("/history/:sessionId", s.handleHistory)
	chat.Get("/sessions", s.handleSessions)
	chat.Delete("/sessions/:sessionId", s.handleDeleteSession)

	knowledge := ai.Group("/knowledge", s.authenticate, requireAnyRole(
		credentials.RoleAdmin, credentials.RoleKnowledgeManager,
	))
	knowledge.Get("/", s.handleKnowledgeList)
	knowledge.Get("/search", s.handleKnowledgeSearch)
	knowledge.Get("/category/:category", s.handleKnowledgeByCategory)
	knowledge.Get("/export/:format", s.handleKnowledgeExport)
	knowledge.Post("/batch-import", s.handleKnowledgeBatchImport)
	knowledge.Get("/:id", s.handleKnowledgeGet)
	knowledge.Post("/", s.handleKnowledgeCreate)
	knowledge.Put("/:id", s.handleKnowledgeUpdate)
	knowledge.Delete("/:id", s.handleKnowledgeDelete)

	users := ai.Group("/users", s.authenticate, requireAnyRole(credentials.RoleAdmin))
	users.Get("/", s.handleUserList)
	users.Get("/:id", s.handleUserGet)
	users.Post("/", s.handleUserCreate)
	users.Put("/:id", s.handleUserUpdate)
	users.Delete("/:id", s.handleUserDelete)
}

// seed creates the demo accounts and a few articles.
func (s *Server) seed() error {
	demo := []struct {
		username, password, email string
		roles                     []string
	}{
		{"admin", "admin", "admin@example.com", []string{credentials.RoleAdmin, credentials.RoleUser}},
		{"manager", "manager", "manager@example.com", []string{credentials.RoleKnowledgeManager, credentials.RoleUser}},
		{"user", "user", "user@example.com", []string{credentials.RoleUser}},
	}
	for _, d := range demo {
		if _, err := s.AddAccount(d.username, d.password, d.email, d.roles...); err != nil {
			return fmt.Errorf("seeding account %s: %w", d.username, err)
		}
	}

	for _, k := range []client.Knowledge{
		{Title: "Resetting your password", Category: "account", Content: "Use the login page link to request a reset email."},
		{Title: "Supported models", Category: "chat", Content: "The assistant answers with qwen3 or deepseekR1."},
		{Title: "Exporting the knowledge base", Category: "knowledge", Content: "Managers can export every article as CSV."},
	} {
		s.AddArticle(k)
	}
	return nil
}

// App returns the underlying fiber app, for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler returns the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting dev server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
