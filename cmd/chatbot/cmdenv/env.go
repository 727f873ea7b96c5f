// Package cmdenv resolves what every backend-facing command needs: the
// layered configuration, a logger, the credentials store and a client.
package cmdenv

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/config"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/dotdir"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

// Env is the resolved environment of one command invocation.
type Env struct {
	ConfigDir string
	Debug     bool

	Viper       *viper.Viper
	Config      *config.Config
	Logger      *slog.Logger
	Credentials *credentials.Manager
	Client      *client.Client
}

// Load layers flags, CHATBOT_* env vars, config.toml and defaults for cmd.
// ClientFlags are always bound; sets adds the command's own flags.
func Load(cmd *cobra.Command, sets ...config.FlagSet) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	for _, fs := range append([]config.FlagSet{config.ClientFlags}, sets...) {
		config.BindRegisteredFlags(v, cmd, fs, slices.Sorted(maps.Keys(fs)))
	}
	cfg := config.FromViper(v)

	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	c, err := client.New(client.Config{
		BaseURL:     cfg.Server.BaseURL,
		Timeout:     time.Duration(cfg.Server.Timeout),
		Credentials: creds,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return &Env{
		ConfigDir:   configDir,
		Debug:       debug,
		Viper:       v,
		Config:      cfg,
		Logger:      log,
		Credentials: creds,
		Client:      c,
	}, nil
}

// Authorize enforces the requirements declared on cmd with authz.RequireAuth
// and returns the session it may run with.
func (e *Env) Authorize(cmd *cobra.Command) (*credentials.Session, error) {
	guard := &authz.Guard{
		Store:     e.Credentials,
		Validator: e.Client.Auth,
		Logger:    e.Logger,
	}
	return guard.Check(cmd.Context(), cmd)
}

// PreRunE returns a cobra hook that loads the Env into *target and then
// enforces cmd's requirements.
func PreRunE(target **Env, sets ...config.FlagSet) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		env, err := Load(cmd, sets...)
		if err != nil {
			return err
		}
		if _, err := env.Authorize(cmd); err != nil {
			return err
		}
		*target = env
		return nil
	}
}

// TeeLogFile additionally writes JSON debug records to name in the .chatbot/
// directory. The returned func closes the file.
func (e *Env) TeeLogFile(name string) (func() error, error) {
	path, err := dotdir.NewManager().File(e.ConfigDir, name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	e.Logger = logger.Tee(e.Logger, logger.New(
		logger.WithJSON(true),
		logger.WithLevel(slog.LevelDebug),
		logger.WithWriter(f),
	))
	return f.Close, nil
}
