package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatbot/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATBOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATBOT_SERVER_BASE_URL, CHATBOT_CHAT_DEFAULT_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATBOT_SERVER_BASE_URL, CHATBOT_TRANSCRIPT_PROVIDER, etc.
	v.SetEnvPrefix("CHATBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materialises a Config from v, so env vars and bound flags are
// reflected in the typed view.
func FromViper(v *viper.Viper) *Config {
	markdown := v.GetBool("chat.render_markdown")
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			BaseURL: strings.TrimRight(v.GetString("server.base_url"), "/"),
			Timeout: Duration(v.GetDuration("server.timeout")),
		},
		Chat: ChatConfig{
			DefaultModel:   v.GetString("chat.default_model"),
			RenderMarkdown: &markdown,
		},
		Transcript: TranscriptConfig{
			Provider:    v.GetString("transcript.provider"),
			SQLitePath:  v.GetString("transcript.sqlite_path"),
			PostgresDSN: v.GetString("transcript.postgres_dsn"),
		},
		Events: EventsConfig{
			KafkaBrokers: brokersFromViper(v),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		DevServer: DevServerConfig{
			Listen: v.GetString("devserver.listen"),
		},
	}
}

// brokersFromViper accepts both a TOML array and a comma separated env var.
func brokersFromViper(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("events.kafka_brokers") {
		out = append(out, SplitList(b)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.timeout", time.Duration(d.Server.Timeout))

	// Chat
	v.SetDefault("chat.default_model", d.Chat.DefaultModel)
	v.SetDefault("chat.render_markdown", d.Chat.Markdown())

	// Transcript
	v.SetDefault("transcript.provider", d.Transcript.Provider)
	v.SetDefault("transcript.sqlite_path", d.Transcript.SQLitePath)
	v.SetDefault("transcript.postgres_dsn", d.Transcript.PostgresDSN)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	// Dev server
	v.SetDefault("devserver.listen", d.DevServer.Listen)
}
