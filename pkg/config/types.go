package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent chatbot configuration stored as config.toml
// in the .chatbot/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Chat       ChatConfig       `toml:"chat"`
	Transcript TranscriptConfig `toml:"transcript"`
	Events     EventsConfig     `toml:"events"`
	DevServer  DevServerConfig  `toml:"devserver"`
}

// ServerConfig holds settings for reaching the chatbot backend.
// BaseURL is a full URL (scheme + host + port), without the /ai prefix.
type ServerConfig struct {
	BaseURL string   `toml:"base_url,omitempty"`
	Timeout Duration `toml:"timeout,omitempty"`
}

// ChatConfig holds defaults for the chat command.
type ChatConfig struct {
	DefaultModel   string `toml:"default_model,omitempty"`
	RenderMarkdown *bool  `toml:"render_markdown,omitempty"`
}

// Markdown reports whether assistant answers are rendered as markdown.
func (c ChatConfig) Markdown() bool {
	if c.RenderMarkdown == nil {
		return true
	}
	return *c.RenderMarkdown
}

// TranscriptConfig selects where completed chat turns are archived locally.
type TranscriptConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig configures the turn event publisher. An empty broker list
// disables publishing.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// DevServerConfig holds settings for "chatbot serve dev".
type DevServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// Duration is a time.Duration that reads and writes as a Go duration string
// ("30s", "2m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// transcriptProviders are the accepted values of transcript.provider.
var transcriptProviders = []string{"sqlite", "postgres", "memory", "none"}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.base_url": {
		get: func(c *Config) string { return c.Server.BaseURL },
		set: func(c *Config, v string) error { c.Server.BaseURL = strings.TrimRight(v, "/"); return nil },
	},
	"server.timeout": {
		get: func(c *Config) string {
			if c.Server.Timeout == 0 {
				return ""
			}
			return time.Duration(c.Server.Timeout).String()
		},
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for server.timeout: %w", err)
			}
			c.Server.Timeout = Duration(d)
			return nil
		},
	},
	"chat.default_model": {
		get: func(c *Config) string { return c.Chat.DefaultModel },
		set: func(c *Config, v string) error { c.Chat.DefaultModel = v; return nil },
	},
	"chat.render_markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.Chat.Markdown()) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.render_markdown: %w", err)
			}
			c.Chat.RenderMarkdown = &b
			return nil
		},
	},
	"transcript.provider": {
		get: func(c *Config) string { return c.Transcript.Provider },
		set: func(c *Config, v string) error {
			for _, p := range transcriptProviders {
				if v == p {
					c.Transcript.Provider = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for transcript.provider: %q (available: %s)",
				v, strings.Join(transcriptProviders, ", "))
		},
	},
	"transcript.sqlite_path": {
		get: func(c *Config) string { return c.Transcript.SQLitePath },
		set: func(c *Config, v string) error { c.Transcript.SQLitePath = v; return nil },
	},
	"transcript.postgres_dsn": {
		get: func(c *Config) string { return c.Transcript.PostgresDSN },
		set: func(c *Config, v string) error { c.Transcript.PostgresDSN = v; return nil },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.KafkaBrokers, ",") },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = SplitList(v); return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"devserver.listen": {
		get: func(c *Config) string { return c.DevServer.Listen },
		set: func(c *Config, v string) error { c.DevServer.Listen = v; return nil },
	},
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
