package config

import "time"

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second

	defaultChatModel = "qwen3"

	defaultTranscriptProvider = "sqlite"
	defaultTranscriptPath     = "transcripts.db"

	defaultKafkaTopic = "chatbot.turns"

	defaultDevServerListen = ":8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	markdown := true
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
			Timeout: Duration(defaultTimeout),
		},
		Chat: ChatConfig{
			DefaultModel:   defaultChatModel,
			RenderMarkdown: &markdown,
		},
		Transcript: TranscriptConfig{
			Provider:   defaultTranscriptProvider,
			SQLitePath: defaultTranscriptPath,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		DevServer: DevServerConfig{
			Listen: defaultDevServerListen,
		},
	}
}
