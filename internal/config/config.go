package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the service.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	OpenAI  OpenAIConfig
	Mongo   MongoConfig
	Audio   AudioConfig
	Session SessionConfig
}

type ServerConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
	File  string
}

type OpenAIConfig struct {
	APIKey       string
	APIBaseURL   string
	WhisperModel string
	ChatModel    string
	MaxRetries   int
}

type MongoConfig struct {
	URI      string
	Database string
	// FallbackDir holds the JSON-file store used when no database is
	// configured or reachable.
	FallbackDir string
}

type AudioConfig struct {
	TempDir     string
	SampleRate  int
	MinDuration time.Duration
	MaxFileAge  time.Duration
}

type SessionConfig struct {
	BatchSize        int
	ConsolidateAfter int
	IdleSleep        time.Duration
	StatsInterval    time.Duration
	StopTimeout      time.Duration
}

// Load resolves configuration from the environment and sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Addr: envOrDefault("MEETINGSAGE_ADDR", ":5000"),
		},
		Log: LogConfig{
			Level: envOrDefault("MEETINGSAGE_LOG_LEVEL", "info"),
			File:  strings.TrimSpace(os.Getenv("MEETINGSAGE_LOG_FILE")),
		},
		OpenAI: OpenAIConfig{
			APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			APIBaseURL:   envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			WhisperModel: envOrDefault("OPENAI_WHISPER_MODEL", "whisper-1"),
			ChatModel:    envOrDefault("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
			MaxRetries:   envOrDefaultInt("OPENAI_MAX_RETRIES", 2),
		},
		Mongo: MongoConfig{
			URI:         strings.TrimSpace(os.Getenv("MONGODB_URI")),
			Database:    envOrDefault("MONGODB_DB_NAME", "meetingsage"),
			FallbackDir: envOrDefault("MEETINGSAGE_DATA_DIR", "data"),
		},
		Audio: AudioConfig{
			TempDir:     envOrDefault("MEETINGSAGE_TEMP_AUDIO_DIR", "temp_audio"),
			SampleRate:  envOrDefaultInt("MEETINGSAGE_SAMPLE_RATE", 16000),
			MinDuration: time.Duration(envOrDefaultInt("MEETINGSAGE_MIN_AUDIO_SECONDS", 3)) * time.Second,
			MaxFileAge:  time.Duration(envOrDefaultInt("MEETINGSAGE_AUDIO_MAX_AGE_HOURS", 24)) * time.Hour,
		},
		Session: SessionConfig{
			BatchSize:        envOrDefaultInt("MEETINGSAGE_BATCH_SIZE", 10),
			ConsolidateAfter: envOrDefaultInt("MEETINGSAGE_CONSOLIDATE_AFTER", 50),
			IdleSleep:        time.Duration(envOrDefaultInt("MEETINGSAGE_IDLE_SLEEP_MS", 10)) * time.Millisecond,
			StatsInterval:    time.Duration(envOrDefaultInt("MEETINGSAGE_STATS_INTERVAL_MS", 1000)) * time.Millisecond,
			StopTimeout:      time.Duration(envOrDefaultInt("MEETINGSAGE_STOP_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Session.BatchSize <= 0 {
		cfg.Session.BatchSize = 10
	}
	if cfg.Session.ConsolidateAfter <= 0 {
		cfg.Session.ConsolidateAfter = 50
	}
	if cfg.Session.IdleSleep <= 0 {
		cfg.Session.IdleSleep = 10 * time.Millisecond
	}
	if cfg.Session.StopTimeout <= 0 {
		cfg.Session.StopTimeout = 5 * time.Second
	}
	if cfg.OpenAI.MaxRetries < 0 {
		cfg.OpenAI.MaxRetries = 0
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
