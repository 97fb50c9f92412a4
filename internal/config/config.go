package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Model   string
	APIBase string

	DataDir    string
	PromptsDir string

	Verbose         bool
	TypingEnabled   bool
	TypingSpeed     float64
	SyntaxHighlight bool
	ColorEnabled    bool

	MaxRoundTrips int
	WindowSize    int
	ChatTimeout   time.Duration
	RunTimeout    time.Duration

	ServeAddr string
}

func Load() (*Config, error) {
	// .env is optional — env vars may already be set
	_ = godotenv.Load()

	cfg := &Config{
		Model:           envOr("LOCAI_MODEL", "qwen2.5-coder:7b"),
		APIBase:         envOr("LOCAI_API_BASE", "http://localhost:11434"),
		DataDir:         os.Getenv("LOCAI_DATA_DIR"),
		PromptsDir:      os.Getenv("LOCAI_PROMPTS_DIR"),
		Verbose:         parseBoolEnv("LOCAI_VERBOSE", false),
		TypingEnabled:   parseBoolEnv("LOCAI_TYPING", true),
		TypingSpeed:     parseFloatEnv("LOCAI_TYPING_SPEED", 0.01),
		SyntaxHighlight: parseBoolEnv("LOCAI_SYNTAX", true),
		ColorEnabled:    parseBoolEnv("LOCAI_COLOR", true),
		MaxRoundTrips:   parseIntEnv("LOCAI_MAX_ROUND_TRIPS", 20),
		WindowSize:      parseIntEnv("LOCAI_WINDOW_SIZE", 30),
		ChatTimeout:     parseDurationEnv("LOCAI_CHAT_TIMEOUT", 60*time.Second),
		RunTimeout:      parseDurationEnv("LOCAI_RUN_TIMEOUT", 30*time.Second),
		ServeAddr:       envOr("LOCAI_SERVE_ADDR", "127.0.0.1:8090"),
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".locai")
	}
	if cfg.PromptsDir == "" {
		cfg.PromptsDir = filepath.Join(cfg.DataDir, "prompts")
	}

	if cfg.TypingSpeed < 0.005 || cfg.TypingSpeed > 0.2 {
		return nil, fmt.Errorf("LOCAI_TYPING_SPEED must be between 0.005 and 0.2, got %g", cfg.TypingSpeed)
	}
	if cfg.MaxRoundTrips < 1 {
		return nil, fmt.Errorf("LOCAI_MAX_ROUND_TRIPS must be at least 1, got %d", cfg.MaxRoundTrips)
	}
	if cfg.WindowSize < 2 {
		return nil, fmt.Errorf("LOCAI_WINDOW_SIZE must be at least 2, got %d", cfg.WindowSize)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloatEnv(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBoolEnv(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
