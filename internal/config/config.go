package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults match the original desktop service.
const (
	DefaultPort   = 8000
	DefaultEngine = "bundled"
)

// Config carries environment-derived defaults. Command-line flags are bound
// on top of these values, so flags always win.
type Config struct {
	Port      int
	Model     string
	ModelDir  string
	Language  string
	Engine    string
	LogFile   string
	OpenAIKey string
}

// Load reads an optional .env file into the process environment, then
// collects the WHISPERAPI_* variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      envIntOr("WHISPERAPI_PORT", DefaultPort),
		Model:     envOr("WHISPERAPI_MODEL", ""),
		ModelDir:  envOr("WHISPERAPI_MODEL_DIR", ""),
		Language:  envOr("WHISPERAPI_LANGUAGE", "auto"),
		Engine:    envOr("WHISPERAPI_ENGINE", DefaultEngine),
		LogFile:   envOr("WHISPERAPI_LOG_FILE", ""),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOr(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
