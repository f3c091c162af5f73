// Package config provides configuration helpers for soulweaver.
package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Defaults for the Gemini Live session.
const (
	DefaultModel       = "models/gemini-2.0-flash-exp"
	DefaultVoice       = "Zephyr"
	DefaultProfilePath = "soulweaver-profile.json"
)

// App holds process-level configuration read from the environment.
type App struct {
	// GeminiAPIKey authenticates the Live websocket. Required.
	GeminiAPIKey string

	// Model is the Live model resource name.
	Model string

	// Voice is the prebuilt voice used for audio responses.
	Voice string

	// ProfilePath is where the persisted user profile record lives.
	ProfilePath string

	// LogLevel is the slog level name ("debug", "info", "warn", "error").
	LogLevel string
}

// Load reads configuration from the environment, consulting a .env file
// if one is present in the working directory.
func Load() (App, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	app := App{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		Model:        getenv("SOULWEAVER_MODEL", DefaultModel),
		Voice:        getenv("SOULWEAVER_VOICE", DefaultVoice),
		ProfilePath:  getenv("SOULWEAVER_PROFILE", DefaultProfilePath),
		LogLevel:     getenv("SOULWEAVER_LOG_LEVEL", "info"),
	}

	if app.GeminiAPIKey == "" {
		return App{}, errors.New("config: GEMINI_API_KEY environment variable is required")
	}

	return app, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
