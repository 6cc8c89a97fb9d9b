package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "cinelens"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the
// user's config directory. Errors are ignored since the file may not
// exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Config holds the environment-backed settings. Flags override these at
// the call site in main.
type Config struct {
	APIKey       string
	ProxyBaseURL string

	MaxConcurrency int
	MinSpacing     time.Duration
	MaxAttempts    int
	InitialDelay   time.Duration

	AnalysisModel string
	ImageModel    string

	DBPath string
}

// FromEnv reads configuration from the environment. Unset values stay
// zero and pick up defaults downstream.
func FromEnv() Config {
	return Config{
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		ProxyBaseURL:   os.Getenv("CINELENS_PROXY_BASE_URL"),
		MaxConcurrency: envInt("CINELENS_MAX_CONCURRENCY"),
		MinSpacing:     envDuration("CINELENS_MIN_SPACING"),
		MaxAttempts:    envInt("CINELENS_MAX_ATTEMPTS"),
		InitialDelay:   envDuration("CINELENS_RETRY_DELAY"),
		AnalysisModel:  os.Getenv("CINELENS_ANALYSIS_MODEL"),
		ImageModel:     os.Getenv("CINELENS_IMAGE_MODEL"),
		DBPath:         os.Getenv("CINELENS_DB_PATH"),
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
