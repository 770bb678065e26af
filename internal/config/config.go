// Package config loads the proxy configuration from the environment.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/llm"
)

const (
	AppName     = "katazuke-proxy"
	EnvFileName = "config.env"

	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ErrMissingAPIKey is returned by Validate in production when no Gemini key
// is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Config holds the process configuration.
type Config struct {
	AppEnv           string
	Port             string
	GeminiAPIKey     string
	StandardModel    string
	HighQualityModel string
	AnalysisModel    string
	InspectionModel  string
	ProductionOrigin string
	MaxBodyBytes     int64
	OverloadRetries  int
	OverloadBackoff  time.Duration
	AnalysisCache    int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	LimitsFile       string
}

// LoadEnvFile loads environment variables from .env in the working
// directory and from the config file in the user's config directory.
// Variables already set win. Errors are ignored since the files may not
// exist.
func LoadEnvFile() {
	_ = godotenv.Load()
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
}

// Load reads the configuration from environment variables, applying
// defaults where a variable is unset or malformed.
func Load() *Config {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("VITE_GEMINI_API_KEY")
	}

	return &Config{
		AppEnv:           getEnv("APP_ENV", EnvDevelopment),
		Port:             getEnv("PORT", "3001"),
		GeminiAPIKey:     apiKey,
		StandardModel:    getEnv("GEMINI_STANDARD_IMAGE_MODEL", llm.DefaultStandardImageModel),
		HighQualityModel: getEnv("GEMINI_HQ_IMAGE_MODEL", llm.DefaultHighQualityImageModel),
		AnalysisModel:    getEnv("GEMINI_ANALYSIS_MODEL", llm.DefaultAnalysisModel),
		InspectionModel:  getEnv("GEMINI_INSPECTION_MODEL", llm.DefaultInspectionModel),
		ProductionOrigin: os.Getenv("PRODUCTION_ORIGIN"),
		MaxBodyBytes:     int64(getEnvInt("MAX_BODY_BYTES", 50<<20)),
		OverloadRetries:  getEnvInt("OVERLOAD_RETRIES", cleanup.DefaultOverloadRetries),
		OverloadBackoff:  getEnvDuration("OVERLOAD_BACKOFF", cleanup.DefaultOverloadBackoff),
		AnalysisCache:    getEnvInt("ANALYSIS_CACHE_SIZE", 32),
		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 60*time.Second),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		HTTPIdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		LimitsFile:       os.Getenv("LIMITS_FILE"),
	}
}

// IsProduction reports whether the proxy runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Validate checks settings that would make every request fail. A missing
// API key is only an error in production.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" && c.IsProduction() {
		return ErrMissingAPIKey
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
