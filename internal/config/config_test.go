package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "GEMINI_API_KEY", "VITE_GEMINI_API_KEY",
		"GEMINI_STANDARD_IMAGE_MODEL", "GEMINI_HQ_IMAGE_MODEL", "GEMINI_ANALYSIS_MODEL",
		"GEMINI_INSPECTION_MODEL", "PRODUCTION_ORIGIN", "MAX_BODY_BYTES", "OVERLOAD_RETRIES",
		"OVERLOAD_BACKOFF", "ANALYSIS_CACHE_SIZE", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT", "LIMITS_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, llm.DefaultStandardImageModel, cfg.StandardModel)
	assert.Equal(t, llm.DefaultHighQualityImageModel, cfg.HighQualityModel)
	assert.Equal(t, llm.DefaultAnalysisModel, cfg.AnalysisModel)
	assert.Equal(t, llm.DefaultInspectionModel, cfg.InspectionModel)
	assert.Equal(t, int64(50<<20), cfg.MaxBodyBytes)
	assert.Equal(t, cleanup.DefaultOverloadRetries, cfg.OverloadRetries)
	assert.Equal(t, cleanup.DefaultOverloadBackoff, cfg.OverloadBackoff)
	assert.Equal(t, 32, cfg.AnalysisCache)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("OVERLOAD_RETRIES", "5")
	t.Setenv("OVERLOAD_BACKOFF", "500ms")
	t.Setenv("HTTP_READ_TIMEOUT", "15")
	t.Setenv("ANALYSIS_CACHE_SIZE", "0")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, 5, cfg.OverloadRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.OverloadBackoff)
	assert.Equal(t, 15*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 0, cfg.AnalysisCache)
}

func TestLoad_MalformedValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OVERLOAD_RETRIES", "many")
	t.Setenv("OVERLOAD_BACKOFF", "soon")

	cfg := Load()

	assert.Equal(t, cleanup.DefaultOverloadRetries, cfg.OverloadRetries)
	assert.Equal(t, cleanup.DefaultOverloadBackoff, cfg.OverloadBackoff)
}

func TestLoad_ViteKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_GEMINI_API_KEY", "vite-key")
	assert.Equal(t, "vite-key", Load().GeminiAPIKey)

	t.Setenv("GEMINI_API_KEY", "primary")
	assert.Equal(t, "primary", Load().GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	dev := &Config{AppEnv: EnvDevelopment}
	assert.NoError(t, dev.Validate())

	prod := &Config{AppEnv: EnvProduction}
	assert.ErrorIs(t, prod.Validate(), ErrMissingAPIKey)

	prod.GeminiAPIKey = "key"
	assert.NoError(t, prod.Validate())
}

func TestLoadTuning_EmptyPath(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuning_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daily_limits:\n  pro: 3\n  retry: 0\npass_threshold: 7\n"), 0o600))

	tuning, err := LoadTuning(path)

	require.NoError(t, err)
	assert.Equal(t, 3, tuning.Limits[quota.HighQualityGeneration])
	assert.Equal(t, 0, tuning.Limits[quota.Retry])
	assert.Equal(t, 50, tuning.Limits[quota.StandardGeneration])
	assert.Equal(t, 100, tuning.Limits[quota.Inspection])
	assert.Equal(t, 7, tuning.PassThreshold)
}

func TestLoadTuning_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown capability", "daily_limits:\n  ultra: 1\n"},
		{"negative limit", "daily_limits:\n  flash: -1\n"},
		{"threshold too high", "pass_threshold: 11\n"},
		{"not yaml", "daily_limits: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTuning([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadTuning_MissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
