package config

import (
	"fmt"
	"os"

	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/quota"
	"gopkg.in/yaml.v3"
)

// Limits is the optional limits file:
//
//	daily_limits:
//	  flash: 50
//	  pro: 10
//	  inspection: 100
//	  retry: 50
//	pass_threshold: 8
type Limits struct {
	DailyLimits   map[string]*int `yaml:"daily_limits"`
	PassThreshold *int            `yaml:"pass_threshold"`
}

// Tuning is the resolved quota and inspection settings.
type Tuning struct {
	Limits        quota.Limits
	PassThreshold int
}

// DefaultTuning returns the built-in limits and threshold.
func DefaultTuning() Tuning {
	return Tuning{
		Limits:        quota.DefaultLimits(),
		PassThreshold: cleanup.DefaultPassThreshold,
	}
}

// LoadTuning reads the limits file at path. An empty path yields the
// defaults. Keys missing from the file keep their default.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("failed to read limits file: %w", err)
	}
	return parseTuning(data)
}

func parseTuning(data []byte) (Tuning, error) {
	tuning := DefaultTuning()

	var raw Limits
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return tuning, fmt.Errorf("failed to parse limits file: %w", err)
	}

	for key, value := range raw.DailyLimits {
		capability := quota.Capability(key)
		if _, known := tuning.Limits[capability]; !known {
			return tuning, fmt.Errorf("unknown capability %q in limits file", key)
		}
		if value == nil {
			continue
		}
		if *value < 0 {
			return tuning, fmt.Errorf("limit for %s must not be negative", key)
		}
		tuning.Limits[capability] = *value
	}

	if raw.PassThreshold != nil {
		if *raw.PassThreshold < 0 || *raw.PassThreshold > 10 {
			return tuning, fmt.Errorf("pass_threshold must be between 0 and 10, got %d", *raw.PassThreshold)
		}
		tuning.PassThreshold = *raw.PassThreshold
	}
	return tuning, nil
}
