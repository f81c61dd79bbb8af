package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.StorageDriver)
	assert.Equal(t, "data/npcmind.json", cfg.StoragePath)
	assert.Equal(t, 50, cfg.StorageHistoryLimit)
	assert.Equal(t, "openai", cfg.AIProvider)
	assert.Equal(t, 24*time.Hour, cfg.DailyPulseEvery)
	assert.Equal(t, 168*time.Hour, cfg.WeeklyWhisperEvery)
	assert.Equal(t, 720*time.Hour, cfg.PersonaShiftEvery)
	assert.Equal(t, 24*time.Hour, cfg.MemoryDecayEvery)
	assert.Equal(t, 15*time.Minute, cfg.CycleRetryAfter)
	assert.Equal(t, 120, cfg.GenerationsPerHour)
	assert.Equal(t, 3, cfg.WeeklyRetainCount)
	assert.Equal(t, 0.25, cfg.DriftAlertThreshold)
}

func TestLoadNormalizes(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", " SQLite ")
	t.Setenv("AI_PROVIDER", "G4F")
	t.Setenv("SESSION_TTL", "5m")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, "g4f", cfg.AIProvider)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
}

func TestLoadEnvFile(t *testing.T) {
	// Registers the restore; godotenv only sets variables that are absent.
	t.Setenv("MAX_CONCURRENT_CYCLES", "")
	require.NoError(t, os.Unsetenv("MAX_CONCURRENT_CYCLES"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAX_CONCURRENT_CYCLES=9\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxConcurrentCycles)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"driver", "STORAGE_DRIVER", "postgres", "STORAGE_DRIVER"},
		{"provider", "AI_PROVIDER", "llama", "AI_PROVIDER"},
		{"zero interval", "DAILY_PULSE_EVERY", "0s", "DAILY_PULSE_EVERY"},
		{"concurrency", "MAX_CONCURRENT_CYCLES", "0", "MAX_CONCURRENT_CYCLES"},
		{"history", "STORAGE_HISTORY_LIMIT", "-1", "STORAGE_HISTORY_LIMIT"},
		{"generations", "GENERATIONS_PER_HOUR", "-5", "GENERATIONS_PER_HOUR"},
		{"drift", "DRIFT_ALERT_THRESHOLD", "0.5", "DRIFT_ALERT_THRESHOLD"},
		{"unparsable", "SCHEDULER_TICK", "soon", "parse environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(missingEnvFile(t))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadDoesNotRequireAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load(missingEnvFile(t))
	assert.NoError(t, err)
}
