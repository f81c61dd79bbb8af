// Package config loads runtime configuration from the environment, with an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	StorageDriver       string        `env:"STORAGE_DRIVER" envDefault:"file"`
	StoragePath         string        `env:"STORAGE_PATH" envDefault:"data/npcmind.json"`
	StorageHistoryLimit int           `env:"STORAGE_HISTORY_LIMIT" envDefault:"50"`
	AIProvider          string        `env:"AI_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`
	OpenAIModel         string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL       string        `env:"OPENAI_BASE_URL"`
	G4FEngine           string        `env:"G4F_ENGINE" envDefault:"g4f:gpt-oss-120b"`
	AITimeout           time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	AIRetryAttempts     int           `env:"AI_RETRY_ATTEMPTS" envDefault:"3"`
	AIRateLimit         float64       `env:"AI_RATE_LIMIT" envDefault:"2"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	DailyPulseEvery     time.Duration `env:"DAILY_PULSE_EVERY" envDefault:"24h"`
	WeeklyWhisperEvery  time.Duration `env:"WEEKLY_WHISPER_EVERY" envDefault:"168h"`
	PersonaShiftEvery   time.Duration `env:"PERSONA_SHIFT_EVERY" envDefault:"720h"`
	MemoryDecayEvery    time.Duration `env:"MEMORY_DECAY_EVERY" envDefault:"24h"`
	CycleRetryAfter     time.Duration `env:"CYCLE_RETRY_AFTER" envDefault:"15m"`
	SchedulerTick       time.Duration `env:"SCHEDULER_TICK" envDefault:"1m"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxConcurrentCycles int           `env:"MAX_CONCURRENT_CYCLES" envDefault:"4"`
	GenerationsPerHour  int           `env:"GENERATIONS_PER_HOUR" envDefault:"120"`
	WeeklyRetainCount   int           `env:"WEEKLY_RETAIN_COUNT" envDefault:"3"`
	DriftAlertThreshold float64       `env:"DRIFT_ALERT_THRESHOLD" envDefault:"0.25"`
}

// Load reads envFile (when non-empty and present) into the process
// environment and parses Config. A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown drivers and providers and non-positive intervals.
// Provider credentials are checked when the provider is built, so commands
// that never generate text run without them.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER: unsupported %q (file, sqlite)", c.StorageDriver))
	}
	if strings.TrimSpace(c.StoragePath) == "" {
		errs = append(errs, fmt.Errorf("STORAGE_PATH: must not be empty"))
	}
	switch c.AIProvider {
	case "openai", "pollinations", "g4f":
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER: unsupported %q (openai, pollinations, g4f)", c.AIProvider))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"AI_TIMEOUT", c.AITimeout},
		{"DAILY_PULSE_EVERY", c.DailyPulseEvery},
		{"WEEKLY_WHISPER_EVERY", c.WeeklyWhisperEvery},
		{"PERSONA_SHIFT_EVERY", c.PersonaShiftEvery},
		{"MEMORY_DECAY_EVERY", c.MemoryDecayEvery},
		{"CYCLE_RETRY_AFTER", c.CycleRetryAfter},
		{"SCHEDULER_TICK", c.SchedulerTick},
		{"SESSION_TTL", c.SessionTTL},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", d.name, d.val))
		}
	}
	if c.MaxConcurrentCycles < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CYCLES: must be at least 1"))
	}
	if c.AIRetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("AI_RETRY_ATTEMPTS: must be at least 1"))
	}
	if c.StorageHistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("STORAGE_HISTORY_LIMIT: must not be negative"))
	}
	if c.GenerationsPerHour < 0 {
		errs = append(errs, fmt.Errorf("GENERATIONS_PER_HOUR: must not be negative"))
	}
	if c.AIRateLimit < 0 {
		errs = append(errs, fmt.Errorf("AI_RATE_LIMIT: must not be negative"))
	}
	if c.DriftAlertThreshold <= 0 || c.DriftAlertThreshold > 0.3 {
		errs = append(errs, fmt.Errorf("DRIFT_ALERT_THRESHOLD: must be within (0, 0.3]"))
	}
	return errors.Join(errs...)
}
