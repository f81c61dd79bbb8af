// Command npcmind manages NPC definitions and their per-player minds.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/ai"
	"github.com/keshon/npc-mind/internal/config"
	"github.com/keshon/npc-mind/internal/logging"
	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/session"
	"github.com/keshon/npc-mind/internal/storage"
)

var (
	// Global flags
	envFile string
	verbose bool
	timeout time.Duration

	// Set up by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
	repo   *storage.Repository
)

var rootCmd = &cobra.Command{
	Use:   "npcmind",
	Short: "Psychological state core for non-player characters",
	Long: `npcmind keeps one evolving mind per NPC and player: mood, personality
drift, short- and long-term memory and relationships, curated by three cycles.

  Daily Pulse     one-sentence takeaway of the day, mood settles
  Weekly Whisper  memories curated, the salient ones become long-term
  Persona Shift   small personality drift grounded in memories

Definitions are authored in YAML and their core anchor never changes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogFormat)
		if err != nil {
			return err
		}
		backend, err := storage.Open(storage.Options{
			Driver:       cfg.StorageDriver,
			Path:         cfg.StoragePath,
			HistoryLimit: cfg.StorageHistoryLimit,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		repo = storage.NewRepository(backend, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if repo != nil {
			err = repo.Close()
			repo = nil
		}
		if logger != nil {
			_ = logger.Sync()
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before parsing configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for a single command")

	rootCmd.AddCommand(defineCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(whisperCmd)
	rootCmd.AddCommand(shiftCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newService builds the session service. The text-generation provider is only
// built when withGenerator is set, so commands that never generate run
// without provider credentials.
func newService(withGenerator bool) (*session.Service, error) {
	var gen mind.Generator
	if withGenerator {
		p, err := ai.New(ai.Options{
			Kind:          ai.Kind(cfg.AIProvider),
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.OpenAIModel,
			BaseURL:       cfg.OpenAIBaseURL,
			G4FEngine:     cfg.G4FEngine,
			Timeout:       cfg.AITimeout,
			RetryAttempts: cfg.AIRetryAttempts,
			RateLimit:     cfg.AIRateLimit,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build provider: %w", err)
		}
		gen = p
	}
	orch := mind.NewOrchestrator(gen, logger.Named("mind"))
	reg := session.NewRegistry(repo, logger)
	return session.NewService(reg, orch, logger, session.Options{
		DriftAlertThreshold: cfg.DriftAlertThreshold,
		RetainCount:         cfg.WeeklyRetainCount,
		Budget:              session.NewBudget(0, cfg.GenerationsPerHour, 0),
	}), nil
}
