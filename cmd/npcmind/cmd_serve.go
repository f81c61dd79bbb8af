package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/session"
)

// serveCmd runs the cycle scheduler in the foreground
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run due cycles for every stored instance until interrupted",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(true)
	if err != nil {
		return err
	}
	sched := session.NewScheduler(svc, session.SchedulerConfig{
		Cadence: session.Cadence{
			DailyPulse:    cfg.DailyPulseEvery,
			MemoryDecay:   cfg.MemoryDecayEvery,
			WeeklyWhisper: cfg.WeeklyWhisperEvery,
			PersonaShift:  cfg.PersonaShiftEvery,
		},
		Tick:          cfg.SchedulerTick,
		SessionTTL:    cfg.SessionTTL,
		MaxConcurrent: cfg.MaxConcurrentCycles,
		RetryAfter:    cfg.CycleRetryAfter,
	}, logger)

	err = sched.Run(ctx)
	logger.Info("shutting down")

	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if n := svc.Registry().EndAll(endCtx); n > 0 {
		logger.Info("sessions ended", zap.Int("count", n))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
