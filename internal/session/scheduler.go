package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keshon/npc-mind/internal/mind"
)

// Cycle names a mind cycle.
type Cycle string

const (
	CycleDailyPulse    Cycle = "daily_pulse"
	CycleMemoryDecay   Cycle = "memory_decay"
	CycleWeeklyWhisper Cycle = "weekly_whisper"
	CyclePersonaShift  Cycle = "persona_shift"
)

// Cadence is how often each cycle runs per instance.
type Cadence struct {
	DailyPulse    time.Duration
	MemoryDecay   time.Duration
	WeeklyWhisper time.Duration
	PersonaShift  time.Duration
}

// DefaultCadence pulses and decays daily, whispers weekly and shifts every
// thirty days.
func DefaultCadence() Cadence {
	return Cadence{
		DailyPulse:    24 * time.Hour,
		MemoryDecay:   24 * time.Hour,
		WeeklyWhisper: 7 * 24 * time.Hour,
		PersonaShift:  30 * 24 * time.Hour,
	}
}

// Due returns the cycles inst is due for at now, in run order. A cycle that
// never ran is measured from the instance's creation. Zero cadences never fire.
func Due(inst *mind.NPCInstance, c Cadence, now time.Time) []Cycle {
	if inst == nil {
		return nil
	}
	since := func(last time.Time) time.Duration {
		if last.IsZero() {
			last = inst.CreatedAt
		}
		return now.Sub(last)
	}
	var lastPulse time.Time
	if inst.DailyPulse != nil {
		lastPulse = inst.DailyPulse.Timestamp
	}

	var due []Cycle
	if c.DailyPulse > 0 && since(lastPulse) >= c.DailyPulse {
		due = append(due, CycleDailyPulse)
	}
	if c.MemoryDecay > 0 && since(inst.Cycles.LastDecay) >= c.MemoryDecay {
		due = append(due, CycleMemoryDecay)
	}
	if c.WeeklyWhisper > 0 && since(inst.Cycles.LastWeekly) >= c.WeeklyWhisper {
		due = append(due, CycleWeeklyWhisper)
	}
	if c.PersonaShift > 0 && since(inst.Cycles.LastPersonaShift) >= c.PersonaShift {
		due = append(due, CyclePersonaShift)
	}
	return due
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Cadence       Cadence
	Tick          time.Duration // default 1m
	SessionTTL    time.Duration // default 30m
	MaxConcurrent int           // default 4
	// RetryAfter holds a failed cycle back before the next attempt. Default 15m.
	RetryAfter time.Duration
}

// Scheduler periodically runs due cycles for every stored instance. It runs
// in the caller's goroutine; cancel ctx to stop it.
type Scheduler struct {
	svc *Service
	cfg SchedulerConfig
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	failed map[string]time.Time // budget key -> last failed attempt
}

// NewScheduler returns a scheduler driving svc.
func NewScheduler(svc *Service, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 15 * time.Minute
	}
	return &Scheduler{
		svc:    svc,
		cfg:    cfg,
		log:    log.Named("scheduler"),
		now:    time.Now,
		failed: make(map[string]time.Time),
	}
}

// Run ticks until ctx is done. It always returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("tick", s.cfg.Tick), zap.Int("max_concurrent", s.cfg.MaxConcurrent))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

// RunOnce runs every due cycle once and sweeps idle sessions. Instances run
// concurrently up to MaxConcurrent; the cycles of one instance run in order.
// Cycle failures are logged and do not stop other instances; a failed cycle is
// not retried before RetryAfter has passed. It returns the number of cycles
// that succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	insts, err := s.svc.Registry().Repository().ListInstances(ctx, "")
	if err != nil {
		return 0, err
	}

	var ran atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, inst := range insts {
		due := Due(inst, s.cfg.Cadence, now)
		if len(due) == 0 {
			continue
		}
		npcID, playerID := inst.NPCID, inst.PlayerID
		g.Go(func() error {
			for _, c := range due {
				if err := gctx.Err(); err != nil {
					return err
				}
				key := budgetKey(npcID, playerID, c)
				if s.holdingBack(key, now) {
					continue
				}
				ok, err := s.runCycle(gctx, c, npcID, playerID)
				if err != nil {
					s.markFailed(key, now)
					s.log.Warn("cycle failed", zap.String("cycle", string(c)),
						zap.String("npc", npcID), zap.String("player", playerID),
						zap.Bool("collaborator", mind.IsCollaboratorFailure(err)), zap.Error(err))
					continue
				}
				s.clearFailed(key)
				if ok {
					ran.Add(1)
				}
			}
			return nil
		})
	}
	err = g.Wait()

	if ran.Load() > 0 {
		if ferr := s.svc.Registry().Repository().Flush(); ferr != nil {
			s.log.Warn("flush failed", zap.Error(ferr))
		}
	}
	if n := s.svc.Registry().Sweep(ctx, s.now(), s.cfg.SessionTTL); n > 0 {
		s.log.Info("idle sessions ended", zap.Int("count", n))
	}
	return int(ran.Load()), err
}

func (s *Scheduler) runCycle(ctx context.Context, c Cycle, npcID, playerID string) (bool, error) {
	switch c {
	case CycleDailyPulse:
		res, err := s.svc.DailyPulse(ctx, npcID, playerID, mind.DayContext{})
		if err != nil {
			return false, err
		}
		return res.Success, res.Err
	case CycleMemoryDecay:
		_, err := s.svc.DecayMemories(ctx, npcID, playerID)
		return err == nil, err
	case CycleWeeklyWhisper:
		res, err := s.svc.WeeklyWhisper(ctx, npcID, playerID, 0)
		if err != nil {
			return false, err
		}
		return res.Success, res.Err
	case CyclePersonaShift:
		res, err := s.svc.PersonaShift(ctx, npcID, playerID)
		if err != nil {
			return false, err
		}
		return res.Success, res.Err
	}
	return false, nil
}

func (s *Scheduler) holdingBack(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.failed[key]
	return ok && now.Sub(at) < s.cfg.RetryAfter
}

func (s *Scheduler) markFailed(key string, now time.Time) {
	s.mu.Lock()
	s.failed[key] = now
	s.mu.Unlock()
}

func (s *Scheduler) clearFailed(key string) {
	s.mu.Lock()
	delete(s.failed, key)
	s.mu.Unlock()
}
