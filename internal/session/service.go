package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/storage"
)

// Conversational mood drift: a turn pulls mood toward the positive or negative
// reference by TurnMoodWeight scaled by its emotional intensity.
const TurnMoodWeight = 0.1

// Options tunes a Service.
type Options struct {
	// DriftAlertThreshold is the absolute modifier above which a persona
	// shift is reported as a warning. 0 means 0.25.
	DriftAlertThreshold float64
	// RetainCount is the weekly whisper default. 0 means mind.DefaultRetainCount.
	RetainCount int
	// Budget limits generative cycles. Nil allows everything.
	Budget *Budget
}

// Service runs the mind cycles and conversational turns against stored
// instances. Every call holds the instance lock for its whole duration.
type Service struct {
	reg    *Registry
	orch   *mind.Orchestrator
	budget *Budget
	log    *zap.Logger
	now    func() time.Time

	driftThreshold float64
	retain         int
}

// NewService wires a registry and an orchestrator.
func NewService(reg *Registry, orch *mind.Orchestrator, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DriftAlertThreshold <= 0 {
		opts.DriftAlertThreshold = 0.25
	}
	return &Service{
		reg:            reg,
		orch:           orch,
		budget:         opts.Budget,
		log:            log.Named("service"),
		now:            time.Now,
		driftThreshold: opts.DriftAlertThreshold,
		retain:         opts.RetainCount,
	}
}

// Registry returns the registry the service runs on.
func (s *Service) Registry() *Registry { return s.reg }

// DailyPulse runs the daily reflection for the pair. The returned error covers
// lookup, budget and storage failures; a failed cycle is reported in
// DailyPulseResult.Err and leaves the stored instance untouched.
func (s *Service) DailyPulse(ctx context.Context, npcID, playerID string, day mind.DayContext) (mind.DailyPulseResult, error) {
	var res mind.DailyPulseResult
	err := s.reg.Do(ctx, npcID, playerID, func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		release, ok := s.budget.Reserve(budgetKey(npcID, playerID, CycleDailyPulse), s.now())
		if !ok {
			return nil, fmt.Errorf("daily pulse %s: %w", storage.InstanceKey(npcID, playerID), ErrBudgetExhausted)
		}
		res = s.orch.RunDailyPulse(ctx, def, inst, day)
		if !res.Success {
			release()
			return nil, nil
		}
		return res.Instance, nil
	})
	return res, err
}

// WeeklyWhisper curates the memories of the pair. retainCount <= 0 uses the
// service default.
func (s *Service) WeeklyWhisper(ctx context.Context, npcID, playerID string, retainCount int) (mind.WeeklyWhisperResult, error) {
	if retainCount <= 0 {
		retainCount = s.retain
	}
	var res mind.WeeklyWhisperResult
	err := s.reg.Do(ctx, npcID, playerID, func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		res = s.orch.RunWeeklyWhisper(ctx, def, inst, retainCount)
		if !res.Success {
			return nil, nil
		}
		return res.Instance, nil
	})
	return res, err
}

// PersonaShift evolves the personality modifiers of the pair and warns when a
// trait has drifted past the alert threshold.
func (s *Service) PersonaShift(ctx context.Context, npcID, playerID string) (mind.PersonaShiftResult, error) {
	var res mind.PersonaShiftResult
	err := s.reg.Do(ctx, npcID, playerID, func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		release, ok := s.budget.Reserve(budgetKey(npcID, playerID, CyclePersonaShift), s.now())
		if !ok {
			return nil, fmt.Errorf("persona shift %s: %w", storage.InstanceKey(npcID, playerID), ErrBudgetExhausted)
		}
		res = s.orch.RunPersonaShift(ctx, def, inst)
		if !res.Success {
			release()
			return nil, nil
		}
		if mind.DriftMagnitude(res.Modifiers, s.driftThreshold) {
			drifted := mind.DriftedTraits(res.Modifiers, s.driftThreshold)
			names := make([]string, len(drifted))
			for i, t := range drifted {
				names[i] = string(t)
			}
			s.log.Warn("personality drift",
				zap.String("npc", npcID),
				zap.String("player", playerID),
				zap.String("fingerprint", mind.AnchorFingerprint(def.CoreAnchor)),
				zap.Strings("traits", names),
				zap.Float64("threshold", s.driftThreshold))
		}
		return res.Instance, nil
	})
	return res, err
}

// Turn is one conversational exchange seen by the NPC.
type Turn struct {
	Content string
	// Tone is positive, negative, aggressive or neutral. Empty means it is
	// classified from Content.
	Tone string
	// Salience overrides the derived salience factors when non-nil.
	Salience *mind.SalienceFactors
	// At defaults to now.
	At time.Time
}

// TurnResult reports what a turn changed.
type TurnResult struct {
	Memory       mind.Memory
	Tone         mind.Tone
	Evicted      []mind.Memory
	Mood         mind.MoodVector
	Relationship mind.RelationshipState
}

// RecordTurn stores the turn as a short-term memory, prunes short-term memory
// to its cap, nudges the mood by the turn's tone and updates the relationship
// with the player.
func (s *Service) RecordTurn(ctx context.Context, npcID, playerID string, turn Turn) (TurnResult, error) {
	if strings.TrimSpace(turn.Content) == "" {
		return TurnResult{}, &mind.ValidationError{Field: "turn.content", Value: turn.Content, Reason: "must not be empty"}
	}
	tone := mind.ClassifyTone(turn.Content)
	if turn.Tone != "" {
		tone = mind.ParseTone(turn.Tone)
	}
	factors := turnSalience(tone)
	if turn.Salience != nil {
		factors = *turn.Salience
	}
	if err := factors.Validate(); err != nil {
		return TurnResult{}, err
	}
	at := turn.At
	if at.IsZero() {
		at = s.now().UTC()
	}

	var res TurnResult
	err := s.reg.Do(ctx, npcID, playerID, func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		mem, err := mind.NewMemory(turn.Content, mind.Score(factors, &inst.Mood), at)
		if err != nil {
			return nil, err
		}
		policy := def.Memory.WithDefaults()
		stm, evicted := mind.Prune(append(inst.ShortTerm, mem), policy.ShortTermCap)
		inst.ShortTerm = stm

		w := TurnMoodWeight * factors.EmotionalIntensity
		switch tone {
		case mind.TonePositive:
			inst.Mood = mind.Blend(inst.Mood, mind.PositiveMood, w)
		case mind.ToneNegative, mind.ToneAggressive:
			inst.Mood = mind.Blend(inst.Mood, mind.NegativeMood, w)
		}

		if inst.Relationships == nil {
			inst.Relationships = map[string]mind.RelationshipState{}
		}
		rel := mind.ApplyTurn(inst.Relationship(playerID), tone, 0, at)
		inst.Relationships[playerID] = rel
		inst.UpdatedAt = at

		res = TurnResult{Memory: mem, Tone: tone, Evicted: evicted, Mood: inst.Mood, Relationship: rel}
		s.log.Debug("turn recorded",
			zap.String("npc", npcID),
			zap.String("player", playerID),
			zap.String("tone", tone.String()),
			zap.Float64("salience", mem.Salience),
			zap.Int("evicted", len(evicted)))
		return inst, nil
	})
	return res, err
}

// turnSalience derives salience factors from the tone of a turn the player
// addressed to the NPC.
func turnSalience(tone mind.Tone) mind.SalienceFactors {
	f := mind.SalienceFactors{PlayerInvolvement: 1, Novelty: 0.5}
	switch tone {
	case mind.TonePositive:
		f.EmotionalIntensity = 0.5
	case mind.ToneNegative:
		f.EmotionalIntensity = 0.6
	case mind.ToneAggressive:
		f.EmotionalIntensity = 0.9
	default:
		f.EmotionalIntensity = 0.2
	}
	return f
}

// Snapshot returns the anchor-checked definition and a copy of the current
// instance of the pair, creating the instance on first contact.
func (s *Service) Snapshot(ctx context.Context, npcID, playerID string) (mind.NPCDefinition, *mind.NPCInstance, error) {
	var (
		def  mind.NPCDefinition
		inst *mind.NPCInstance
	)
	err := s.reg.Do(ctx, npcID, playerID, func(d *mind.NPCDefinition, in *mind.NPCInstance) (*mind.NPCInstance, error) {
		def, inst = d.Clone(), in
		return nil, nil
	})
	return def, inst, err
}

// Context assembles the prompt context the NPC speaks from toward playerID.
func (s *Service) Context(ctx context.Context, npcID, playerID string) (string, error) {
	def, inst, err := s.Snapshot(ctx, npcID, playerID)
	if err != nil {
		return "", err
	}
	return mind.BuildContext(&def, inst, playerID, mind.DefaultContextBudget()), nil
}

// History lists the stored versions of the pair's instance.
func (s *Service) History(ctx context.Context, npcID, playerID string) ([]storage.Version, error) {
	return s.reg.Repository().InstanceHistory(ctx, npcID, playerID)
}

// Rollback restores a stored version of the pair's instance as the newest.
func (s *Service) Rollback(ctx context.Context, npcID, playerID string, version int) (*mind.NPCInstance, storage.Version, error) {
	inst, v, err := s.reg.Rollback(ctx, npcID, playerID, version)
	if err != nil {
		return nil, v, err
	}
	s.log.Info("rolled back", zap.String("npc", npcID), zap.String("player", playerID),
		zap.Int("to", version), zap.Int("version", v.Number))
	return inst, v, nil
}

// DecayMemories fades the short-term memories of the pair by one decay step
// and returns the decayed set. Long-term memories keep their salience.
func (s *Service) DecayMemories(ctx context.Context, npcID, playerID string) ([]mind.Memory, error) {
	var out []mind.Memory
	err := s.reg.Do(ctx, npcID, playerID, func(def *mind.NPCDefinition, inst *mind.NPCInstance) (*mind.NPCInstance, error) {
		now := s.now().UTC()
		inst.ShortTerm = mind.DecayAll(inst.ShortTerm)
		inst.Cycles.LastDecay = now
		inst.UpdatedAt = now
		out = append([]mind.Memory(nil), inst.ShortTerm...)
		return inst, nil
	})
	return out, err
}

func budgetKey(npcID, playerID string, c Cycle) string {
	return storage.InstanceKey(npcID, playerID) + ":" + string(c)
}
