package mind

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Salience weights.
const (
	WeightEmotionalIntensity = 0.35
	WeightPlayerInvolvement  = 0.30
	WeightNovelty            = 0.20
	WeightActionTaken        = 0.15
)

// Decay defaults.
const (
	DefaultDecayFactor = 0.95
	DefaultDecayFloor  = 0.1
)

// SalienceFactors are the inputs to Score, each 0..1.
type SalienceFactors struct {
	EmotionalIntensity float64 `json:"emotional_intensity"`
	PlayerInvolvement  float64 `json:"player_involvement"`
	Novelty            float64 `json:"novelty"`
	ActionTaken        float64 `json:"action_taken"`
}

// NewSalienceFactors validates every component is within [0,1].
func NewSalienceFactors(emotional, involvement, novelty, action float64) (SalienceFactors, error) {
	f := SalienceFactors{
		EmotionalIntensity: emotional,
		PlayerInvolvement:  involvement,
		Novelty:            novelty,
		ActionTaken:        action,
	}
	return f, f.Validate()
}

// Validate rejects components outside [0,1].
func (f SalienceFactors) Validate() error {
	return errors.Join(
		checkRange("salience.emotional_intensity", f.EmotionalIntensity, 0, 1),
		checkRange("salience.player_involvement", f.PlayerInvolvement, 0, 1),
		checkRange("salience.novelty", f.Novelty, 0, 1),
		checkRange("salience.action_taken", f.ActionTaken, 0, 1),
	)
}

// Score computes salience in [0,1]. When mood is non-nil the weighted sum is
// amplified by (1 + 0.1*arousal + 0.05*|valence|) before clamping.
func Score(f SalienceFactors, mood *MoodVector) float64 {
	s := WeightEmotionalIntensity*f.EmotionalIntensity +
		WeightPlayerInvolvement*f.PlayerInvolvement +
		WeightNovelty*f.Novelty +
		WeightActionTaken*f.ActionTaken
	if mood != nil {
		s *= 1 + 0.1*mood.Arousal + 0.05*math.Abs(mood.Valence)
	}
	return clamp01(s)
}

// NewMemory builds a short-term memory with a fresh id.
func NewMemory(content string, salience float64, at time.Time) (Memory, error) {
	if strings.TrimSpace(content) == "" {
		return Memory{}, &ValidationError{Field: "memory.content", Value: content, Reason: "must not be empty"}
	}
	if err := checkRange("memory.salience", salience, 0, 1); err != nil {
		return Memory{}, err
	}
	return Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: at,
		Salience:  salience,
		Type:      ShortTerm,
	}, nil
}

// SortBy selects the ordering used by Retrieve.
type SortBy int

const (
	BySalience SortBy = iota
	ByRecency
)

// RetrieveOptions filters and orders a Retrieve call. Zero values disable a filter.
type RetrieveOptions struct {
	Type        MemoryType
	MinSalience float64
	MaxCount    int
	SortBy      SortBy
}

// Retrieve filters memories by type and minimum salience, orders them
// (salience descending with insertion order on ties, or newest first) and
// truncates to MaxCount. The input slice is not modified.
func Retrieve(memories []Memory, opts RetrieveOptions) []Memory {
	out := make([]Memory, 0, len(memories))
	for _, m := range memories {
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		if m.Salience < opts.MinSalience {
			continue
		}
		out = append(out, m)
	}
	switch opts.SortBy {
	case ByRecency:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	default:
		sortBySalience(out)
	}
	if opts.MaxCount > 0 && len(out) > opts.MaxCount {
		out = out[:opts.MaxCount]
	}
	return out
}

// Prune keeps the max highest-salience memories. Ties at the cut are broken
// by original order, so repeated calls on the same input agree. When
// len(memories) <= max nothing is removed and kept preserves the input order.
func Prune(memories []Memory, max int) (kept, removed []Memory) {
	if max < 0 {
		max = 0
	}
	if len(memories) <= max {
		return cloneMemories(memories), nil
	}
	sorted := cloneMemories(memories)
	sortBySalience(sorted)
	return sorted[:max], sorted[max:]
}

// Promote returns a long-term copy of m.
func Promote(m Memory) Memory {
	m.Type = LongTerm
	return m
}

// Decay returns m with salience reduced by factor, never below floor.
func Decay(m Memory, factor, floor float64) Memory {
	m.Salience = clamp01(math.Max(floor, m.Salience*factor))
	return m
}

// DecayAll applies Decay with the default factor and floor to every memory.
func DecayAll(memories []Memory) []Memory {
	out := make([]Memory, len(memories))
	for i, m := range memories {
		out[i] = Decay(m, DefaultDecayFactor, DefaultDecayFloor)
	}
	return out
}

func sortBySalience(ms []Memory) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Salience > ms[j].Salience })
}

// FormatMemories renders memories as a bullet list under title. Empty input
// yields an empty string.
func FormatMemories(title string, memories []Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("--- ")
	b.WriteString(title)
	b.WriteString(" ---\n")
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
