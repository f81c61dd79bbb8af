package mind

import (
	"sort"
	"time"
)

// Trait names one of the five baseline personality dimensions.
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// Traits lists every recognised trait in canonical order.
var Traits = []Trait{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

// IsTrait reports whether name is one of the five recognised traits.
func IsTrait(name string) bool {
	for _, t := range Traits {
		if string(t) == name {
			return true
		}
	}
	return false
}

// CoreAnchor is the immutable identity of an NPC. Nothing driven by generated
// text may ever change it.
type CoreAnchor struct {
	Backstory   string   `json:"backstory" yaml:"backstory"`
	Principles  []string `json:"principles" yaml:"principles"`
	TraumaFlags []string `json:"trauma_flags,omitempty" yaml:"trauma_flags,omitempty"` // set, informational
}

// Clone returns a deep copy. Trauma flags come back deduplicated and sorted.
func (a CoreAnchor) Clone() CoreAnchor {
	out := CoreAnchor{Backstory: a.Backstory}
	if a.Principles != nil {
		out.Principles = append([]string(nil), a.Principles...)
	}
	out.TraumaFlags = normalizeSet(a.TraumaFlags)
	return out
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// PersonalityBaseline holds the Big-Five traits, each 0..1.
type PersonalityBaseline struct {
	Openness          float64 `json:"openness" yaml:"openness"`
	Conscientiousness float64 `json:"conscientiousness" yaml:"conscientiousness"`
	Extraversion      float64 `json:"extraversion" yaml:"extraversion"`
	Agreeableness     float64 `json:"agreeableness" yaml:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism" yaml:"neuroticism"`
}

// Get returns the value of trait t (0 for unknown traits).
func (p PersonalityBaseline) Get(t Trait) float64 {
	switch t {
	case Openness:
		return p.Openness
	case Conscientiousness:
		return p.Conscientiousness
	case Extraversion:
		return p.Extraversion
	case Agreeableness:
		return p.Agreeableness
	case Neuroticism:
		return p.Neuroticism
	}
	return 0
}

// With returns a copy with trait t set to v.
func (p PersonalityBaseline) With(t Trait, v float64) PersonalityBaseline {
	switch t {
	case Openness:
		p.Openness = v
	case Conscientiousness:
		p.Conscientiousness = v
	case Extraversion:
		p.Extraversion = v
	case Agreeableness:
		p.Agreeableness = v
	case Neuroticism:
		p.Neuroticism = v
	}
	return p
}

// TraitModifiers maps traits to additive offsets in [-MaxModifier, MaxModifier].
type TraitModifiers map[Trait]float64

// Clone returns a copy of the map (nil stays nil).
func (m TraitModifiers) Clone() TraitModifiers {
	if m == nil {
		return nil
	}
	out := make(TraitModifiers, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MoodVector is the transient emotional state.
type MoodVector struct {
	Valence   float64 `json:"valence" yaml:"valence"`     // -1..1
	Arousal   float64 `json:"arousal" yaml:"arousal"`     // 0..1
	Dominance float64 `json:"dominance" yaml:"dominance"` // 0..1
}

// MemoryType is the tier a memory lives in.
type MemoryType string

const (
	ShortTerm MemoryType = "short_term"
	LongTerm  MemoryType = "long_term"
)

// Memory is one remembered event.
type Memory struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Salience  float64    `json:"salience"` // 0..1
	Type      MemoryType `json:"type"`
}

// RelationshipState is the NPC's model of one player.
type RelationshipState struct {
	Trust        float64   `json:"trust"`       // 0..1
	Familiarity  float64   `json:"familiarity"` // 0..1
	Sentiment    float64   `json:"sentiment"`   // -1..1
	Interactions int       `json:"interactions"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// CycleMetadata records when the slower cycles last ran. It is read by
// schedulers only; the cycles never refuse to run based on it.
type CycleMetadata struct {
	LastWeekly       time.Time `json:"last_weekly,omitempty"`
	LastPersonaShift time.Time `json:"last_persona_shift,omitempty"`
	// LastDecay is set by callers that run the periodic memory decay.
	LastDecay time.Time `json:"last_decay,omitempty"`
}

// DailyPulse is the outcome of the most recent daily reflection.
type DailyPulse struct {
	Mood      MoodVector `json:"mood"`
	Takeaway  string     `json:"takeaway"`
	Timestamp time.Time  `json:"timestamp"`
}

// KnowledgeBase maps category -> depth tier -> content.
type KnowledgeBase map[string]map[int]string

// MemoryPolicy bounds the memory tiers of every instance of a definition.
type MemoryPolicy struct {
	ShortTermCap      int     `json:"short_term_cap" yaml:"short_term_cap"`
	LongTermCap       int     `json:"long_term_cap" yaml:"long_term_cap"`
	SalienceThreshold float64 `json:"salience_threshold" yaml:"salience_threshold"`
}

const (
	DefaultShortTermCap      = 20
	DefaultLongTermCap       = 50
	DefaultSalienceThreshold = 0.7
)

// WithDefaults fills zero fields with package defaults.
func (p MemoryPolicy) WithDefaults() MemoryPolicy {
	if p.ShortTermCap <= 0 {
		p.ShortTermCap = DefaultShortTermCap
	}
	if p.LongTermCap <= 0 {
		p.LongTermCap = DefaultLongTermCap
	}
	if p.SalienceThreshold <= 0 {
		p.SalienceThreshold = DefaultSalienceThreshold
	}
	return p
}

// VoiceConfig is carried for the speech layer; the core never reads it.
type VoiceConfig struct {
	Provider string  `json:"provider,omitempty" yaml:"provider,omitempty"`
	VoiceID  string  `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	Speed    float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// ScheduleConfig is carried for the game layer; the core never reads it.
type ScheduleConfig struct {
	Timezone string            `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Routine  map[string]string `json:"routine,omitempty" yaml:"routine,omitempty"`
}

// NPCDefinition is the authored, immutable description of an NPC.
type NPCDefinition struct {
	ID              string              `json:"id" yaml:"id"`
	Name            string              `json:"name" yaml:"name"`
	Description     string              `json:"description,omitempty" yaml:"description,omitempty"`
	CoreAnchor      CoreAnchor          `json:"core_anchor" yaml:"core_anchor"`
	Personality     PersonalityBaseline `json:"personality" yaml:"personality"`
	Voice           VoiceConfig         `json:"voice,omitempty" yaml:"voice,omitempty"`
	Schedule        ScheduleConfig      `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Knowledge       KnowledgeBase       `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	KnowledgeAccess map[string]int      `json:"knowledge_access,omitempty" yaml:"knowledge_access,omitempty"`
	Memory          MemoryPolicy        `json:"memory" yaml:"memory"`
	CreatedAt       time.Time           `json:"created_at" yaml:"-"`
}

// Clone returns a deep copy of the definition.
func (d NPCDefinition) Clone() NPCDefinition {
	out := d
	out.CoreAnchor = d.CoreAnchor.Clone()
	if d.Schedule.Routine != nil {
		out.Schedule.Routine = make(map[string]string, len(d.Schedule.Routine))
		for k, v := range d.Schedule.Routine {
			out.Schedule.Routine[k] = v
		}
	}
	if d.Knowledge != nil {
		out.Knowledge = make(KnowledgeBase, len(d.Knowledge))
		for cat, tiers := range d.Knowledge {
			cp := make(map[int]string, len(tiers))
			for depth, text := range tiers {
				cp[depth] = text
			}
			out.Knowledge[cat] = cp
		}
	}
	if d.KnowledgeAccess != nil {
		out.KnowledgeAccess = make(map[string]int, len(d.KnowledgeAccess))
		for k, v := range d.KnowledgeAccess {
			out.KnowledgeAccess[k] = v
		}
	}
	return out
}

// NPCInstance is the mutable state of one NPC as experienced by one player.
type NPCInstance struct {
	NPCID         string                       `json:"npc_id"`
	PlayerID      string                       `json:"player_id"`
	Mood          MoodVector                   `json:"mood"`
	Modifiers     TraitModifiers               `json:"modifiers,omitempty"`
	ShortTerm     []Memory                     `json:"short_term"`
	LongTerm      []Memory                     `json:"long_term"`
	Relationships map[string]RelationshipState `json:"relationships,omitempty"`
	DailyPulse    *DailyPulse                  `json:"daily_pulse,omitempty"`
	Cycles        CycleMetadata                `json:"cycles"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// NewInstance creates the first state of def for playerID.
func NewInstance(def *NPCDefinition, playerID string, now time.Time) *NPCInstance {
	return &NPCInstance{
		NPCID:         def.ID,
		PlayerID:      playerID,
		Mood:          NeutralMood,
		Modifiers:     TraitModifiers{},
		ShortTerm:     []Memory{},
		LongTerm:      []Memory{},
		Relationships: map[string]RelationshipState{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy, so a cycle can work on it and commit or drop it.
func (in *NPCInstance) Clone() *NPCInstance {
	if in == nil {
		return nil
	}
	out := *in
	out.Modifiers = in.Modifiers.Clone()
	out.ShortTerm = cloneMemories(in.ShortTerm)
	out.LongTerm = cloneMemories(in.LongTerm)
	if in.Relationships != nil {
		out.Relationships = make(map[string]RelationshipState, len(in.Relationships))
		for k, v := range in.Relationships {
			out.Relationships[k] = v
		}
	}
	if in.DailyPulse != nil {
		dp := *in.DailyPulse
		out.DailyPulse = &dp
	}
	return &out
}

// Personality returns the baseline of def with this instance's modifiers applied.
func (in *NPCInstance) Personality(def *NPCDefinition) PersonalityBaseline {
	return ApplyModifiers(def.Personality, in.Modifiers)
}

func cloneMemories(in []Memory) []Memory {
	if in == nil {
		return nil
	}
	out := make([]Memory, len(in))
	copy(out, in)
	return out
}
