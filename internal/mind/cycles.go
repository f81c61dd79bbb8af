package mind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Generator is the text-generation collaborator. Implementations own
// timeouts and must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Cycle tuning.
const (
	DailyRecentCount      = 5
	DailyNeutralWeight    = 0.20
	DailyToneWeight       = 0.15
	DefaultRetainCount    = 3
	ShiftLongTermCount    = 20
	ShiftShortTermCount   = 10
	MaxProposalDelta      = 0.1
	maxTakeawayCharacters = 280
)

// DayTone is the overall feel of a day as reported by the caller.
type DayTone string

const (
	DayToneUnset    DayTone = ""
	DayToneNeutral  DayTone = "neutral"
	DayTonePositive DayTone = "positive"
	DayToneNegative DayTone = "negative"
)

// ParseDayTone accepts positive/negative/neutral (case-insensitive); anything
// else is unset.
func ParseDayTone(s string) DayTone {
	switch DayTone(strings.ToLower(strings.TrimSpace(s))) {
	case DayTonePositive:
		return DayTonePositive
	case DayToneNegative:
		return DayToneNegative
	case DayToneNeutral:
		return DayToneNeutral
	default:
		return DayToneUnset
	}
}

// DayContext is optional input to the daily pulse.
type DayContext struct {
	Events       []string
	DominantMood string
	Overall      DayTone
}

// Orchestrator runs the three cycles against an instance. It holds no
// per-instance state; callers serialize cycles of the same instance.
type Orchestrator struct {
	gen Generator
	log *zap.Logger
	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator returns an orchestrator using gen for text generation.
func NewOrchestrator(gen Generator, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{gen: gen, log: log.Named("cycles"), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DailyPulseResult is the outcome of RunDailyPulse. On failure Instance is an
// untouched copy of the input.
type DailyPulseResult struct {
	Success  bool
	Err      error
	Instance *NPCInstance
	Takeaway string
	Mood     MoodVector
}

// RunDailyPulse asks for a one-sentence takeaway of the day and settles the
// mood: 20% toward neutral, then 15% toward the positive or negative reference
// when the day had such a tone. Nothing is applied unless generation succeeds.
func (o *Orchestrator) RunDailyPulse(ctx context.Context, def *NPCDefinition, inst *NPCInstance, day DayContext) DailyPulseResult {
	fail := func(err error) DailyPulseResult {
		o.log.Warn("daily pulse failed", append(instanceFields(def, inst), zap.Error(err))...)
		return DailyPulseResult{Err: fmt.Errorf("daily pulse: %w", err), Instance: inst.Clone()}
	}
	if err := checkCycleInput(def, inst); err != nil {
		return fail(err)
	}
	if o.gen == nil {
		return fail(ErrNoGenerator)
	}

	recent := Retrieve(inst.ShortTerm, RetrieveOptions{SortBy: ByRecency, MaxCount: DailyRecentCount})
	system := DailyPulsePrompt + "\n\n" + identityBlock(def)
	user := dailyPulseUserPrompt(def, inst, recent, day)

	text, err := o.generate(ctx, "daily_pulse", system, user, def, inst)
	if err != nil {
		return fail(err)
	}
	takeaway := firstSentence(text)
	if takeaway == "" {
		return fail(ErrEmptyResponse)
	}

	mood := Blend(inst.Mood, NeutralMood, DailyNeutralWeight)
	switch day.Overall {
	case DayTonePositive:
		mood = Blend(mood, PositiveMood, DailyToneWeight)
	case DayToneNegative:
		mood = Blend(mood, NegativeMood, DailyToneWeight)
	}

	now := o.now()
	out := inst.Clone()
	out.Mood = mood
	out.DailyPulse = &DailyPulse{Mood: mood, Takeaway: takeaway, Timestamp: now}
	out.UpdatedAt = now

	o.log.Info("daily pulse", append(instanceFields(def, inst),
		zap.String("mood", Categorize(mood).String()),
		zap.Float64("mood_score", CompositeScore(mood)),
		zap.String("takeaway", truncateForLog(takeaway, 120)),
	)...)
	return DailyPulseResult{Success: true, Instance: out, Takeaway: takeaway, Mood: mood}
}

// WeeklyWhisperResult is the outcome of RunWeeklyWhisper.
type WeeklyWhisperResult struct {
	Success   bool
	Err       error
	Instance  *NPCInstance
	Retained  []Memory // new short-term set
	Promoted  []Memory // copies added to long-term
	Discarded []Memory // dropped from short-term
	Evicted   []Memory // dropped from long-term by the cap
}

// RunWeeklyWhisper curates memory: the retainCount most salient short-term
// memories are kept (retainCount <= 0 means DefaultRetainCount), retained
// memories at or above the definition's salience threshold are promoted into
// long-term memory, long-term is pruned to its cap and short-term is replaced
// by the retained set. The work is done on a copy and committed only at the
// end; the input instance is never modified.
func (o *Orchestrator) RunWeeklyWhisper(ctx context.Context, def *NPCDefinition, inst *NPCInstance, retainCount int) WeeklyWhisperResult {
	fail := func(err error) WeeklyWhisperResult {
		o.log.Warn("weekly whisper failed", append(instanceFields(def, inst), zap.Error(err))...)
		return WeeklyWhisperResult{Err: fmt.Errorf("weekly whisper: %w", err), Instance: inst.Clone()}
	}
	if err := checkCycleInput(def, inst); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if retainCount <= 0 {
		retainCount = DefaultRetainCount
	}
	policy := def.Memory.WithDefaults()

	work := inst.Clone()
	sorted := cloneMemories(work.ShortTerm)
	sortBySalience(sorted)
	retained := sorted
	var discarded []Memory
	if len(sorted) > retainCount {
		retained, discarded = sorted[:retainCount], sorted[retainCount:]
	}

	known := make(map[string]struct{}, len(work.LongTerm))
	for _, m := range work.LongTerm {
		known[m.ID] = struct{}{}
	}
	var promoted []Memory
	longTerm := cloneMemories(work.LongTerm)
	for _, m := range retained {
		if m.Salience < policy.SalienceThreshold {
			continue
		}
		if _, ok := known[m.ID]; ok {
			continue
		}
		p := Promote(m)
		promoted = append(promoted, p)
		longTerm = append(longTerm, p)
	}
	longTerm, evicted := Prune(longTerm, policy.LongTermCap)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	now := o.now()
	work.ShortTerm = retained
	if work.ShortTerm == nil {
		work.ShortTerm = []Memory{}
	}
	work.LongTerm = longTerm
	if work.LongTerm == nil {
		work.LongTerm = []Memory{}
	}
	work.Cycles.LastWeekly = now
	work.UpdatedAt = now

	o.log.Info("weekly whisper", append(instanceFields(def, inst),
		zap.Int("retained", len(retained)),
		zap.Int("promoted", len(promoted)),
		zap.Int("discarded", len(discarded)),
		zap.Int("evicted", len(evicted)),
	)...)
	return WeeklyWhisperResult{
		Success:   true,
		Instance:  work,
		Retained:  cloneMemories(retained),
		Promoted:  promoted,
		Discarded: discarded,
		Evicted:   evicted,
	}
}

// PersonaShiftResult is the outcome of RunPersonaShift.
type PersonaShiftResult struct {
	Success  bool
	Err      error
	Instance *NPCInstance
	// Proposal holds the accepted deltas after the per-proposal clamp.
	Proposal TraitModifiers
	// Rejected lists proposal keys that are not recognised traits.
	Rejected []string
	// Modifiers is the accumulated modifier set after the shift.
	Modifiers TraitModifiers
}

// RunPersonaShift asks for a trait-delta proposal grounded in recent memories,
// accumulates the accepted deltas into the instance's modifiers and drifts
// every relationship. Only the five trait names are accepted; anything else
// in the proposal, identity fields included, is rejected.
func (o *Orchestrator) RunPersonaShift(ctx context.Context, def *NPCDefinition, inst *NPCInstance) PersonaShiftResult {
	fail := func(err error) PersonaShiftResult {
		o.log.Warn("persona shift failed", append(instanceFields(def, inst), zap.Error(err))...)
		return PersonaShiftResult{Err: fmt.Errorf("persona shift: %w", err), Instance: inst.Clone()}
	}
	if err := checkCycleInput(def, inst); err != nil {
		return fail(err)
	}
	if o.gen == nil {
		return fail(ErrNoGenerator)
	}

	longTerm := Retrieve(inst.LongTerm, RetrieveOptions{SortBy: ByRecency, MaxCount: ShiftLongTermCount})
	shortTerm := Retrieve(inst.ShortTerm, RetrieveOptions{SortBy: ByRecency, MaxCount: ShiftShortTermCount})
	user := personaShiftUserPrompt(def, inst, longTerm, shortTerm)

	text, err := o.generate(ctx, "persona_shift", PersonaShiftPrompt, user, def, inst)
	if err != nil {
		return fail(err)
	}
	proposal, rejected, err := ParseTraitProposal(text)
	if err != nil {
		return fail(err)
	}
	if len(rejected) > 0 {
		o.log.Warn("persona shift proposal carried unknown keys",
			append(instanceFields(def, inst), zap.Strings("rejected", rejected))...)
	}

	now := o.now()
	out := inst.Clone()
	out.Modifiers = AccumulateModifiers(inst.Modifiers, proposal)
	for player, r := range out.Relationships {
		drifted := DriftRelationship(r)
		if drifted != r {
			drifted.UpdatedAt = now
		}
		out.Relationships[player] = drifted
	}
	out.Cycles.LastPersonaShift = now
	out.UpdatedAt = now

	o.log.Info("persona shift", append(instanceFields(def, inst),
		zap.Any("proposal", proposal),
		zap.Any("modifiers", out.Modifiers),
	)...)
	return PersonaShiftResult{
		Success:   true,
		Instance:  out,
		Proposal:  proposal,
		Rejected:  rejected,
		Modifiers: out.Modifiers.Clone(),
	}
}

func (o *Orchestrator) generate(ctx context.Context, action, system, user string, def *NPCDefinition, inst *NPCInstance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	LogGeneration(o.log, action, system, user, instanceFields(def, inst)...)
	out, err := o.gen.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	// A generator that ignores cancellation must not sneak a result past it.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	o.log.Debug("generation done", zap.String("action", action), zap.Int("result_len", len(out)))
	return out, nil
}

func checkCycleInput(def *NPCDefinition, inst *NPCInstance) error {
	if def == nil {
		return &ValidationError{Field: "definition", Value: nil, Reason: "must not be nil"}
	}
	if inst == nil {
		return &ValidationError{Field: "instance", Value: nil, Reason: "must not be nil"}
	}
	if inst.NPCID != def.ID {
		return &ValidationError{Field: "instance.npc_id", Value: inst.NPCID, Reason: "does not match definition " + def.ID}
	}
	return inst.Mood.Validate()
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// firstSentence strips reasoning blocks and wrapping quotes and returns the
// first sentence of s.
func firstSentence(s string) string {
	s = strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
	s = strings.Trim(s, "\"'“”‘’ \n\t")
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, "\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(s) || s[i+1] == ' ' {
				s = s[:i+1]
				break
			}
		}
	}
	return TrimToChars(s, maxTakeawayCharacters)
}

var traitProposalRegex = regexp.MustCompile(`\{[^{}]*"(?:openness|conscientiousness|extraversion|agreeableness|neuroticism)"\s*:\s*[-+\d.eE]+[^{}]*\}`)

// ParseTraitProposal extracts a JSON object of trait deltas from raw generator
// output. Recognised trait values are clamped to ±MaxProposalDelta; every other
// key is returned in rejected (sorted). Output without a JSON object, or with a
// non-numeric trait value, fails with ErrMalformedProposal.
func ParseTraitProposal(raw string) (TraitModifiers, []string, error) {
	raw = strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
	if idx := traitProposalRegex.FindStringIndex(raw); len(idx) > 0 {
		raw = raw[idx[0]:idx[1]]
	} else if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			raw = raw[i : j+1]
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}

	proposal := make(TraitModifiers, len(Traits))
	var rejected []string
	for key, val := range fields {
		name := strings.ToLower(strings.TrimSpace(key))
		if !IsTrait(name) {
			rejected = append(rejected, key)
			continue
		}
		var d float64
		if err := json.Unmarshal(val, &d); err != nil {
			return nil, nil, fmt.Errorf("%w: %s is not a number", ErrMalformedProposal, key)
		}
		proposal[Trait(name)] = clampRange(d, -MaxProposalDelta, MaxProposalDelta)
	}
	sort.Strings(rejected)
	if len(proposal) == 0 && len(rejected) > 0 {
		return nil, rejected, fmt.Errorf("%w: no recognised traits", ErrMalformedProposal)
	}
	return proposal, rejected, nil
}

// IsCollaboratorFailure reports whether err came from the generator rather
// than from invalid input.
func IsCollaboratorFailure(err error) bool {
	var ve *ValidationError
	return err != nil && !errors.As(err, &ve)
}
