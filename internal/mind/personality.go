package mind

import (
	"math"
	"strings"
)

// MaxModifier bounds every accumulated trait modifier.
const MaxModifier = 0.3

// ShiftAnnotationThreshold marks a trait as recently shifted in Describe.
const ShiftAnnotationThreshold = 0.1

// ApplyModifiers returns baseline with each present modifier (clamped to
// ±MaxModifier) added and the result clamped to 0..1.
func ApplyModifiers(baseline PersonalityBaseline, modifiers TraitModifiers) PersonalityBaseline {
	out := baseline
	for _, t := range Traits {
		d, ok := modifiers[t]
		if !ok {
			continue
		}
		out = out.With(t, clamp01(baseline.Get(t)+clampModifier(d)))
	}
	return out
}

// AccumulateModifiers adds delta onto current per trait and clamps each sum to
// ±MaxModifier. Unknown traits in delta are dropped. current is not modified.
func AccumulateModifiers(current, delta TraitModifiers) TraitModifiers {
	out := make(TraitModifiers, len(current)+len(delta))
	for t, v := range current {
		if IsTrait(string(t)) {
			out[t] = clampModifier(v)
		}
	}
	for t, d := range delta {
		if !IsTrait(string(t)) {
			continue
		}
		out[t] = clampModifier(out[t] + d)
	}
	return out
}

// DriftMagnitude reports whether any modifier's magnitude reaches threshold.
func DriftMagnitude(modifiers TraitModifiers, threshold float64) bool {
	return len(DriftedTraits(modifiers, threshold)) > 0
}

// DriftedTraits lists the traits whose modifier magnitude reaches threshold,
// in canonical order.
func DriftedTraits(modifiers TraitModifiers, threshold float64) []Trait {
	var out []Trait
	for _, t := range Traits {
		if v, ok := modifiers[t]; ok && math.Abs(v) >= threshold {
			out = append(out, t)
		}
	}
	return out
}

func clampModifier(v float64) float64 {
	return clampRange(v, -MaxModifier, MaxModifier)
}

var traitProse = map[Trait][3]string{
	Openness: {
		"Prefers the familiar and distrusts novelty.",
		"Open to new ideas when they prove useful.",
		"Curious, imaginative and drawn to the unknown.",
	},
	Conscientiousness: {
		"Spontaneous and careless with plans.",
		"Reasonably dependable without being rigid.",
		"Disciplined, orderly and keeps every promise.",
	},
	Extraversion: {
		"Reserved and quiet; speaks only when needed.",
		"Comfortable in company but happy alone.",
		"Outgoing, talkative and energised by others.",
	},
	Agreeableness: {
		"Blunt and slow to trust.",
		"Fair-minded; cooperates when it is earned.",
		"Warm, forgiving and eager to help.",
	},
	Neuroticism: {
		"Calm and hard to rattle.",
		"Usually steady, shaken by real trouble.",
		"Anxious and quick to feel threatened.",
	},
}

// TraitLevel converts 0..1 to low/mid/high.
func TraitLevel(v float64) string {
	switch {
	case v < 0.35:
		return "low"
	case v > 0.65:
		return "high"
	default:
		return "mid"
	}
}

// Describe renders the (optionally modified) personality as plain-language
// lines. Traits whose modifier magnitude exceeds ShiftAnnotationThreshold are
// marked as recently shifted. modifiers may be nil.
func Describe(baseline PersonalityBaseline, modifiers TraitModifiers) string {
	p := ApplyModifiers(baseline, modifiers)
	lines := make([]string, 0, len(Traits))
	for _, t := range Traits {
		idx := 1
		switch TraitLevel(p.Get(t)) {
		case "low":
			idx = 0
		case "high":
			idx = 2
		}
		line := traitProse[t][idx]
		if math.Abs(modifiers[t]) > ShiftAnnotationThreshold {
			line += " (recently shifted)"
		}
		lines = append(lines, line)
	}
	return "--- Personality ---\n- " + strings.Join(lines, "\n- ") + "\n"
}
