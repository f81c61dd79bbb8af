package mind

import "strings"

// Reference moods used as blend targets.
var (
	NeutralMood  = MoodVector{Valence: 0.5, Arousal: 0.5, Dominance: 0.5}
	PositiveMood = MoodVector{Valence: 0.8, Arousal: 0.6, Dominance: 0.6}
	NegativeMood = MoodVector{Valence: -0.6, Arousal: 0.6, Dominance: 0.35}
)

// Blend moves current toward target by weight (clamped to 0..1) on every axis.
// The result is clamped to the axis bounds.
func Blend(current, target MoodVector, weight float64) MoodVector {
	w := clamp01(weight)
	return MoodVector{
		Valence:   clampSigned(lerp(current.Valence, target.Valence, w)),
		Arousal:   clamp01(lerp(current.Arousal, target.Arousal, w)),
		Dominance: clamp01(lerp(current.Dominance, target.Dominance, w)),
	}
}

// Clamp forces every axis into its bound.
func (m MoodVector) Clamp() MoodVector {
	return MoodVector{
		Valence:   clampSigned(m.Valence),
		Arousal:   clamp01(m.Arousal),
		Dominance: clamp01(m.Dominance),
	}
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}

// MoodBands is the qualitative reading of a mood, for rendering only.
type MoodBands struct {
	Valence   string
	Arousal   string
	Dominance string
}

func (b MoodBands) String() string {
	return b.Valence + ", " + b.Arousal + ", " + b.Dominance
}

// Categorize maps each axis to a band.
//
//	valence:   <= -0.6 distressed, < -0.2 low, <= 0.2 neutral, < 0.6 content, else elated
//	arousal:   < 0.3 calm, < 0.7 alert, else agitated
//	dominance: < 0.3 yielding, < 0.7 steady, else commanding
func Categorize(m MoodVector) MoodBands {
	var b MoodBands
	switch {
	case m.Valence <= -0.6:
		b.Valence = "distressed"
	case m.Valence < -0.2:
		b.Valence = "low"
	case m.Valence <= 0.2:
		b.Valence = "neutral"
	case m.Valence < 0.6:
		b.Valence = "content"
	default:
		b.Valence = "elated"
	}
	switch {
	case m.Arousal < 0.3:
		b.Arousal = "calm"
	case m.Arousal < 0.7:
		b.Arousal = "alert"
	default:
		b.Arousal = "agitated"
	}
	switch {
	case m.Dominance < 0.3:
		b.Dominance = "yielding"
	case m.Dominance < 0.7:
		b.Dominance = "steady"
	default:
		b.Dominance = "commanding"
	}
	return b
}

// CompositeScore is a single number for ranking moods in logs. Not used for
// control flow.
func CompositeScore(m MoodVector) float64 {
	return 0.5*m.Valence + 0.25*m.Arousal + 0.25*m.Dominance
}

// FeelingPhrase converts a mood to one short phrase (no numbers).
func FeelingPhrase(m MoodVector) string {
	b := Categorize(m)
	var parts []string
	if b.Valence != "neutral" {
		parts = append(parts, b.Valence)
	}
	if b.Arousal != "alert" {
		parts = append(parts, b.Arousal)
	}
	if b.Dominance != "steady" {
		parts = append(parts, b.Dominance)
	}
	if len(parts) == 0 {
		return "Current mood: even."
	}
	return "Currently feeling: " + strings.Join(parts, ", ") + "."
}

func clamp01(x float64) float64 {
	return clampRange(x, 0, 1)
}

func clampSigned(x float64) float64 {
	return clampRange(x, -1, 1)
}

func clampRange(x, lo, hi float64) float64 {
	if x != x || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
