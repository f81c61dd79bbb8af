package mind

import (
	"strings"
	"time"
)

// DefaultRelationship is the state of a player met for the first time.
var DefaultRelationship = RelationshipState{Trust: 0.5, Familiarity: 0, Sentiment: 0}

// Relationship returns the state for playerID, or the default when the NPC has
// not met the player yet. The instance is not modified.
func (in *NPCInstance) Relationship(playerID string) RelationshipState {
	if r, ok := in.Relationships[playerID]; ok {
		return r
	}
	return DefaultRelationship
}

// DriftRelationship applies the persona-shift drift: sentiment +0.05 when
// trust > 0.6 and familiarity > 0.5, -0.05 when trust < 0.3, else unchanged.
func DriftRelationship(r RelationshipState) RelationshipState {
	switch {
	case r.Trust > 0.6 && r.Familiarity > 0.5:
		r.Sentiment = clampSigned(r.Sentiment + 0.05)
	case r.Trust < 0.3:
		r.Sentiment = clampSigned(r.Sentiment - 0.05)
	}
	return r
}

// Tone classifies a conversational turn.
type Tone int

const (
	ToneNeutral Tone = iota
	TonePositive
	ToneNegative
	ToneAggressive
)

func (t Tone) String() string {
	switch t {
	case TonePositive:
		return "positive"
	case ToneNegative:
		return "negative"
	case ToneAggressive:
		return "aggressive"
	default:
		return "neutral"
	}
}

// ParseTone maps a name back to a Tone; unknown names are neutral.
func ParseTone(s string) Tone {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return TonePositive
	case "negative":
		return ToneNegative
	case "aggressive":
		return ToneAggressive
	default:
		return ToneNeutral
	}
}

// ClassifyTone is a cheap heuristic over the text of a turn (shouting,
// politeness and insult markers). No generation call is made.
func ClassifyTone(content string) Tone {
	content = strings.TrimSpace(content)
	if content == "" {
		return ToneNeutral
	}
	upper, letters := 0, 0
	for _, r := range content {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
			letters++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	if letters >= 8 && upper*100/letters > 60 {
		return ToneAggressive
	}
	if strings.HasSuffix(content, "!") && upper > 2 && upper*2 > letters {
		return ToneAggressive
	}
	lower := strings.ToLower(content)
	for _, w := range []string{"idiot", "stupid", "shut up", "liar", "hate you"} {
		if strings.Contains(lower, w) {
			return ToneNegative
		}
	}
	for _, w := range []string{"thank", "please", "friend", "appreciate"} {
		if strings.Contains(lower, w) {
			return TonePositive
		}
	}
	return ToneNeutral
}

// FamiliarityStep is added to familiarity on every interaction.
const FamiliarityStep = 0.02

// ApplyTurn returns r updated for one interaction of the given tone. delta
// outside (0, 0.2] falls back to 0.08.
func ApplyTurn(r RelationshipState, tone Tone, delta float64, now time.Time) RelationshipState {
	if delta <= 0 || delta > 0.2 {
		delta = 0.08
	}
	r.Familiarity = clamp01(r.Familiarity + FamiliarityStep)
	switch tone {
	case TonePositive:
		r.Sentiment = clampSigned(r.Sentiment + delta)
		r.Trust = clamp01(r.Trust + delta*0.5)
	case ToneNegative:
		r.Sentiment = clampSigned(r.Sentiment - delta)
		r.Trust = clamp01(r.Trust - delta*0.5)
	case ToneAggressive:
		r.Sentiment = clampSigned(r.Sentiment - delta*1.2)
		r.Trust = clamp01(r.Trust - delta)
	}
	r.Interactions++
	r.UpdatedAt = now
	return r
}

// RelationshipLevel converts 0..1 to high/medium/low for prompts.
func RelationshipLevel(v float64) string {
	switch {
	case v >= 0.7:
		return "high"
	case v >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// SentimentLevel converts -1..1 to warm/indifferent/cold for prompts.
func SentimentLevel(v float64) string {
	switch {
	case v >= 0.3:
		return "warm"
	case v <= -0.3:
		return "cold"
	default:
		return "indifferent"
	}
}
