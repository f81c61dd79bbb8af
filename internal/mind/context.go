package mind

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Approximate token limits per section. LLMs use ~4 chars/token for English.
const (
	BudgetPersonality  = 200 // tokens
	BudgetMood         = 40
	BudgetRelationship = 80
	BudgetDailyPulse   = 80
	BudgetKnowledge    = 600
	BudgetMemories     = 400
	CharsPerToken      = 4
	ContextMemoryCount = 5
	ContextMinSalience = 0.2
)

// ContextBudget holds per-section character limits. Identity is never trimmed.
type ContextBudget struct {
	MaxPersonality  int
	MaxMood         int
	MaxRelationship int
	MaxDailyPulse   int
	MaxKnowledge    int
	MaxMemories     int
}

// DefaultContextBudget returns default limits.
func DefaultContextBudget() ContextBudget {
	return ContextBudget{
		MaxPersonality:  BudgetPersonality * CharsPerToken,
		MaxMood:         BudgetMood * CharsPerToken,
		MaxRelationship: BudgetRelationship * CharsPerToken,
		MaxDailyPulse:   BudgetDailyPulse * CharsPerToken,
		MaxKnowledge:    BudgetKnowledge * CharsPerToken,
		MaxMemories:     BudgetMemories * CharsPerToken,
	}
}

// TrimToChars truncates s to maxChars runes, trying to cut at a word boundary.
func TrimToChars(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	out := string(r[:maxChars])
	lastSpace := strings.LastIndex(out, " ")
	if lastSpace > len(out)/2 {
		return strings.TrimSpace(out[:lastSpace])
	}
	return strings.TrimSpace(out)
}

// BuildContext assembles the prompt context an NPC speaks from when talking to
// playerID: identity, personality with current modifiers, mood, relationship,
// the last daily takeaway, resolved knowledge and the most salient memories.
// Only numbers-free descriptions are emitted.
func BuildContext(def *NPCDefinition, inst *NPCInstance, playerID string, budget ContextBudget) string {
	var b strings.Builder

	// Identity: never trimmed.
	b.WriteString(identityBlock(def))
	b.WriteString("\n")

	var mods TraitModifiers
	if inst != nil {
		mods = inst.Modifiers
	}
	b.WriteString(TrimToChars(Describe(def.Personality, mods), budget.MaxPersonality))
	b.WriteString("\n")

	if inst == nil {
		inst = NewInstance(def, playerID, def.CreatedAt)
	}

	b.WriteString("--- Mood ---\n")
	b.WriteString(TrimToChars(FeelingPhrase(inst.Mood), budget.MaxMood))
	b.WriteString("\n")

	if playerID != "" {
		r := inst.Relationship(playerID)
		b.WriteString("--- Relationship ---\n")
		b.WriteString(TrimToChars(fmt.Sprintf("Toward %s: trust %s, familiarity %s, feeling %s.",
			playerID, RelationshipLevel(r.Trust), RelationshipLevel(r.Familiarity), SentimentLevel(r.Sentiment)),
			budget.MaxRelationship))
		b.WriteString("\n")
	}

	if inst.DailyPulse != nil && inst.DailyPulse.Takeaway != "" {
		b.WriteString("--- Yesterday ---\n")
		b.WriteString(TrimToChars(inst.DailyPulse.Takeaway, budget.MaxDailyPulse))
		b.WriteString("\n")
	}

	if k := ResolveKnowledge(def.Knowledge, def.KnowledgeAccess); k != "" {
		b.WriteString("--- Knowledge ---\n")
		b.WriteString(TrimToChars(k, budget.MaxKnowledge))
		b.WriteString("\n")
	}

	all := make([]Memory, 0, len(inst.LongTerm)+len(inst.ShortTerm))
	all = append(all, inst.LongTerm...)
	all = append(all, inst.ShortTerm...)
	relevant := Retrieve(all, RetrieveOptions{MinSalience: ContextMinSalience, MaxCount: ContextMemoryCount})
	if s := FormatMemories("Relevant memories", relevant); s != "" {
		b.WriteString(TrimToChars(s, budget.MaxMemories))
		b.WriteString("\n")
	}

	return b.String()
}

// EstimateTokens is a rough estimate (UTF-8 runes / 4).
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / CharsPerToken
}
