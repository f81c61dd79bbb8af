package mind

import (
	"fmt"
	"strings"
)

// DailyPulsePrompt asks for a single first-person takeaway. No personality
// changes are requested here.
const DailyPulsePrompt = `You are the inner voice of a game character reflecting on the day that just ended. Write ONE short sentence in the first person that captures what the character takes away from the day. Output only the sentence, no preamble, no quotes.`

// PersonaShiftPrompt asks for trait deltas only. The identity block in the user
// message is context and must never be changed.
const PersonaShiftPrompt = `You are an observer. Given a character's fixed identity, current personality and recent memories, suggest tiny personality adjustments as JSON only. Each value must be between -0.1 and 0.1 (deltas to add). Output only valid JSON with these keys: openness, conscientiousness, extraversion, agreeableness, neuroticism. If no change for a key, use 0. The identity (backstory and principles) is read-only: never propose changes to it.`

func identityBlock(def *NPCDefinition) string {
	var b strings.Builder
	b.WriteString("--- Identity (read-only, never changes) ---\n")
	if def.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", def.Name)
	}
	fmt.Fprintf(&b, "Backstory: %s\n", strings.TrimSpace(def.CoreAnchor.Backstory))
	if len(def.CoreAnchor.Principles) > 0 {
		b.WriteString("Principles:\n")
		for i, p := range def.CoreAnchor.Principles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
	}
	return b.String()
}

func dailyPulseUserPrompt(def *NPCDefinition, inst *NPCInstance, recent []Memory, day DayContext) string {
	var b strings.Builder
	if def != nil {
		fmt.Fprintf(&b, "Character: %s\n", def.Name)
	}
	b.WriteString(FeelingPhrase(inst.Mood))
	b.WriteString("\n")
	b.WriteString(FormatMemories("Recent memories", recent))
	if len(day.Events) > 0 {
		b.WriteString("--- Today's events ---\n")
		for _, e := range day.Events {
			if e = strings.TrimSpace(e); e != "" {
				b.WriteString("- ")
				b.WriteString(e)
				b.WriteString("\n")
			}
		}
	}
	if day.DominantMood != "" {
		fmt.Fprintf(&b, "Dominant mood of the day: %s\n", day.DominantMood)
	}
	if day.Overall != DayToneUnset {
		fmt.Fprintf(&b, "Overall the day was %s.\n", day.Overall)
	}
	return TrimToChars(b.String(), 2500)
}

func personaShiftUserPrompt(def *NPCDefinition, inst *NPCInstance, longTerm, shortTerm []Memory) string {
	var b strings.Builder
	b.WriteString(identityBlock(def))
	p := inst.Personality(def)
	b.WriteString("--- Current personality ---\n")
	for _, t := range Traits {
		fmt.Fprintf(&b, "%s=%.2f ", t, p.Get(t))
	}
	b.WriteString("\n")
	b.WriteString(FormatMemories("Long-term memories", longTerm))
	b.WriteString(FormatMemories("Recent memories", shortTerm))
	return TrimToChars(b.String(), 6000)
}
