package mind

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ValidateIntegrity reports whether current still carries the original
// backstory and the same ordered principles. Trauma flags are not compared.
func ValidateIntegrity(original, current CoreAnchor) bool {
	if original.Backstory != current.Backstory {
		return false
	}
	if len(original.Principles) != len(current.Principles) {
		return false
	}
	for i := range original.Principles {
		if original.Principles[i] != current.Principles[i] {
			return false
		}
	}
	return true
}

// EnforceImmutability returns def with its core anchor restored to original
// when integrity fails. The bool reports whether a restore happened. Nothing
// else on the definition is touched.
func EnforceImmutability(def NPCDefinition, original CoreAnchor) (NPCDefinition, bool) {
	if ValidateIntegrity(original, def.CoreAnchor) {
		return def, false
	}
	out := def.Clone()
	out.CoreAnchor = original.Clone()
	return out, true
}

// AnchorFingerprint is a short stable hash of the checked anchor content.
func AnchorFingerprint(a CoreAnchor) string {
	h := sha256.New()
	h.Write([]byte(a.Backstory))
	for _, p := range a.Principles {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DefinitionPatch is the whitelist of fields an authored definition may
// change after creation. Nil fields are left alone.
type DefinitionPatch struct {
	Name            *string              `json:"name,omitempty" yaml:"name,omitempty"`
	Description     *string              `json:"description,omitempty" yaml:"description,omitempty"`
	Voice           *VoiceConfig         `json:"voice,omitempty" yaml:"voice,omitempty"`
	Schedule        *ScheduleConfig      `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Knowledge       KnowledgeBase        `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	KnowledgeAccess map[string]int       `json:"knowledge_access,omitempty" yaml:"knowledge_access,omitempty"`
	Memory          *MemoryPolicy        `json:"memory,omitempty" yaml:"memory,omitempty"`
	CoreAnchor      *CoreAnchor          `json:"core_anchor,omitempty" yaml:"core_anchor,omitempty"`
	Personality     *PersonalityBaseline `json:"personality,omitempty" yaml:"personality,omitempty"`
}

// ApplyPatch returns def with p applied. A patch carrying a core anchor that
// differs from the current one fails with ErrAnchorImmutable; an identical
// anchor is accepted as a no-op. The personality baseline is immutable too.
// The result is validated.
func ApplyPatch(def NPCDefinition, p DefinitionPatch) (NPCDefinition, error) {
	if p.CoreAnchor != nil && !ValidateIntegrity(def.CoreAnchor, *p.CoreAnchor) {
		return def, ErrAnchorImmutable
	}
	if p.Personality != nil && *p.Personality != def.Personality {
		return def, &ValidationError{Field: "personality", Value: *p.Personality, Reason: "baseline is immutable"}
	}
	out := def.Clone()
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Voice != nil {
		out.Voice = *p.Voice
	}
	if p.Schedule != nil {
		out.Schedule = *p.Schedule
	}
	if p.Knowledge != nil {
		out.Knowledge = NPCDefinition{Knowledge: p.Knowledge}.Clone().Knowledge
	}
	if p.KnowledgeAccess != nil {
		out.KnowledgeAccess = NPCDefinition{KnowledgeAccess: p.KnowledgeAccess}.Clone().KnowledgeAccess
	}
	if p.Memory != nil {
		out.Memory = *p.Memory
	}
	if err := out.Validate(); err != nil {
		return def, err
	}
	return out, nil
}
