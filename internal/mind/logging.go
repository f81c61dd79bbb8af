package mind

import (
	"strings"

	"go.uber.org/zap"
)

// LogGeneration logs the prompt pair right before a generator call.
func LogGeneration(log *zap.Logger, action, system, user string, fields ...zap.Field) {
	if log == nil || !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	log.Debug("generation",
		append([]zap.Field{
			zap.String("action", action),
			zap.Int("system_len", len(system)),
			zap.Int("user_len", len(user)),
			zap.String("system_preview", truncateForLog(system, 500)),
			zap.String("user_preview", truncateForLog(user, 400)),
		}, fields...)...,
	)
}

func truncateForLog(s string, max int) string {
	s = strings.TrimSpace(s)
	if t := TrimToChars(s, max); t != s {
		return t + "..."
	}
	return s
}

func instanceFields(def *NPCDefinition, inst *NPCInstance) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if inst != nil {
		fields = append(fields, zap.String("npc", inst.NPCID), zap.String("player", inst.PlayerID))
	} else if def != nil {
		fields = append(fields, zap.String("npc", def.ID))
	}
	return fields
}
