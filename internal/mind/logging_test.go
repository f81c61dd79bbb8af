package mind

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "short", truncateForLog("  short  ", 10))

	got := truncateForLog(strings.Repeat("é", 20), 7)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 7)+"...", got)
}

func TestLogGeneration(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	LogGeneration(zap.New(core), "daily_pulse", "sys", strings.Repeat("ü", 600), zap.String("npc", "mira"))

	entries := logs.FilterMessage("generation").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "daily_pulse", fields["action"])
	assert.Equal(t, "mira", fields["npc"])
	preview, _ := fields["user_preview"].(string)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 403, utf8.RuneCountInString(preview))

	quiet, none := observer.New(zapcore.InfoLevel)
	LogGeneration(zap.New(quiet), "daily_pulse", "sys", "user")
	assert.Zero(t, none.Len())
}
