package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miraYAML = `
id: mira
name: Mira
core_anchor:
  backstory: A ferrywoman who lost her brother to the river.
  principles:
    - Never abandon a passenger
    - Pay every debt
personality:
  openness: 0.5
  conscientiousness: 0.8
  extraversion: 0.3
  agreeableness: 0.6
  neuroticism: 0.4
knowledge:
  river:
    1: The river floods in spring.
    2: The old ford is cursed.
knowledge_access:
  river: 2
memory:
  short_term_cap: 10
  long_term_cap: 40
  salience_threshold: 0.75
`

func TestDecodeDefinition(t *testing.T) {
	def, err := DecodeDefinition([]byte(miraYAML))
	require.NoError(t, err)
	assert.Equal(t, "mira", def.ID)
	assert.Equal(t, []string{"Never abandon a passenger", "Pay every debt"}, def.CoreAnchor.Principles)
	assert.Equal(t, "The old ford is cursed.", def.Knowledge["river"][2])
	assert.Equal(t, 2, def.KnowledgeAccess["river"])
	assert.Equal(t, 0.75, def.Memory.SalienceThreshold)
}

func TestDecodeDefinitionRejectsUnknownFields(t *testing.T) {
	_, err := DecodeDefinition([]byte(miraYAML + "favourite_colour: blue\n"))
	assert.Error(t, err)
}

func TestDecodeDefinitionValidates(t *testing.T) {
	_, err := DecodeDefinition([]byte("id: mira\nname: Mira\n"))
	assert.ErrorContains(t, err, "core_anchor.backstory")
}

func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mira.yaml")
	require.NoError(t, os.WriteFile(path, []byte(miraYAML), 0o644))

	def, err := LoadDefinitionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Mira", def.Name)

	_, err = LoadDefinitionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
