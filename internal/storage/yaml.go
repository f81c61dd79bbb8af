package storage

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/keshon/npc-mind/internal/mind"
)

// DecodeDefinition parses one YAML-authored definition and validates it.
// Unknown fields are rejected.
func DecodeDefinition(data []byte) (mind.NPCDefinition, error) {
	var def mind.NPCDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return def, fmt.Errorf("parse definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// LoadDefinitionFile reads and validates a YAML definition from path.
func LoadDefinitionFile(path string) (mind.NPCDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mind.NPCDefinition{}, err
	}
	def, err := DecodeDefinition(data)
	if err != nil {
		return def, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}
