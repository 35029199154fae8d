package core

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConfigBlock is the YAML block common to every component.
type ConfigBlock struct {
	Kind           string     `yaml:"kind" json:"kind"`
	Implementation string     `yaml:"implementation" json:"implementation"`
	UUID           string     `yaml:"uuid" json:"uuid"`
	Properties     Properties `yaml:"properties" json:"properties"`
}

// BehaviourConfigBlock is the YAML block for a Behaviour, including its
// sub-components.
type BehaviourConfigBlock struct {
	ConfigBlock `yaml:",inline" json:",inline"`

	Triggers   []ConfigBlock `yaml:"triggers" json:"triggers"`
	Conditions []ConfigBlock `yaml:"conditions" json:"conditions"`
	Actions    []ConfigBlock `yaml:"actions" json:"actions"`
}

// Properties is the opaque, implementation-specific part of a ConfigBlock.
type Properties map[string]any

// Decode copies the properties into the struct pointed to by into, using its
// yaml tags. Keys without a matching field are an error.
func (p Properties) Decode(into any) error {
	if len(p) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(map[string]any(p))
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("failed to decode properties: %w", err)
	}
	return nil
}

// GetString returns the value under key if it is a string, or def.
func (p Properties) GetString(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}
