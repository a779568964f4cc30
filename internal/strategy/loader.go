package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// blockDoc is the YAML form of a RuleBlock. Enabled is a pointer so an
// omitted field defaults to true.
type blockDoc struct {
	ID              string          `yaml:"id"`
	Kind            BlockKind       `yaml:"kind"`
	Enabled         *bool           `yaml:"enabled"`
	Condition       ConditionKind   `yaml:"condition"`
	ConditionParams ConditionParams `yaml:"condition_params"`
	Action          ActionKind      `yaml:"action"`
	ActionParams    ActionParams    `yaml:"action_params"`
}

// strategyDoc is the YAML form of a Strategy document.
type strategyDoc struct {
	Name   string     `yaml:"name"`
	Blocks []blockDoc `yaml:"blocks"`
	Order  []string   `yaml:"order"`
}

// Parse decodes a YAML strategy document and validates it by compiling.
func Parse(data []byte) (*Strategy, error) {
	var doc strategyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing strategy: %w", err)
	}

	s := &Strategy{
		Name:  doc.Name,
		Order: doc.Order,
	}
	for _, b := range doc.Blocks {
		enabled := true
		if b.Enabled != nil {
			enabled = *b.Enabled
		}
		s.Blocks = append(s.Blocks, RuleBlock{
			ID:              b.ID,
			Kind:            b.Kind,
			Enabled:         enabled,
			Condition:       b.Condition,
			ConditionParams: b.ConditionParams,
			Action:          b.Action,
			ActionParams:    b.ActionParams,
		})
	}

	if _, err := s.Compile(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses a YAML strategy file.
func Load(path string) (*Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy file: %w", err)
	}
	return Parse(data)
}
