package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"backsim/internal/strategy"
)

// nodeDoc is the YAML form of a node; Type selects the variant and only
// that variant's fields are read.
type nodeDoc struct {
	ID        string                   `yaml:"id"`
	Type      NodeKind                 `yaml:"type"`
	Window    string                   `yaml:"window"`
	Condition strategy.ConditionKind   `yaml:"condition"`
	CondParam strategy.ConditionParams `yaml:"condition_params"`
	Action    strategy.ActionKind      `yaml:"action"`
	ActParam  strategy.ActionParams    `yaml:"action_params"`
}

// edgeDoc is the YAML form of an edge.
type edgeDoc struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Branch Branch `yaml:"branch"`
}

// flowDoc is the YAML form of a flow document.
type flowDoc struct {
	Name  string    `yaml:"name"`
	Nodes []nodeDoc `yaml:"nodes"`
	Edges []edgeDoc `yaml:"edges"`
}

// Parse decodes a YAML flow document into typed nodes and validates it.
func Parse(data []byte) (*Flow, error) {
	var doc flowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing flow: %w", err)
	}

	f := &Flow{Name: doc.Name}
	for _, n := range doc.Nodes {
		switch n.Type {
		case KindStart:
			f.Nodes = append(f.Nodes, StartNode{NodeID: n.ID})
		case KindSchedule:
			f.Nodes = append(f.Nodes, ScheduleNode{NodeID: n.ID, Window: n.Window})
		case KindCondition:
			f.Nodes = append(f.Nodes, ConditionNode{NodeID: n.ID, Condition: n.Condition, Params: n.CondParam})
		case KindAction:
			f.Nodes = append(f.Nodes, ActionNode{NodeID: n.ID, Action: n.Action, Params: n.ActParam})
		case KindEnd:
			f.Nodes = append(f.Nodes, EndNode{NodeID: n.ID})
		default:
			return nil, fmt.Errorf("flow %q: node %q: type %q: %w", doc.Name, n.ID, n.Type, strategy.ErrUnknownKind)
		}
	}
	for _, e := range doc.Edges {
		f.Edges = append(f.Edges, Edge{Source: e.Source, Target: e.Target, Branch: e.Branch})
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads and parses a YAML flow file.
func Load(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}
	return Parse(data)
}
