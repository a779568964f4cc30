// Package flow implements the graph-shaped strategy model: a directed
// graph of typed nodes (start, schedule, condition, action, end) walked
// depth-first per bar, with conditional branching on condition results.
package flow

import (
	"errors"
	"fmt"

	"backsim/internal/strategy"
)

// NodeKind names a node variant.
type NodeKind string

// Node kinds.
const (
	KindStart     NodeKind = "start"
	KindSchedule  NodeKind = "schedule"
	KindCondition NodeKind = "condition"
	KindAction    NodeKind = "action"
	KindEnd       NodeKind = "end"
)

// Branch tags an edge out of a condition node.
type Branch string

// Edge branch tags. An untagged edge is followed regardless of the
// condition's result.
const (
	BranchTrue  Branch = "true"
	BranchFalse Branch = "false"
	BranchNone  Branch = ""
)

// Node is the closed set of flow node variants. Each implementation
// carries only the parameters relevant to its kind.
type Node interface {
	ID() string
	Kind() NodeKind
}

// StartNode is the unique entry point of a flow.
type StartNode struct {
	NodeID string
}

func (n StartNode) ID() string     { return n.NodeID }
func (n StartNode) Kind() NodeKind { return KindStart }

// ScheduleNode gates traversal on a time-window predicate supplied by
// the runner's caller. Window is an opaque description passed to that
// predicate; with no predicate configured the node always passes.
type ScheduleNode struct {
	NodeID string
	Window string
}

func (n ScheduleNode) ID() string     { return n.NodeID }
func (n ScheduleNode) Kind() NodeKind { return KindSchedule }

// ConditionNode evaluates a condition predicate and branches on the
// result.
type ConditionNode struct {
	NodeID    string
	Condition strategy.ConditionKind
	Params    strategy.ConditionParams
}

func (n ConditionNode) ID() string     { return n.NodeID }
func (n ConditionNode) Kind() NodeKind { return KindCondition }

// ActionNode describes a trade action. The runner executes it against a
// ledger only when its caller attached one; otherwise the outcome is
// recorded without any mutation.
type ActionNode struct {
	NodeID string
	Action strategy.ActionKind
	Params strategy.ActionParams
}

func (n ActionNode) ID() string     { return n.NodeID }
func (n ActionNode) Kind() NodeKind { return KindAction }

// EndNode is a descriptive terminal. A flow without one is still valid:
// traversal simply stops at nodes with no outgoing edges.
type EndNode struct {
	NodeID string
}

func (n EndNode) ID() string     { return n.NodeID }
func (n EndNode) Kind() NodeKind { return KindEnd }

// Edge is a directed connection between two nodes, optionally tagged
// with the condition branch it belongs to.
type Edge struct {
	Source string
	Target string
	Branch Branch
}

// Flow is a strategy expressed as a node graph.
type Flow struct {
	Name  string
	Nodes []Node
	Edges []Edge
}

// ErrNoStart is returned by Validate when the flow has no start node.
var ErrNoStart = errors.New("flow: no start node")

// Validate checks the structural invariants: exactly one start node,
// edges referencing known nodes, valid condition/action kinds, and at
// most two branch-tagged edges out of any condition node.
func (f *Flow) Validate() error {
	ids := make(map[string]Node, len(f.Nodes))
	starts := 0
	for _, n := range f.Nodes {
		if n.ID() == "" {
			return fmt.Errorf("flow %q: node with empty id", f.Name)
		}
		if _, dup := ids[n.ID()]; dup {
			return fmt.Errorf("flow %q: duplicate node id %q", f.Name, n.ID())
		}
		ids[n.ID()] = n

		switch v := n.(type) {
		case StartNode:
			starts++
		case ConditionNode:
			if !strategy.ValidConditionKind(v.Condition) {
				return fmt.Errorf("flow %q: node %q: condition %q: %w", f.Name, v.NodeID, v.Condition, strategy.ErrUnknownKind)
			}
		case ActionNode:
			if !strategy.ValidActionKind(v.Action) {
				return fmt.Errorf("flow %q: node %q: action %q: %w", f.Name, v.NodeID, v.Action, strategy.ErrUnknownKind)
			}
		}
	}
	if starts == 0 {
		return fmt.Errorf("%w (flow %q)", ErrNoStart, f.Name)
	}
	if starts > 1 {
		return fmt.Errorf("flow %q: %d start nodes, want exactly 1", f.Name, starts)
	}

	tagged := make(map[string]int)
	for _, e := range f.Edges {
		src, ok := ids[e.Source]
		if !ok {
			return fmt.Errorf("flow %q: edge source %q unknown", f.Name, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("flow %q: edge target %q unknown", f.Name, e.Target)
		}
		switch e.Branch {
		case BranchTrue, BranchFalse:
			if src.Kind() != KindCondition {
				return fmt.Errorf("flow %q: branch tag on edge from non-condition node %q", f.Name, e.Source)
			}
			tagged[e.Source]++
			if tagged[e.Source] > 2 {
				return fmt.Errorf("flow %q: condition node %q has more than two branch edges", f.Name, e.Source)
			}
		case BranchNone:
		default:
			return fmt.Errorf("flow %q: invalid branch tag %q", f.Name, e.Branch)
		}
	}
	return nil
}

// start returns the unique start node. Callers run Validate first.
func (f *Flow) start() (Node, bool) {
	for _, n := range f.Nodes {
		if n.Kind() == KindStart {
			return n, true
		}
	}
	return nil, false
}

// outgoing returns the edges leaving the given node, in declaration
// order.
func (f *Flow) outgoing(id string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// node returns the node with the given id.
func (f *Flow) node(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}
