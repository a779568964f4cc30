package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backsim/internal/domain"
	"backsim/internal/strategy"
)

// NodeResult records the outcome of one visited node.
type NodeResult struct {
	NodeID       string
	Kind         NodeKind
	Detail       string
	ConditionMet *bool // non-nil only for condition nodes
}

// ActionOutcome is one action node's result, in visit order. Trade is
// nil when the runner had no ledger attached or the trade was skipped
// (unaffordable, formula error).
type ActionOutcome struct {
	NodeID string
	Action strategy.ActionKind
	Trade  *domain.Trade
}

// RunResult holds the per-node results of one traversal plus the
// ordered action outcomes. A failed run carries whatever was collected
// before the failing node.
type RunResult struct {
	NodeResults []NodeResult
	Executed    []ActionOutcome
	Failed      bool
}

// SchedulePredicate decides whether a schedule node's time window is
// open at t.
type SchedulePredicate func(node ScheduleNode, t time.Time) bool

// Runner walks a flow once per bar, depth-first from the start node.
//
// Ledger is optional: with one attached, action nodes execute against
// it through the action executor; without one they only describe their
// outcome. Schedule defaults to always-open when nil.
type Runner struct {
	log            *slog.Logger
	Schedule       SchedulePredicate
	Ledger         strategy.Account
	CommissionRate float64
	SlippageRate   float64
}

// NewRunner creates a Runner logging through the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{log: logger.With("component", "flow")}
}

// Run traverses the flow for the given bar. prev is nil on the first
// bar of a series. Traversal is synchronous and depth-first: condition
// nodes follow only edges whose branch tag matches their result (plus
// untagged edges), schedule nodes whose window is closed follow no
// edges, every other node follows all its edges. Nodes are visited at
// most once; traversal ends at nodes with no outgoing edges, so a
// missing end node is not an error.
//
// Any node handler error aborts the whole run: the result comes back
// with Failed set and the partial records collected so far, alongside
// the error.
func (r *Runner) Run(ctx context.Context, f *Flow, cur domain.Bar, prev *domain.Bar) (*RunResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	start, _ := f.start()

	res := &RunResult{}
	visited := make(map[string]bool)
	if err := r.visit(ctx, f, start, cur, prev, res, visited); err != nil {
		res.Failed = true
		r.log.Warn("flow run failed", "flow", f.Name, "err", err)
		return res, err
	}
	return res, nil
}

func (r *Runner) visit(ctx context.Context, f *Flow, n Node, cur domain.Bar, prev *domain.Bar, res *RunResult, visited map[string]bool) error {
	if visited[n.ID()] {
		return nil
	}
	visited[n.ID()] = true
	if ctx.Err() != nil {
		return ctx.Err()
	}

	next, err := r.handle(f, n, cur, prev, res)
	if err != nil {
		return err
	}

	for _, e := range next {
		target, ok := f.node(e.Target)
		if !ok {
			return fmt.Errorf("flow %q: edge target %q unknown", f.Name, e.Target)
		}
		if err := r.visit(ctx, f, target, cur, prev, res, visited); err != nil {
			return err
		}
	}
	return nil
}

// handle runs one node, records its result, and returns the edges to
// follow from it.
func (r *Runner) handle(f *Flow, n Node, cur domain.Bar, prev *domain.Bar, res *RunResult) ([]Edge, error) {
	out := f.outgoing(n.ID())

	switch v := n.(type) {
	case StartNode:
		res.NodeResults = append(res.NodeResults, NodeResult{NodeID: v.NodeID, Kind: KindStart, Detail: "flow started"})
		return out, nil

	case EndNode:
		res.NodeResults = append(res.NodeResults, NodeResult{NodeID: v.NodeID, Kind: KindEnd, Detail: "flow ended"})
		return out, nil

	case ScheduleNode:
		open := true
		if r.Schedule != nil {
			open = r.Schedule(v, cur.Timestamp)
		}
		detail := "window open"
		if !open {
			detail = "window closed"
			out = nil
		}
		res.NodeResults = append(res.NodeResults, NodeResult{NodeID: v.NodeID, Kind: KindSchedule, Detail: detail})
		return out, nil

	case ConditionNode:
		if !strategy.ValidConditionKind(v.Condition) {
			return nil, fmt.Errorf("node %q: condition %q: %w", v.NodeID, v.Condition, strategy.ErrUnknownKind)
		}
		met := strategy.EvalCondition(v.Condition, v.Params, cur, prev)
		res.NodeResults = append(res.NodeResults, NodeResult{
			NodeID:       v.NodeID,
			Kind:         KindCondition,
			Detail:       fmt.Sprintf("%s = %t", v.Condition, met),
			ConditionMet: &met,
		})

		want := BranchFalse
		if met {
			want = BranchTrue
		}
		var follow []Edge
		for _, e := range out {
			if e.Branch == want || e.Branch == BranchNone {
				follow = append(follow, e)
			}
		}
		return follow, nil

	case ActionNode:
		if !strategy.ValidActionKind(v.Action) {
			return nil, fmt.Errorf("node %q: action %q: %w", v.NodeID, v.Action, strategy.ErrUnknownKind)
		}
		outcome := ActionOutcome{NodeID: v.NodeID, Action: v.Action}
		detail := "described"
		if r.Ledger != nil {
			ec := strategy.ExecContext{
				Symbol:         cur.Symbol,
				Timestamp:      cur.Timestamp,
				Price:          cur.Close,
				CommissionRate: r.CommissionRate,
				SlippageRate:   r.SlippageRate,
			}
			if prev != nil {
				ec.PctChange = cur.PctChange(*prev)
			}
			outcome.Trade = strategy.ExecuteAction(v.Action, v.Params, ec, r.Ledger)
			if outcome.Trade != nil {
				detail = fmt.Sprintf("%s %d @ %.4f", outcome.Trade.Side, outcome.Trade.Quantity, outcome.Trade.Price)
			} else {
				detail = "skipped"
			}
		}
		res.NodeResults = append(res.NodeResults, NodeResult{NodeID: v.NodeID, Kind: KindAction, Detail: detail})
		res.Executed = append(res.Executed, outcome)
		return out, nil

	default:
		return nil, fmt.Errorf("node %q: unsupported node type %T", n.ID(), n)
	}
}
