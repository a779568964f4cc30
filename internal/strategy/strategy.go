// Package strategy defines the rule-based strategy model: ordered
// condition/action blocks, the predicate evaluator for conditions, and
// the executor that turns actions into ledger mutations and trades.
package strategy

import (
	"errors"
	"fmt"
)

// BlockKind distinguishes condition blocks from action blocks.
type BlockKind string

// Block kinds.
const (
	BlockCondition BlockKind = "condition"
	BlockAction    BlockKind = "action"
)

// ConditionKind identifies a condition predicate.
type ConditionKind string

// Supported condition kinds.
const (
	CondAlways           ConditionKind = "always"
	CondClosePriceChange ConditionKind = "close_price_change"
	CondHighPriceChange  ConditionKind = "high_price_change"
	CondLowPriceChange   ConditionKind = "low_price_change"
	CondPriceChangeRange ConditionKind = "price_change_range"
	CondPriceValueRange  ConditionKind = "price_value_range"
)

// ActionKind identifies a trade action.
type ActionKind string

// Supported action kinds.
const (
	ActBuyPercentCash    ActionKind = "buy_percent_cash"
	ActSellPercentStock  ActionKind = "sell_percent_stock"
	ActBuyFixedAmount    ActionKind = "buy_fixed_amount"
	ActSellFixedAmount   ActionKind = "sell_fixed_amount"
	ActBuyShares         ActionKind = "buy_shares"
	ActSellShares        ActionKind = "sell_shares"
	ActSellAll           ActionKind = "sell_all"
	ActBuyFormulaAmount  ActionKind = "buy_formula_amount"
	ActBuyFormulaShares  ActionKind = "buy_formula_shares"
	ActBuyFormulaPercent ActionKind = "buy_formula_percent"
	ActSellFormulaAmount ActionKind = "sell_formula_amount"
	ActSellFormulaShares ActionKind = "sell_formula_shares"
	ActSellFormulaPct    ActionKind = "sell_formula_percent"
	ActHold              ActionKind = "hold"
)

// Direction qualifies change-based conditions.
type Direction string

// Change directions.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ConditionParams carries the parameters for a condition block. Only the
// fields relevant to the block's kind are read.
type ConditionParams struct {
	ThresholdPercent float64   `yaml:"threshold_percent"`
	Direction        Direction `yaml:"direction"`
	MinPercent       float64   `yaml:"min_percent"`
	MaxPercent       float64   `yaml:"max_percent"`
	MinPrice         float64   `yaml:"min_price"`
	MaxPrice         float64   `yaml:"max_price"`
}

// ActionParams carries the parameters for an action block. Only the
// fields relevant to the block's kind are read.
type ActionParams struct {
	Percent float64 `yaml:"percent"`
	Amount  float64 `yaml:"amount"`
	Shares  int64   `yaml:"shares"`
	Formula string  `yaml:"formula"`
}

// RuleBlock is one condition or action unit in the linear strategy model.
type RuleBlock struct {
	ID              string
	Kind            BlockKind
	Enabled         bool
	Condition       ConditionKind
	ConditionParams ConditionParams
	Action          ActionKind
	ActionParams    ActionParams
}

// Strategy is an ordered rule list: a set of blocks plus an order that
// must be a permutation of the block IDs.
type Strategy struct {
	Name   string
	Blocks []RuleBlock
	Order  []string
}

// Rule is the compiled form of the linear model: one condition block and
// the enabled action blocks that follow it. Grouping is resolved once at
// compile time, so the engine never scans the block list during a run.
type Rule struct {
	Condition RuleBlock
	Actions   []RuleBlock
}

// ErrUnknownKind is wrapped by compile errors for unrecognized condition
// or action kinds.
var ErrUnknownKind = errors.New("unknown kind")

var conditionKinds = map[ConditionKind]bool{
	CondAlways:           true,
	CondClosePriceChange: true,
	CondHighPriceChange:  true,
	CondLowPriceChange:   true,
	CondPriceChangeRange: true,
	CondPriceValueRange:  true,
}

var actionKinds = map[ActionKind]bool{
	ActBuyPercentCash:    true,
	ActSellPercentStock:  true,
	ActBuyFixedAmount:    true,
	ActSellFixedAmount:   true,
	ActBuyShares:         true,
	ActSellShares:        true,
	ActSellAll:           true,
	ActBuyFormulaAmount:  true,
	ActBuyFormulaShares:  true,
	ActBuyFormulaPercent: true,
	ActSellFormulaAmount: true,
	ActSellFormulaShares: true,
	ActSellFormulaPct:    true,
	ActHold:              true,
}

// ValidConditionKind reports whether kind is a recognized condition.
func ValidConditionKind(kind ConditionKind) bool { return conditionKinds[kind] }

// ValidActionKind reports whether kind is a recognized action.
func ValidActionKind(kind ActionKind) bool { return actionKinds[kind] }

// Compile validates the strategy and resolves its implicit block
// grouping into explicit rules. It rejects, before any simulation:
//
//   - an order that is not a permutation of the block IDs,
//   - unknown condition/action kinds or invalid directions,
//   - action blocks that precede the first condition block (they could
//     never execute).
//
// Disabled condition blocks still terminate the preceding group; their
// own group is dropped. Disabled action blocks are dropped from their
// group.
func (s *Strategy) Compile() ([]Rule, error) {
	byID := make(map[string]*RuleBlock, len(s.Blocks))
	for i := range s.Blocks {
		b := &s.Blocks[i]
		if b.ID == "" {
			return nil, fmt.Errorf("strategy %q: block %d has no id", s.Name, i)
		}
		if _, dup := byID[b.ID]; dup {
			return nil, fmt.Errorf("strategy %q: duplicate block id %q", s.Name, b.ID)
		}
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("strategy %q: %w", s.Name, err)
		}
		byID[b.ID] = b
	}

	if len(s.Order) != len(s.Blocks) {
		return nil, fmt.Errorf("strategy %q: order lists %d ids for %d blocks", s.Name, len(s.Order), len(s.Blocks))
	}
	seen := make(map[string]bool, len(s.Order))
	for _, id := range s.Order {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("strategy %q: order references unknown block %q", s.Name, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("strategy %q: order repeats block %q", s.Name, id)
		}
		seen[id] = true
	}

	var rules []Rule
	var cur *Rule
	for _, id := range s.Order {
		b := byID[id]
		switch b.Kind {
		case BlockCondition:
			if cur != nil && cur.Condition.Enabled {
				rules = append(rules, *cur)
			}
			cur = &Rule{Condition: *b}
		case BlockAction:
			if cur == nil {
				return nil, fmt.Errorf("strategy %q: action block %q precedes every condition", s.Name, b.ID)
			}
			if b.Enabled {
				cur.Actions = append(cur.Actions, *b)
			}
		}
	}
	if cur != nil && cur.Condition.Enabled {
		rules = append(rules, *cur)
	}
	return rules, nil
}

// validate checks a single block's kind and parameters.
func (b *RuleBlock) validate() error {
	switch b.Kind {
	case BlockCondition:
		if !ValidConditionKind(b.Condition) {
			return fmt.Errorf("block %q: condition %q: %w", b.ID, b.Condition, ErrUnknownKind)
		}
		switch b.Condition {
		case CondClosePriceChange, CondHighPriceChange, CondLowPriceChange, CondPriceChangeRange:
			if d := b.ConditionParams.Direction; d != DirectionUp && d != DirectionDown {
				return fmt.Errorf("block %q: invalid direction %q", b.ID, d)
			}
		}
	case BlockAction:
		if !ValidActionKind(b.Action) {
			return fmt.Errorf("block %q: action %q: %w", b.ID, b.Action, ErrUnknownKind)
		}
	default:
		return fmt.Errorf("block %q: kind %q: %w", b.ID, b.Kind, ErrUnknownKind)
	}
	return nil
}
