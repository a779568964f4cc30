package strategy

import (
	"math"
	"time"

	"backsim/internal/domain"
	"backsim/internal/formula"
)

// Account is the mutable cash/share state an action executes against.
// The executor performs all affordability checks before calling ApplyBuy
// or ApplySell; implementations never reject a call on their own.
type Account interface {
	Cash() float64
	Shares() int64
	ApplyBuy(qty int64, price, commission float64)
	ApplySell(qty int64, price, commission float64)
}

// ExecContext carries the per-bar inputs an action needs: the quoted
// price, the bar's percent close change (the formula variable N), and
// the run's cost parameters.
type ExecContext struct {
	Symbol         string
	Timestamp      time.Time
	Price          float64
	PctChange      float64
	CommissionRate float64
	SlippageRate   float64
}

// ExecuteAction applies the action against the account and returns the
// resulting trade, or nil when the action produced none: hold actions,
// unknown kinds, formula errors or non-positive formula results, and
// trades the account cannot afford all skip silently and the run
// continues.
//
// Fills are adjusted for slippage: buys fill at price*(1+slippageRate),
// sells at price*(1-slippageRate). Commission is charged on the slipped
// notional.
func ExecuteAction(kind ActionKind, params ActionParams, ec ExecContext, acct Account) *domain.Trade {
	switch kind {
	case ActBuyPercentCash:
		return buyPercent(params.Percent, ec, acct)
	case ActSellPercentStock:
		return sellPercent(params.Percent, ec, acct)
	case ActBuyFixedAmount:
		return buyAmount(params.Amount, ec, acct)
	case ActSellFixedAmount:
		return sellAmount(params.Amount, ec, acct)
	case ActBuyShares:
		return buyShares(params.Shares, ec, acct)
	case ActSellShares:
		return sellShares(params.Shares, ec, acct)
	case ActSellAll:
		return sellShares(acct.Shares(), ec, acct)

	case ActBuyFormulaAmount:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return buyAmount(v, ec, acct)
	case ActBuyFormulaShares:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return buyShares(int64(math.Floor(v)), ec, acct)
	case ActBuyFormulaPercent:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return buyPercent(v, ec, acct)
	case ActSellFormulaAmount:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return sellAmount(v, ec, acct)
	case ActSellFormulaShares:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return sellShares(int64(math.Floor(v)), ec, acct)
	case ActSellFormulaPct:
		v, ok := evalFormula(params.Formula, ec)
		if !ok {
			return nil
		}
		return sellPercent(v, ec, acct)

	case ActHold:
		return nil
	default:
		return nil
	}
}

// evalFormula evaluates the formula with N bound to the bar's percent
// close change. A parse/eval error or non-positive result means the
// action produces no trade.
func evalFormula(src string, ec ExecContext) (float64, bool) {
	v, err := formula.Eval(src, ec.PctChange)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// buyFill and sellFill apply the slippage penalty to the quoted price.
func buyFill(ec ExecContext) float64  { return ec.Price * (1 + ec.SlippageRate) }
func sellFill(ec ExecContext) float64 { return ec.Price * (1 - ec.SlippageRate) }

// buyPercent spends pct percent of current cash.
func buyPercent(pct float64, ec ExecContext, acct Account) *domain.Trade {
	if pct <= 0 {
		return nil
	}
	return buyAmount(acct.Cash()*pct/100, ec, acct)
}

// buyAmount buys as many whole shares as amount covers after commission.
func buyAmount(amount float64, ec ExecContext, acct Account) *domain.Trade {
	if amount <= 0 || amount > acct.Cash() {
		return nil
	}
	fill := buyFill(ec)
	if fill <= 0 {
		return nil
	}
	estCommission := amount * ec.CommissionRate
	qty := int64(math.Floor((amount - estCommission) / fill))
	if qty <= 0 {
		return nil
	}
	return settleBuy(qty, fill, ec, acct)
}

// buyShares buys a fixed share count if total cost fits in cash.
func buyShares(qty int64, ec ExecContext, acct Account) *domain.Trade {
	if qty <= 0 {
		return nil
	}
	return settleBuy(qty, buyFill(ec), ec, acct)
}

func settleBuy(qty int64, fill float64, ec ExecContext, acct Account) *domain.Trade {
	gross := float64(qty) * fill
	commission := gross * ec.CommissionRate
	if gross+commission > acct.Cash() {
		return nil
	}
	acct.ApplyBuy(qty, fill, commission)
	return &domain.Trade{
		ID:          domain.NewTradeID(),
		Symbol:      ec.Symbol,
		Timestamp:   ec.Timestamp,
		Side:        domain.TradeSideBuy,
		Quantity:    qty,
		Price:       fill,
		Commission:  commission,
		GrossAmount: gross,
	}
}

// sellPercent sells pct percent of held shares, floored to whole shares.
func sellPercent(pct float64, ec ExecContext, acct Account) *domain.Trade {
	if pct <= 0 {
		return nil
	}
	qty := int64(math.Floor(float64(acct.Shares()) * pct / 100))
	return sellShares(qty, ec, acct)
}

// sellAmount sells floor(amount/price) shares.
func sellAmount(amount float64, ec ExecContext, acct Account) *domain.Trade {
	fill := sellFill(ec)
	if amount <= 0 || fill <= 0 {
		return nil
	}
	qty := int64(math.Floor(amount / fill))
	return sellShares(qty, ec, acct)
}

// sellShares sells a fixed share count if that many shares are held.
func sellShares(qty int64, ec ExecContext, acct Account) *domain.Trade {
	if qty <= 0 || qty > acct.Shares() {
		return nil
	}
	fill := sellFill(ec)
	gross := float64(qty) * fill
	commission := gross * ec.CommissionRate
	acct.ApplySell(qty, fill, commission)
	return &domain.Trade{
		ID:          domain.NewTradeID(),
		Symbol:      ec.Symbol,
		Timestamp:   ec.Timestamp,
		Side:        domain.TradeSideSell,
		Quantity:    qty,
		Price:       fill,
		Commission:  commission,
		GrossAmount: gross,
	}
}
