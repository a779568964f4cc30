package strategy

import "backsim/internal/domain"

// EvalCondition reports whether the condition holds for the current bar.
// prev is nil on the first bar of a run; every change-based condition
// then evaluates to false. Unknown kinds also evaluate to false;
// strategies are expected to have been validated before a run starts.
func EvalCondition(kind ConditionKind, params ConditionParams, cur domain.Bar, prev *domain.Bar) bool {
	switch kind {
	case CondAlways:
		return true

	case CondClosePriceChange:
		if prev == nil {
			return false
		}
		return directionalChange(pctChange(cur.Close, prev.Close), params)

	case CondHighPriceChange:
		if prev == nil {
			return false
		}
		return directionalChange(pctChange(cur.High, prev.High), params)

	case CondLowPriceChange:
		if prev == nil {
			return false
		}
		return directionalChange(pctChange(cur.Low, prev.Low), params)

	case CondPriceChangeRange:
		if prev == nil {
			return false
		}
		change := pctChange(cur.Close, prev.Close)
		if params.Direction == DirectionDown {
			return change >= -params.MaxPercent && change <= -params.MinPercent
		}
		return change >= params.MinPercent && change <= params.MaxPercent

	case CondPriceValueRange:
		return cur.Close >= params.MinPrice && cur.Close <= params.MaxPrice

	default:
		return false
	}
}

// pctChange returns the percent change of cur vs prev, 0 when prev is 0.
func pctChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// directionalChange applies the threshold test: up requires
// change >= threshold, down requires change <= -threshold.
func directionalChange(change float64, params ConditionParams) bool {
	if params.Direction == DirectionDown {
		return change <= -params.ThresholdPercent
	}
	return change >= params.ThresholdPercent
}
