package service

import (
	"tillshift/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// VarianceThresholds are percentages of the expected cash.
// |pct| <= Warn: balanced, <= Critical: warning, above: critical.
type VarianceThresholds struct {
	WarnPct     decimal.Decimal
	CriticalPct decimal.Decimal
}

func DefaultThresholds() VarianceThresholds {
	return VarianceThresholds{
		WarnPct:     decimal.NewFromInt(1),
		CriticalPct: decimal.NewFromInt(5),
	}
}

// Reconciliation is the close-time cash count result.
type Reconciliation struct {
	Expected    decimal.Decimal
	Variance    decimal.Decimal
	VariancePct decimal.Decimal
	Class       string
}

// Reconcile computes
//
//	variance = closing - (opening + floating + netCashMovement)
//
// in exact decimal arithmetic. VariancePct is relative to |expected| and
// rounded to 2 places; it is zero when expected is zero.
func Reconcile(opening, floating, net, closing decimal.Decimal, th VarianceThresholds) Reconciliation {
	expected := opening.Add(floating).Add(net)
	variance := closing.Sub(expected)

	var pct decimal.Decimal
	if !expected.IsZero() {
		pct = variance.Div(expected.Abs()).Mul(hundred).Round(2)
	}

	return Reconciliation{
		Expected:    expected,
		Variance:    variance,
		VariancePct: pct,
		Class:       classifyVariance(variance, expected, pct, th),
	}
}

func classifyVariance(variance, expected, pct decimal.Decimal, th VarianceThresholds) string {
	if variance.IsZero() {
		return model.VarianceBalanced
	}
	// any difference against an expected drawer of zero cannot be expressed as a percentage
	if expected.IsZero() {
		return model.VarianceCritical
	}
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(th.WarnPct):
		return model.VarianceBalanced
	case abs.LessThanOrEqual(th.CriticalPct):
		return model.VarianceWarning
	default:
		return model.VarianceCritical
	}
}

// maxScale is the number of decimal places a monetary input may carry.
const maxScale = 2

func tooPrecise(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(maxScale))
}
