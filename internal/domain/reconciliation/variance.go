package reconciliation

import (
	"github.com/feerecon/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// goodQualityPercent is the upper bound of a "good" match variance
	goodQualityPercent = decimal.NewFromInt(2)
)

// Variance is the comparison of a paid amount against an expected amount
type Variance struct {
	LineItemAmount    decimal.Decimal `json:"line_item_amount"`
	ExpectedAmount    decimal.Decimal `json:"expected_amount"`
	Amount            decimal.Decimal `json:"variance"`            // lineItemAmount - expectedAmount
	Percentage        decimal.Decimal `json:"variance_percentage"` // 0 when expectedAmount <= 0
	IsWithinTolerance bool            `json:"is_within_tolerance"`
}

// Evaluate computes the variance of a line item amount against an expected amount.
// A non-positive expected amount reports a 0% variance but only passes an infinite tolerance.
func Evaluate(lineItemAmount, expectedAmount decimal.Decimal, tolerance Tolerance) Variance {
	v := Variance{
		LineItemAmount: lineItemAmount,
		ExpectedAmount: expectedAmount,
		Amount:         lineItemAmount.Sub(expectedAmount),
		Percentage:     decimal.Zero,
	}
	if !expectedAmount.IsPositive() {
		v.IsWithinTolerance = tolerance.IsInfinite()
		return v
	}
	v.Percentage = v.Amount.Div(expectedAmount).Mul(hundred)
	v.IsWithinTolerance = tolerance.Allows(v.Percentage)
	return v
}

// IsExact reports whether the variance is below half the smallest currency unit
func (v Variance) IsExact() bool {
	return valueobject.NewMoneyGBP(v.Amount).IsNegligible()
}

// HasUsableDenominator reports whether the expected amount supports a percentage variance
func (v Variance) HasUsableDenominator() bool {
	return v.ExpectedAmount.IsPositive()
}

// ClassifyQuality grades an aggregate variance against the session tolerance.
// Without a positive expected amount the percentage says nothing, so any
// inexact pairing is a warning.
func ClassifyQuality(v Variance, tolerance Tolerance) MatchQuality {
	pct := v.Percentage.Abs()
	switch {
	case v.IsExact() && pct.IsZero():
		return MatchQualityPerfect
	case !v.HasUsableDenominator():
		return MatchQualityWarning
	case pct.LessThanOrEqual(goodQualityPercent):
		return MatchQualityGood
	case tolerance.Allows(pct):
		return MatchQualityAcceptable
	default:
		return MatchQualityWarning
	}
}
