package reconciliation

import (
	"encoding/json"
	"fmt"

	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultTolerancePercent is the session tolerance used when none is configured
const DefaultTolerancePercent = 5

// Tolerance is a maximum acceptable absolute variance percentage.
// The zero value is a 0% tolerance; an infinite tolerance accepts any variance.
type Tolerance struct {
	percent  decimal.Decimal
	infinite bool
}

// NewTolerance creates a finite tolerance of the given percent
func NewTolerance(percent decimal.Decimal) (Tolerance, error) {
	if percent.IsNegative() {
		return Tolerance{}, shared.NewDomainError("INVALID_TOLERANCE", "Tolerance cannot be negative")
	}
	return Tolerance{percent: percent}, nil
}

// TolerancePercent creates a finite tolerance from a whole percent; negative values clamp to zero
func TolerancePercent(percent int64) Tolerance {
	if percent < 0 {
		percent = 0
	}
	return Tolerance{percent: decimal.NewFromInt(percent)}
}

// InfiniteTolerance returns a tolerance that accepts any variance
func InfiniteTolerance() Tolerance {
	return Tolerance{infinite: true}
}

// IsInfinite reports whether the tolerance accepts any variance
func (t Tolerance) IsInfinite() bool {
	return t.infinite
}

// Percent returns the finite percent; meaningless when IsInfinite
func (t Tolerance) Percent() decimal.Decimal {
	return t.percent
}

// Allows reports whether |variancePercentage| <= tolerance
func (t Tolerance) Allows(variancePercentage decimal.Decimal) bool {
	if t.infinite {
		return true
	}
	return variancePercentage.Abs().LessThanOrEqual(t.percent)
}

// Equal reports whether two tolerances are the same
func (t Tolerance) Equal(other Tolerance) bool {
	if t.infinite || other.infinite {
		return t.infinite == other.infinite
	}
	return t.percent.Equal(other.percent)
}

// String renders the tolerance as "5%" or "∞"
func (t Tolerance) String() string {
	if t.infinite {
		return "∞"
	}
	return fmt.Sprintf("%s%%", t.percent.String())
}

// ParseTolerance parses the String form back into a Tolerance
func ParseTolerance(s string) (Tolerance, error) {
	switch s {
	case "∞", "inf", "infinite", "any":
		return InfiniteTolerance(), nil
	}
	if n := len(s); n > 0 && s[n-1] == '%' {
		s = s[:n-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Tolerance{}, shared.NewDomainError("INVALID_TOLERANCE", fmt.Sprintf("Invalid tolerance %q", s))
	}
	return NewTolerance(d)
}

// MarshalJSON renders the tolerance as its String form
func (t Tolerance) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts either a number of percent or a string such as "5%" or "∞"
func (t *Tolerance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var d decimal.Decimal
		if err := d.UnmarshalJSON(data); err != nil {
			return err
		}
		parsed, err := NewTolerance(d)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	parsed, err := ParseTolerance(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ToleranceLadder is the ordered set of tolerances applied by prescreening
type ToleranceLadder []Tolerance

// DefaultToleranceLadder returns the fixed prescreening ladder [0%, 1%, 5%, 10%, 25%, ∞]
func DefaultToleranceLadder() ToleranceLadder {
	return ToleranceLadder{
		TolerancePercent(0),
		TolerancePercent(1),
		TolerancePercent(5),
		TolerancePercent(10),
		TolerancePercent(25),
		InfiniteTolerance(),
	}
}

// Strings renders every rung of the ladder
func (l ToleranceLadder) Strings() []string {
	out := make([]string, len(l))
	for i, t := range l {
		out[i] = t.String()
	}
	return out
}
