package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingMatch is an unconfirmed in-session pairing of one line item with one expectation
type PendingMatch struct {
	LineItemID         uuid.UUID       `json:"line_item_id"`
	ExpectationID      uuid.UUID       `json:"expectation_id"`
	LineItemAmount     decimal.Decimal `json:"line_item_amount"`
	ExpectedAmount     decimal.Decimal `json:"expected_amount"`
	Variance           decimal.Decimal `json:"variance"`
	VariancePercentage decimal.Decimal `json:"variance_percentage"`
	IsWithinTolerance  bool            `json:"is_within_tolerance"`
	Method             MatchMethod     `json:"method"`
	StagedAt           time.Time       `json:"staged_at"`
}

func newPendingMatch(li *PaymentLineItem, exp *Expectation, tolerance Tolerance, method MatchMethod, now time.Time) PendingMatch {
	v := Evaluate(li.Amount, exp.ExpectedAmount, tolerance)
	return PendingMatch{
		LineItemID:         li.ID,
		ExpectationID:      exp.ID,
		LineItemAmount:     v.LineItemAmount,
		ExpectedAmount:     v.ExpectedAmount,
		Variance:           v.Amount,
		VariancePercentage: v.Percentage,
		IsWithinTolerance:  v.IsWithinTolerance,
		Method:             method,
		StagedAt:           now,
	}
}

// Pairing is the confirmed allocation of one line item to one expectation.
// It is the unit pushed to the system of record and tracked for sync.
type Pairing struct {
	ID                  uuid.UUID       `json:"id"`
	MatchID             uuid.UUID       `json:"match_id"`
	PaymentID           uuid.UUID       `json:"payment_id"`
	PaymentRemoteID     string          `json:"payment_remote_id"`
	LineItemID          uuid.UUID       `json:"line_item_id"`
	LineItemRemoteID    string          `json:"line_item_remote_id"`
	ExpectationID       uuid.UUID       `json:"expectation_id"`
	ExpectationRemoteID string          `json:"expectation_remote_id"`
	LineItemAmount      decimal.Decimal `json:"line_item_amount"`
	ExpectedAmount      decimal.Decimal `json:"expected_amount"`
	Variance            decimal.Decimal `json:"variance"`
	VariancePercentage  decimal.Decimal `json:"variance_percentage"`
	Quality             MatchQuality    `json:"quality"`
	Method              MatchMethod     `json:"method"`
	Notes               string          `json:"notes"`
	Actor               string          `json:"actor"`
	MatchedAt           time.Time       `json:"matched_at"`
	Synced              bool            `json:"synced"`
	SyncedAt            *time.Time      `json:"synced_at,omitempty"`
}

// Match is the permanent record of pairings confirmed together
type Match struct {
	ID                  uuid.UUID       `json:"id"`
	PaymentID           uuid.UUID       `json:"payment_id"`
	ExpectationIDs      []uuid.UUID     `json:"expectation_ids"`
	TotalMatchedAmount  decimal.Decimal `json:"total_matched_amount"`
	TotalExpectedAmount decimal.Decimal `json:"total_expected_amount"`
	Variance            decimal.Decimal `json:"variance"`
	VariancePercentage  decimal.Decimal `json:"variance_percentage"`
	Type                MatchType       `json:"match_type"`
	Method              MatchMethod     `json:"match_method"`
	Quality             MatchQuality    `json:"match_quality"`
	Notes               string          `json:"notes"`
	Actor               string          `json:"actor"`
	MatchedAt           time.Time       `json:"matched_at"`
	Confirmed           bool            `json:"confirmed"`
	Pairings            []Pairing       `json:"pairings"`
}

// UnsyncedPairings returns pairings not yet pushed to the system of record
func (m *Match) UnsyncedPairings() []Pairing {
	out := make([]Pairing, 0, len(m.Pairings))
	for _, p := range m.Pairings {
		if !p.Synced {
			out = append(out, p)
		}
	}
	return out
}

// markSynced flags the given pairings as synced; returns how many changed
func (m *Match) markSynced(ids map[uuid.UUID]struct{}, now time.Time) int {
	changed := 0
	for i := range m.Pairings {
		if _, ok := ids[m.Pairings[i].ID]; ok && !m.Pairings[i].Synced {
			t := now
			m.Pairings[i].Synced = true
			m.Pairings[i].SyncedAt = &t
			changed++
		}
	}
	return changed
}

// Clone returns a deep copy safe to hand outside the session
func (m *Match) Clone() *Match {
	cp := *m
	cp.ExpectationIDs = append([]uuid.UUID(nil), m.ExpectationIDs...)
	cp.Pairings = append([]Pairing(nil), m.Pairings...)
	return &cp
}

// matchTypeFor returns the match type for the number of pairings confirmed together
func matchTypeFor(pairs int) MatchType {
	if pairs > 1 {
		return MatchTypeMulti
	}
	return MatchTypeFull
}

func newMatch(paymentID uuid.UUID, method MatchMethod, notes, actor string, now time.Time) *Match {
	return &Match{
		ID:             uuid.New(),
		PaymentID:      paymentID,
		ExpectationIDs: make([]uuid.UUID, 0),
		Method:         method,
		Notes:          notes,
		Actor:          actor,
		MatchedAt:      now,
		Confirmed:      true,
		Pairings:       make([]Pairing, 0),
	}
}

