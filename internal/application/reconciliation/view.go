package reconciliation

import (
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionView is a read-only snapshot of the session for the outer surface
type SessionView struct {
	Tolerance          reconciliation.Tolerance       `json:"tolerance"`
	Actor              string                         `json:"actor"`
	SelectedPaymentID  *uuid.UUID                     `json:"selected_payment_id,omitempty"`
	SelectedLineItemID *uuid.UUID                     `json:"selected_line_item_id,omitempty"`
	Payments           []*reconciliation.Payment      `json:"payments"`
	Expectations       []*reconciliation.Expectation  `json:"expectations"`
	Matches            []*reconciliation.Match        `json:"matches"`
	PendingMatches     []reconciliation.PendingMatch  `json:"pending_matches"`
	PendingLineTotal   decimal.Decimal                `json:"pending_line_item_total"`
	PendingExpected    decimal.Decimal                `json:"pending_expected_total"`
	Summary            *reconciliation.PaymentSummary `json:"summary,omitempty"`
	UnsyncedPairings   int                            `json:"unsynced_pairings"`
}

func buildView(s *reconciliation.Session) *SessionView {
	lineTotal, expectedTotal := s.PendingTotals()
	v := &SessionView{
		Tolerance:          s.Tolerance(),
		Actor:              s.Actor(),
		SelectedLineItemID: s.SelectedLineItemID(),
		Payments:           s.Payments(),
		Expectations:       s.Expectations(),
		Matches:            s.Matches(),
		PendingMatches:     s.PendingMatches(),
		PendingLineTotal:   lineTotal,
		PendingExpected:    expectedTotal,
		UnsyncedPairings:   len(s.UnsyncedPairings()),
	}
	if p := s.SelectedPayment(); p != nil {
		id := p.ID
		v.SelectedPaymentID = &id
		if summary, err := s.Summary(id); err == nil {
			v.Summary = summary
		}
	}
	return v
}
