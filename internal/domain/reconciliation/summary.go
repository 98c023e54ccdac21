package reconciliation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSummary is a read-only progress view of one payment
type PaymentSummary struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	Status           PaymentStatus   `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	ReconciledAmount decimal.Decimal `json:"reconciled_amount"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount"`
	LineItemCount    int             `json:"line_item_count"`
	MatchedCount     int             `json:"matched_count"`
	ApprovedCount    int             `json:"approved_unmatched_count"`
	UnmatchedCount   int             `json:"unmatched_count"`
	PendingCount     int             `json:"pending_count"`
	PendingLineTotal decimal.Decimal `json:"pending_line_item_total"`
	PendingExpected  decimal.Decimal `json:"pending_expected_total"`
	PrescreenAdvised bool            `json:"prescreen_recommended"`
	UnsyncedPairings int             `json:"unsynced_pairings"`
}

// Summary builds the progress view for a payment. Pending figures are only
// populated for the working payment.
func (s *Session) Summary(paymentID uuid.UUID) (*PaymentSummary, error) {
	p, ok := s.paymentIdx[paymentID]
	if !ok {
		return nil, paymentNotFound(paymentID)
	}
	sum := &PaymentSummary{
		PaymentID:        p.ID,
		Status:           p.Status,
		Amount:           p.Amount,
		ReconciledAmount: p.ReconciledAmount,
		RemainingAmount:  p.RemainingAmount,
		LineItemCount:    len(p.LineItems),
		PendingLineTotal: decimal.Zero,
		PendingExpected:  decimal.Zero,
		PrescreenAdvised: len(p.LineItems) >= s.prescreenThreshold,
	}
	for _, li := range p.LineItems {
		switch li.Status {
		case LineItemStatusMatched:
			sum.MatchedCount++
		case LineItemStatusApprovedUnmatched:
			sum.ApprovedCount++
		default:
			sum.UnmatchedCount++
		}
	}
	if s.selectedPaymentID != nil && *s.selectedPaymentID == paymentID {
		sum.PendingCount = s.pending.Len()
		sum.PendingLineTotal, sum.PendingExpected = s.pending.Totals()
	}
	for _, m := range s.matches {
		if m.PaymentID == paymentID {
			sum.UnsyncedPairings += len(m.UnsyncedPairings())
		}
	}
	return sum, nil
}
