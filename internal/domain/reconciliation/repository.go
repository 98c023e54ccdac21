package reconciliation

import (
	"context"

	"github.com/google/uuid"
)

// Mirror is a best-effort copy of session state kept outside the process.
// Every call reports success as a boolean; the session never depends on it.
type Mirror interface {
	// LoadAll returns the last mirrored payments, expectations and matches
	LoadAll(ctx context.Context) (Snapshot, bool)
	// SaveAll replaces the mirrored payments and expectations
	SaveAll(ctx context.Context, payments []*Payment, expectations []*Expectation) bool
	UpdateLineItem(ctx context.Context, paymentID uuid.UUID, lineItem *PaymentLineItem) bool
	UpdateExpectation(ctx context.Context, expectation *Expectation) bool
	UpdatePayment(ctx context.Context, payment *Payment) bool
	SaveMatch(ctx context.Context, match *Match) bool
	// SavePendingMatch records a confirmed pairing awaiting sync
	SavePendingMatch(ctx context.Context, pairing Pairing) bool
	// GetUnsyncedPendingMatches lists pairings not yet acknowledged remotely, oldest first
	GetUnsyncedPendingMatches(ctx context.Context) ([]Pairing, bool)
	MarkSynced(ctx context.Context, pairingIDs []uuid.UUID) bool
}
