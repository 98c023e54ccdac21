package reconciliation

import (
	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeSession is the aggregate type recorded on session events
const AggregateTypeSession = "ReconciliationSession"

// Event type names
const (
	EventTypeDataLoaded                = "ReconciliationDataLoaded"
	EventTypePaymentSelected           = "PaymentSelected"
	EventTypeLineItemSelected          = "LineItemSelected"
	EventTypePendingMatchStaged        = "PendingMatchStaged"
	EventTypePendingMatchRemoved       = "PendingMatchRemoved"
	EventTypePendingMatchesCleared     = "PendingMatchesCleared"
	EventTypeToleranceChanged          = "ToleranceChanged"
	EventTypePrescreenPassCompleted    = "PrescreenPassCompleted"
	EventTypeMatchConfirmed            = "MatchConfirmed"
	EventTypeLineItemApprovedUnmatched = "LineItemApprovedUnmatched"
	EventTypePaymentReconciled         = "PaymentReconciled"
	EventTypeExpectationInvalidated    = "ExpectationInvalidated"
	EventTypePairingsSynced            = "PairingsSynced"
)

// DataLoadedEvent is raised when the session's payments and expectations are replaced
type DataLoadedEvent struct {
	shared.BaseDomainEvent
	PaymentCount     int `json:"payment_count"`
	ExpectationCount int `json:"expectation_count"`
}

// PaymentSelectedEvent is raised when the working payment changes
type PaymentSelectedEvent struct {
	shared.BaseDomainEvent
	PaymentID         uuid.UUID  `json:"payment_id"`
	PreviousPaymentID *uuid.UUID `json:"previous_payment_id,omitempty"`
	ClearedPending    int        `json:"cleared_pending"`
}

// LineItemSelectedEvent is raised when the highlighted line item changes.
// A nil LineItemID means the selection was cleared.
type LineItemSelectedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID  `json:"payment_id"`
	LineItemID *uuid.UUID `json:"line_item_id,omitempty"`
}

// PendingMatchStagedEvent is raised when a pairing is staged
type PendingMatchStagedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID    `json:"payment_id"`
	PendingMatch PendingMatch `json:"pending_match"`
}

// PendingMatchRemovedEvent is raised when a staged pairing is withdrawn
type PendingMatchRemovedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID    `json:"payment_id"`
	PendingMatch PendingMatch `json:"pending_match"`
}

// PendingMatchesClearedEvent is raised when the staging set is emptied
type PendingMatchesClearedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	Count     int       `json:"count"`
}

// ToleranceChangedEvent is raised when the session tolerance changes
type ToleranceChangedEvent struct {
	shared.BaseDomainEvent
	Previous Tolerance `json:"previous"`
	Current  Tolerance `json:"current"`
}

// PrescreenPassCompletedEvent is raised after each prescreening pass
type PrescreenPassCompletedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID     `json:"payment_id"`
	Pass      PrescreenPass `json:"pass"`
}

// MatchConfirmedEvent is raised when staged pairings are committed.
// It carries snapshots of every record the commit touched.
type MatchConfirmedEvent struct {
	shared.BaseDomainEvent
	Match        *Match         `json:"match"`
	Payment      *Payment       `json:"payment"`
	Expectations []*Expectation `json:"expectations"`
}

// LineItemApprovedUnmatchedEvent is raised when a line item is closed without a match
type LineItemApprovedUnmatchedEvent struct {
	shared.BaseDomainEvent
	Payment    *Payment  `json:"payment"`
	LineItemID uuid.UUID `json:"line_item_id"`
	Notes      string    `json:"notes"`
}

// PaymentReconciledEvent is raised when a payment is explicitly completed
type PaymentReconciledEvent struct {
	shared.BaseDomainEvent
	Payment       *Payment        `json:"payment"`
	ApprovedCount int             `json:"approved_count"`
	Unreconciled  decimal.Decimal `json:"unreconciled_amount"`
}

// ExpectationInvalidatedEvent is raised when an expectation is excluded from matching
type ExpectationInvalidatedEvent struct {
	shared.BaseDomainEvent
	Expectation *Expectation `json:"expectation"`
}

// PairingsSyncedEvent is raised when pairings are acknowledged by the system of record
type PairingsSyncedEvent struct {
	shared.BaseDomainEvent
	PairingIDs []uuid.UUID `json:"pairing_ids"`
}
