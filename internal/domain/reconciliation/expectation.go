package reconciliation

import (
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpectationAllocation records part of a payment applied to an expectation
type ExpectationAllocation struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	LineItemID  uuid.UUID       `json:"line_item_id"`
	MatchID     uuid.UUID       `json:"match_id"`
	Amount      decimal.Decimal `json:"amount"`
	AllocatedAt time.Time       `json:"allocated_at"`
}

// Expectation is one predicted fee awaiting a payment line item
type Expectation struct {
	shared.BaseEntity
	RemoteID           string                  `json:"remote_id"`
	ClientName         string                  `json:"client_name"`
	PlanReference      string                  `json:"plan_reference"`
	ExpectedAmount     decimal.Decimal         `json:"expected_amount"`
	CalculationDate    time.Time               `json:"calculation_date"`
	FeeCategory        string                  `json:"fee_category"`
	FeeType            string                  `json:"fee_type"`
	ProviderName       string                  `json:"provider_name"`
	AdviserName        string                  `json:"adviser_name"`
	GroupingCompany    string                  `json:"grouping_company"`
	Status             ExpectationStatus       `json:"status"`
	AllocatedAmount    decimal.Decimal         `json:"allocated_amount"`
	RemainingAmount    decimal.Decimal         `json:"remaining_amount"`
	Allocations        []ExpectationAllocation `json:"allocations"`
	InvalidationReason string                  `json:"invalidation_reason,omitempty"`
	InvalidatedAt      *time.Time              `json:"invalidated_at,omitempty"`
	InvalidatedBy      string                  `json:"invalidated_by,omitempty"`
}

// NewExpectation creates a new unmatched expectation.
// Non-positive amounts are accepted and surfaced as a data-quality signal.
func NewExpectation(remoteID, clientName, planReference, providerName string, expectedAmount decimal.Decimal) *Expectation {
	return &Expectation{
		BaseEntity:      shared.NewBaseEntity(),
		RemoteID:        remoteID,
		ClientName:      clientName,
		PlanReference:   planReference,
		ProviderName:    providerName,
		ExpectedAmount:  expectedAmount,
		Status:          ExpectationStatusUnmatched,
		AllocatedAmount: decimal.Zero,
		RemainingAmount: expectedAmount,
		Allocations:     make([]ExpectationAllocation, 0),
	}
}

// JoinKey returns the trimmed plan reference used for automatic pairing
func (e *Expectation) JoinKey() string {
	return strings.TrimSpace(e.PlanReference)
}

// HasUsableAmount reports whether the expected amount can act as a variance denominator
func (e *Expectation) HasUsableAmount() bool {
	return e.ExpectedAmount.IsPositive()
}

// CanStage returns true if the expectation may be paired
func (e *Expectation) CanStage() bool {
	return e.Status.CanStage()
}

// BelongsTo reports whether the expectation was raised against the provider
func (e *Expectation) BelongsTo(providerName string) bool {
	return strings.TrimSpace(e.ProviderName) == strings.TrimSpace(providerName)
}

// allocate applies a matched line item amount and closes the expectation
func (e *Expectation) allocate(paymentID, lineItemID, matchID uuid.UUID, amount decimal.Decimal, now time.Time) {
	e.Allocations = append(e.Allocations, ExpectationAllocation{
		PaymentID:   paymentID,
		LineItemID:  lineItemID,
		MatchID:     matchID,
		Amount:      amount,
		AllocatedAt: now,
	})
	e.AllocatedAmount = amount
	e.RemainingAmount = decimal.Zero
	e.Status = ExpectationStatusMatched
	e.UpdatedAt = now
}

// invalidate marks the expectation as permanently excluded from matching
func (e *Expectation) invalidate(reason, actor string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("REASON_REQUIRED", "A reason is required to invalidate an expectation")
	}
	if e.Status == ExpectationStatusInvalidated {
		return shared.NewDomainError("INVALID_STATE", "Expectation is already invalidated")
	}
	e.Status = ExpectationStatusInvalidated
	e.InvalidationReason = reason
	e.InvalidatedAt = &now
	e.InvalidatedBy = actor
	e.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand outside the session
func (e *Expectation) Clone() *Expectation {
	cp := *e
	cp.Allocations = append([]ExpectationAllocation(nil), e.Allocations...)
	if e.InvalidatedAt != nil {
		t := *e.InvalidatedAt
		cp.InvalidatedAt = &t
	}
	return &cp
}
