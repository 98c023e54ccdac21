package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentLineItem is one client charge within a payment
type PaymentLineItem struct {
	shared.BaseEntity
	RemoteID             string          `json:"remote_id"`
	ClientName           string          `json:"client_name"`
	PlanReference        string          `json:"plan_reference"`
	AgencyCode           string          `json:"agency_code,omitempty"`
	FeeCategory          string          `json:"fee_category"`
	Amount               decimal.Decimal `json:"amount"`
	Status               LineItemStatus  `json:"status"`
	MatchedExpectationID *uuid.UUID      `json:"matched_expectation_id,omitempty"`
	Notes                string          `json:"notes,omitempty"`
}

// NewPaymentLineItem creates a new unmatched line item
func NewPaymentLineItem(remoteID, clientName, planReference string, amount decimal.Decimal) *PaymentLineItem {
	return &PaymentLineItem{
		BaseEntity:    shared.NewBaseEntity(),
		RemoteID:      remoteID,
		ClientName:    clientName,
		PlanReference: planReference,
		Amount:        amount,
		Status:        LineItemStatusUnmatched,
	}
}

// JoinKey returns the trimmed plan reference used for automatic pairing
func (li *PaymentLineItem) JoinKey() string {
	return strings.TrimSpace(li.PlanReference)
}

// IsOpen returns true if the line item still needs a decision
func (li *PaymentLineItem) IsOpen() bool {
	return li.Status == LineItemStatusUnmatched
}

func (li *PaymentLineItem) markMatched(expectationID uuid.UUID, notes string) {
	id := expectationID
	li.Status = LineItemStatusMatched
	li.MatchedExpectationID = &id
	if notes != "" {
		li.Notes = notes
	}
	li.Touch()
}

func (li *PaymentLineItem) approveUnmatched(notes string) {
	li.Status = LineItemStatusApprovedUnmatched
	li.MatchedExpectationID = nil
	li.Notes = notes
	li.Touch()
}

// Payment is one bank transfer received from a provider
type Payment struct {
	shared.BaseEntity
	RemoteID         string             `json:"remote_id"`
	ProviderName     string             `json:"provider_name"`
	PaymentReference string             `json:"payment_reference"`
	Amount           decimal.Decimal    `json:"amount"`
	PaymentDate      time.Time          `json:"payment_date"`
	ReconciledAmount decimal.Decimal    `json:"reconciled_amount"`
	RemainingAmount  decimal.Decimal    `json:"remaining_amount"`
	Status           PaymentStatus      `json:"status"`
	LineItems        []*PaymentLineItem `json:"line_items"`
	Notes            string             `json:"notes,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CompletedBy      string             `json:"completed_by,omitempty"`
}

// NewPayment creates a new unreconciled payment
func NewPayment(
	remoteID string,
	providerName string,
	paymentReference string,
	amount decimal.Decimal,
	paymentDate time.Time,
	lineItems []*PaymentLineItem,
) (*Payment, error) {
	if strings.TrimSpace(providerName) == "" {
		return nil, shared.NewDomainError("INVALID_PROVIDER", "Provider name cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}
	if lineItems == nil {
		lineItems = make([]*PaymentLineItem, 0)
	}

	p := &Payment{
		BaseEntity:       shared.NewBaseEntity(),
		RemoteID:         remoteID,
		ProviderName:     providerName,
		PaymentReference: paymentReference,
		Amount:           amount,
		PaymentDate:      paymentDate,
		ReconciledAmount: decimal.Zero,
		RemainingAmount:  amount,
		Status:           PaymentStatusUnreconciled,
		LineItems:        lineItems,
	}
	return p, nil
}

// FindLineItem returns the line item with the given id, or nil
func (p *Payment) FindLineItem(id uuid.UUID) *PaymentLineItem {
	for _, li := range p.LineItems {
		if li.ID == id {
			return li
		}
	}
	return nil
}

// OpenLineItems returns the unmatched line items in collection order
func (p *Payment) OpenLineItems() []*PaymentLineItem {
	open := make([]*PaymentLineItem, 0, len(p.LineItems))
	for _, li := range p.LineItems {
		if li.IsOpen() {
			open = append(open, li)
		}
	}
	return open
}

// AllLineItemsTerminal returns true if every line item is matched or approved unmatched
func (p *Payment) AllLineItemsTerminal() bool {
	for _, li := range p.LineItems {
		if !li.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// applyReconciled adds a committed amount and refreshes the running totals and status
func (p *Payment) applyReconciled(amount decimal.Decimal) {
	p.ReconciledAmount = p.ReconciledAmount.Add(amount)
	p.RemainingAmount = p.Amount.Sub(p.ReconciledAmount)
	p.refreshStatus()
}

func (p *Payment) refreshStatus() {
	if p.AllLineItemsTerminal() {
		p.Status = PaymentStatusReconciled
	} else {
		p.Status = PaymentStatusInProgress
	}
	p.Touch()
}

// approveLineItem marks one open line item as approved without a match
func (p *Payment) approveLineItem(lineItemID uuid.UUID, notes string) (*PaymentLineItem, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, shared.NewDomainError("NOTES_REQUIRED", "Notes are required to approve a line item without a match")
	}
	li := p.FindLineItem(lineItemID)
	if li == nil {
		return nil, shared.NewDomainError("LINE_ITEM_NOT_FOUND", fmt.Sprintf("Line item %s not found on payment", lineItemID))
	}
	if !li.IsOpen() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot approve line item in %s status", li.Status))
	}
	li.approveUnmatched(notes)
	p.refreshStatus()
	return li, nil
}

// markFullyReconciled approves every open line item and closes the payment
func (p *Payment) markFullyReconciled(notes, actor string, now time.Time) (int, error) {
	if strings.TrimSpace(notes) == "" {
		return 0, shared.NewDomainError("NOTES_REQUIRED", "Notes are required to complete a payment")
	}
	if p.Status == PaymentStatusReconciled && p.CompletedAt != nil {
		return 0, shared.NewDomainError("INVALID_STATE", "Payment is already completed")
	}

	open := p.OpenLineItems()
	for _, li := range open {
		li.approveUnmatched(notes)
	}
	approved := len(open)

	p.Status = PaymentStatusReconciled
	p.Notes = notes
	p.CompletedAt = &now
	p.CompletedBy = actor
	p.UpdatedAt = now
	return approved, nil
}

// Clone returns a deep copy safe to hand outside the session
func (p *Payment) Clone() *Payment {
	cp := *p
	cp.LineItems = make([]*PaymentLineItem, len(p.LineItems))
	for i, li := range p.LineItems {
		item := *li
		if li.MatchedExpectationID != nil {
			id := *li.MatchedExpectationID
			item.MatchedExpectationID = &id
		}
		cp.LineItems[i] = &item
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
