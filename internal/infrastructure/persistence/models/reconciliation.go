package models

import (
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for a provider payment
type PaymentModel struct {
	BaseModel
	RemoteID         string          `gorm:"type:varchar(64);index"`
	ProviderName     string          `gorm:"type:varchar(200);not null;index"`
	PaymentReference string          `gorm:"type:varchar(200)"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaymentDate      time.Time
	ReconciledAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	RemainingAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	Notes            string          `gorm:"type:text"`
	CompletedAt      *time.Time
	CompletedBy      string          `gorm:"type:varchar(100)"`
	LineItems        []LineItemModel `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// LineItemModel is the persistence model for a payment line item
type LineItemModel struct {
	BaseModel
	PaymentID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position             int             `gorm:"not null"`
	RemoteID             string          `gorm:"type:varchar(64);index"`
	ClientName           string          `gorm:"type:varchar(200)"`
	PlanReference        string          `gorm:"type:varchar(100);index"`
	AgencyCode           string          `gorm:"type:varchar(50)"`
	FeeCategory          string          `gorm:"type:varchar(50)"`
	Amount               decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status               string          `gorm:"type:varchar(30);not null"`
	MatchedExpectationID *uuid.UUID      `gorm:"type:uuid"`
	Notes                string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "payment_line_items"
}

// ExpectationModel is the persistence model for an expected fee
type ExpectationModel struct {
	BaseModel
	RemoteID           string          `gorm:"type:varchar(64);index"`
	ClientName         string          `gorm:"type:varchar(200)"`
	PlanReference      string          `gorm:"type:varchar(100);index"`
	ExpectedAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CalculationDate    time.Time
	FeeCategory        string                                 `gorm:"type:varchar(50)"`
	FeeType            string                                 `gorm:"type:varchar(50)"`
	ProviderName       string                                 `gorm:"type:varchar(200);index"`
	AdviserName        string                                 `gorm:"type:varchar(200)"`
	GroupingCompany    string                                 `gorm:"type:varchar(200)"`
	Status             string                                 `gorm:"type:varchar(20);not null;index"`
	AllocatedAmount    decimal.Decimal                        `gorm:"type:decimal(18,2);not null"`
	RemainingAmount    decimal.Decimal                        `gorm:"type:decimal(18,2);not null"`
	Allocations        []reconciliation.ExpectationAllocation `gorm:"serializer:json;type:text"`
	InvalidationReason string                                 `gorm:"type:text"`
	InvalidatedAt      *time.Time
	InvalidatedBy      string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ExpectationModel) TableName() string {
	return "expectations"
}

// MatchModel is the persistence model for a confirmed match
type MatchModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ExpectationIDs      []uuid.UUID     `gorm:"serializer:json;type:text"`
	TotalMatchedAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalExpectedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Variance            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VariancePercentage  decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Type                string          `gorm:"type:varchar(20)"`
	Method              string          `gorm:"type:varchar(20)"`
	Quality             string          `gorm:"type:varchar(20)"`
	Notes               string          `gorm:"type:text"`
	Actor               string          `gorm:"type:varchar(100)"`
	MatchedAt           time.Time       `gorm:"not null;index"`
	Confirmed           bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (MatchModel) TableName() string {
	return "matches"
}

// PairingModel is the persistence model for a confirmed pairing awaiting or done with sync
type PairingModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	MatchID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID           uuid.UUID       `gorm:"type:uuid;not null"`
	PaymentRemoteID     string          `gorm:"type:varchar(64)"`
	LineItemID          uuid.UUID       `gorm:"type:uuid;not null"`
	LineItemRemoteID    string          `gorm:"type:varchar(64)"`
	ExpectationID       uuid.UUID       `gorm:"type:uuid;not null"`
	ExpectationRemoteID string          `gorm:"type:varchar(64)"`
	LineItemAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ExpectedAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Variance            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VariancePercentage  decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Quality             string          `gorm:"type:varchar(20)"`
	Method              string          `gorm:"type:varchar(20)"`
	Notes               string          `gorm:"type:text"`
	Actor               string          `gorm:"type:varchar(100)"`
	MatchedAt           time.Time       `gorm:"not null;index"`
	Synced              bool            `gorm:"not null;default:false;index"`
	SyncedAt            *time.Time
}

// TableName returns the table name for GORM
func (PairingModel) TableName() string {
	return "pending_matches"
}

// PropagationTaskModel is the persistence model for a queued remote status update
type PropagationTaskModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	Target              string          `gorm:"type:varchar(20);not null"`
	RemoteID            string          `gorm:"type:varchar(64);not null"`
	ExpectationRemoteID string          `gorm:"type:varchar(64)"`
	AllocatedAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	RemainingAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PairingIDs          []uuid.UUID     `gorm:"serializer:json;type:text"`
	State               string          `gorm:"type:varchar(30);not null;index"`
	Attempts            int             `gorm:"not null;default:0"`
	LastError           string          `gorm:"type:text"`
	UpdatedAt           time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PropagationTaskModel) TableName() string {
	return "propagation_tasks"
}

// All returns every model managed by the mirror, in migration order
func All() []any {
	return []any{
		&PaymentModel{},
		&LineItemModel{},
		&ExpectationModel{},
		&MatchModel{},
		&PairingModel{},
		&PropagationTaskModel{},
	}
}

// ---------------------------------------------------------------------------
// Mappers
// ---------------------------------------------------------------------------

// PaymentModelFromDomain converts a domain payment and its line items
func PaymentModelFromDomain(p *reconciliation.Payment) *PaymentModel {
	m := &PaymentModel{
		RemoteID:         p.RemoteID,
		ProviderName:     p.ProviderName,
		PaymentReference: p.PaymentReference,
		Amount:           p.Amount,
		PaymentDate:      p.PaymentDate,
		ReconciledAmount: p.ReconciledAmount,
		RemainingAmount:  p.RemainingAmount,
		Status:           string(p.Status),
		Notes:            p.Notes,
		CompletedAt:      p.CompletedAt,
		CompletedBy:      p.CompletedBy,
		LineItems:        make([]LineItemModel, 0, len(p.LineItems)),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	for i, li := range p.LineItems {
		m.LineItems = append(m.LineItems, *LineItemModelFromDomain(p.ID, i, li))
	}
	return m
}

// ToDomain converts the model back to a domain payment
func (m *PaymentModel) ToDomain() *reconciliation.Payment {
	p := &reconciliation.Payment{
		BaseEntity:       m.BaseModel.ToDomain(),
		RemoteID:         m.RemoteID,
		ProviderName:     m.ProviderName,
		PaymentReference: m.PaymentReference,
		Amount:           m.Amount,
		PaymentDate:      m.PaymentDate,
		ReconciledAmount: m.ReconciledAmount,
		RemainingAmount:  m.RemainingAmount,
		Status:           reconciliation.PaymentStatus(m.Status),
		Notes:            m.Notes,
		CompletedAt:      m.CompletedAt,
		CompletedBy:      m.CompletedBy,
		LineItems:        make([]*reconciliation.PaymentLineItem, 0, len(m.LineItems)),
	}
	for i := range m.LineItems {
		p.LineItems = append(p.LineItems, m.LineItems[i].ToDomain())
	}
	return p
}

// LineItemModelFromDomain converts a domain line item at the given position
func LineItemModelFromDomain(paymentID uuid.UUID, position int, li *reconciliation.PaymentLineItem) *LineItemModel {
	m := &LineItemModel{
		PaymentID:            paymentID,
		Position:             position,
		RemoteID:             li.RemoteID,
		ClientName:           li.ClientName,
		PlanReference:        li.PlanReference,
		AgencyCode:           li.AgencyCode,
		FeeCategory:          li.FeeCategory,
		Amount:               li.Amount,
		Status:               string(li.Status),
		MatchedExpectationID: li.MatchedExpectationID,
		Notes:                li.Notes,
	}
	m.FromDomainBaseEntity(li.BaseEntity)
	return m
}

// ToDomain converts the model back to a domain line item
func (m *LineItemModel) ToDomain() *reconciliation.PaymentLineItem {
	return &reconciliation.PaymentLineItem{
		BaseEntity:           m.BaseModel.ToDomain(),
		RemoteID:             m.RemoteID,
		ClientName:           m.ClientName,
		PlanReference:        m.PlanReference,
		AgencyCode:           m.AgencyCode,
		FeeCategory:          m.FeeCategory,
		Amount:               m.Amount,
		Status:               reconciliation.LineItemStatus(m.Status),
		MatchedExpectationID: m.MatchedExpectationID,
		Notes:                m.Notes,
	}
}

// ExpectationModelFromDomain converts a domain expectation
func ExpectationModelFromDomain(e *reconciliation.Expectation) *ExpectationModel {
	m := &ExpectationModel{
		RemoteID:           e.RemoteID,
		ClientName:         e.ClientName,
		PlanReference:      e.PlanReference,
		ExpectedAmount:     e.ExpectedAmount,
		CalculationDate:    e.CalculationDate,
		FeeCategory:        e.FeeCategory,
		FeeType:            e.FeeType,
		ProviderName:       e.ProviderName,
		AdviserName:        e.AdviserName,
		GroupingCompany:    e.GroupingCompany,
		Status:             string(e.Status),
		AllocatedAmount:    e.AllocatedAmount,
		RemainingAmount:    e.RemainingAmount,
		Allocations:        e.Allocations,
		InvalidationReason: e.InvalidationReason,
		InvalidatedAt:      e.InvalidatedAt,
		InvalidatedBy:      e.InvalidatedBy,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// ToDomain converts the model back to a domain expectation
func (m *ExpectationModel) ToDomain() *reconciliation.Expectation {
	allocations := m.Allocations
	if allocations == nil {
		allocations = make([]reconciliation.ExpectationAllocation, 0)
	}
	return &reconciliation.Expectation{
		BaseEntity:         m.BaseModel.ToDomain(),
		RemoteID:           m.RemoteID,
		ClientName:         m.ClientName,
		PlanReference:      m.PlanReference,
		ExpectedAmount:     m.ExpectedAmount,
		CalculationDate:    m.CalculationDate,
		FeeCategory:        m.FeeCategory,
		FeeType:            m.FeeType,
		ProviderName:       m.ProviderName,
		AdviserName:        m.AdviserName,
		GroupingCompany:    m.GroupingCompany,
		Status:             reconciliation.ExpectationStatus(m.Status),
		AllocatedAmount:    m.AllocatedAmount,
		RemainingAmount:    m.RemainingAmount,
		Allocations:        allocations,
		InvalidationReason: m.InvalidationReason,
		InvalidatedAt:      m.InvalidatedAt,
		InvalidatedBy:      m.InvalidatedBy,
	}
}

// MatchModelFromDomain converts a domain match. Pairings are stored separately.
func MatchModelFromDomain(m *reconciliation.Match) *MatchModel {
	return &MatchModel{
		ID:                  m.ID,
		PaymentID:           m.PaymentID,
		ExpectationIDs:      m.ExpectationIDs,
		TotalMatchedAmount:  m.TotalMatchedAmount,
		TotalExpectedAmount: m.TotalExpectedAmount,
		Variance:            m.Variance,
		VariancePercentage:  m.VariancePercentage,
		Type:                string(m.Type),
		Method:              string(m.Method),
		Quality:             string(m.Quality),
		Notes:               m.Notes,
		Actor:               m.Actor,
		MatchedAt:           m.MatchedAt,
		Confirmed:           m.Confirmed,
	}
}

// ToDomain converts the model back to a domain match with the given pairings
func (m *MatchModel) ToDomain(pairings []reconciliation.Pairing) *reconciliation.Match {
	ids := m.ExpectationIDs
	if ids == nil {
		ids = make([]uuid.UUID, 0)
	}
	if pairings == nil {
		pairings = make([]reconciliation.Pairing, 0)
	}
	return &reconciliation.Match{
		ID:                  m.ID,
		PaymentID:           m.PaymentID,
		ExpectationIDs:      ids,
		TotalMatchedAmount:  m.TotalMatchedAmount,
		TotalExpectedAmount: m.TotalExpectedAmount,
		Variance:            m.Variance,
		VariancePercentage:  m.VariancePercentage,
		Type:                reconciliation.MatchType(m.Type),
		Method:              reconciliation.MatchMethod(m.Method),
		Quality:             reconciliation.MatchQuality(m.Quality),
		Notes:               m.Notes,
		Actor:               m.Actor,
		MatchedAt:           m.MatchedAt,
		Confirmed:           m.Confirmed,
		Pairings:            pairings,
	}
}

// PairingModelFromDomain converts a domain pairing
func PairingModelFromDomain(p reconciliation.Pairing) *PairingModel {
	return &PairingModel{
		ID:                  p.ID,
		MatchID:             p.MatchID,
		PaymentID:           p.PaymentID,
		PaymentRemoteID:     p.PaymentRemoteID,
		LineItemID:          p.LineItemID,
		LineItemRemoteID:    p.LineItemRemoteID,
		ExpectationID:       p.ExpectationID,
		ExpectationRemoteID: p.ExpectationRemoteID,
		LineItemAmount:      p.LineItemAmount,
		ExpectedAmount:      p.ExpectedAmount,
		Variance:            p.Variance,
		VariancePercentage:  p.VariancePercentage,
		Quality:             string(p.Quality),
		Method:              string(p.Method),
		Notes:               p.Notes,
		Actor:               p.Actor,
		MatchedAt:           p.MatchedAt,
		Synced:              p.Synced,
		SyncedAt:            p.SyncedAt,
	}
}

// ToDomain converts the model back to a domain pairing
func (m *PairingModel) ToDomain() reconciliation.Pairing {
	return reconciliation.Pairing{
		ID:                  m.ID,
		MatchID:             m.MatchID,
		PaymentID:           m.PaymentID,
		PaymentRemoteID:     m.PaymentRemoteID,
		LineItemID:          m.LineItemID,
		LineItemRemoteID:    m.LineItemRemoteID,
		ExpectationID:       m.ExpectationID,
		ExpectationRemoteID: m.ExpectationRemoteID,
		LineItemAmount:      m.LineItemAmount,
		ExpectedAmount:      m.ExpectedAmount,
		Variance:            m.Variance,
		VariancePercentage:  m.VariancePercentage,
		Quality:             reconciliation.MatchQuality(m.Quality),
		Method:              reconciliation.MatchMethod(m.Method),
		Notes:               m.Notes,
		Actor:               m.Actor,
		MatchedAt:           m.MatchedAt,
		Synced:              m.Synced,
		SyncedAt:            m.SyncedAt,
	}
}

// PropagationTaskModelFromDomain converts a queued propagation task
func PropagationTaskModelFromDomain(t *crmsync.PropagationTask) *PropagationTaskModel {
	return &PropagationTaskModel{
		ID:                  t.ID,
		Target:              string(t.Target),
		RemoteID:            t.RemoteID,
		ExpectationRemoteID: t.ExpectationRemoteID,
		AllocatedAmount:     t.AllocatedAmount,
		RemainingAmount:     t.RemainingAmount,
		PairingIDs:          t.PairingIDs,
		State:               string(t.State),
		Attempts:            t.Attempts,
		LastError:           t.LastError,
		UpdatedAt:           t.UpdatedAt,
	}
}

// ToDomain converts the model back to a propagation task
func (m *PropagationTaskModel) ToDomain() *crmsync.PropagationTask {
	return &crmsync.PropagationTask{
		ID:                  m.ID,
		Target:              crmsync.PropagationTarget(m.Target),
		RemoteID:            m.RemoteID,
		ExpectationRemoteID: m.ExpectationRemoteID,
		AllocatedAmount:     m.AllocatedAmount,
		RemainingAmount:     m.RemainingAmount,
		PairingIDs:          m.PairingIDs,
		State:               crmsync.PropagationState(m.State),
		Attempts:            m.Attempts,
		LastError:           m.LastError,
		UpdatedAt:           m.UpdatedAt,
	}
}
