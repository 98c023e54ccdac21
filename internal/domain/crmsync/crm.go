package crmsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MaxBatchSize is the remote limit on records per batch call
const MaxBatchSize = 100

// Action names a remote dispatch operation
type Action string

const (
	ActionGetPayments         Action = "getPayments"
	ActionGetPaymentLineItems Action = "getPaymentLineItems"
	ActionGetExpectations     Action = "getExpectations"
	ActionGetProviders        Action = "getProviders"
	ActionCreateMatch         Action = "createMatch"
	ActionCreateMatchBatch    Action = "createMatchBatch"
	ActionUpdateRecord        Action = "updateRecord"
	ActionUpdateRecordsBatch  Action = "updateRecordsBatch"
	ActionDataCheck           Action = "dataCheck"
)

// Module names a remote record collection
type Module string

const (
	ModulePayments         Module = "Payments"
	ModulePaymentLineItems Module = "Payment_Line_Items"
	ModuleExpectations     Module = "Expectations"
	ModuleMatches          Module = "Matches"
)

// Response is the envelope returned by the remote dispatcher
type Response struct {
	Success           bool            `json:"success"`
	Data              json.RawMessage `json:"data,omitempty"`
	Error             string          `json:"error,omitempty"`
	Code              string          `json:"code,omitempty"`
	RetryAfterSeconds int             `json:"retryAfterSeconds,omitempty"`
}

// Dispatcher invokes one remote action. Implementations translate throttling
// into *RateLimitError and connection or decoding problems into ErrTransport
// or ErrInvalidResponse.
type Dispatcher interface {
	Invoke(ctx context.Context, action Action, params any) (*Response, error)
}

// ---------------------------------------------------------------------------
// Write side
// ---------------------------------------------------------------------------

// RecordOutcome is the remote verdict for one record of a batch call
type RecordOutcome struct {
	// RemoteID is the identifier assigned or updated by the remote system
	RemoteID string
	// Success reports whether the record was accepted
	Success bool
	// Code is the remote error code for rejected records
	Code string
	// Message describes the rejection
	Message string
}

// RecordUpdate is a partial update of one remote record
type RecordUpdate struct {
	RemoteID string
	Fields   map[string]any
}

// CRM is the write port used to push matches and status changes.
// Batch methods return one outcome per input record in input order.
// A returned error means the call as a whole did not complete.
type CRM interface {
	CreateMatchBatch(ctx context.Context, records []MatchRecord) ([]RecordOutcome, error)
	CreateMatch(ctx context.Context, record MatchRecord) (string, error)
	UpdateRecordsBatch(ctx context.Context, module Module, updates []RecordUpdate) ([]RecordOutcome, error)
	UpdateRecord(ctx context.Context, module Module, update RecordUpdate) error
}

// ---------------------------------------------------------------------------
// Read side
// ---------------------------------------------------------------------------

// RemoteProvider is a fee-paying provider known to the CRM
type RemoteProvider struct {
	ID   string
	Name string
}

// RemoteLineItem is a payment line item as stored remotely
type RemoteLineItem struct {
	ID                   string
	ClientName           string
	PlanReference        string
	AgencyCode           string
	FeeCategory          string
	Amount               decimal.Decimal
	Status               string
	MatchedExpectationID string
	Notes                string
}

// RemotePayment is a bank payment as stored remotely
type RemotePayment struct {
	ID               string
	ProviderName     string
	PaymentReference string
	Amount           decimal.Decimal
	PaymentDate      time.Time
	ReconciledAmount decimal.Decimal
	Status           string
	Notes            string
	LineItems        []RemoteLineItem
}

// RemoteExpectation is an expected fee as stored remotely
type RemoteExpectation struct {
	ID              string
	ClientName      string
	PlanReference   string
	ExpectedAmount  decimal.Decimal
	CalculationDate time.Time
	FeeCategory     string
	FeeType         string
	ProviderName    string
	AdviserName     string
	GroupingCompany string
	Status          string
	AllocatedAmount decimal.Decimal
}

// Page is one page of a paginated list call
type Page[T any] struct {
	Items   []T
	Page    int
	HasMore bool
}

// DataCheckReport summarises record counts and field health reported by the CRM
type DataCheckReport struct {
	Modules map[string]int `json:"modules"`
	Issues  []string       `json:"issues"`
}

// Source is the read port used to download working data
type Source interface {
	GetProviders(ctx context.Context) ([]RemoteProvider, error)
	GetPayments(ctx context.Context, page, perPage int) (Page[RemotePayment], error)
	GetPaymentLineItems(ctx context.Context, paymentID string) ([]RemoteLineItem, error)
	GetExpectations(ctx context.Context, page, perPage int) (Page[RemoteExpectation], error)
	DataCheck(ctx context.Context) (*DataCheckReport, error)
}
