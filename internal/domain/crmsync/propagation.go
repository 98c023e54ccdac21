package crmsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PropagationState is the lifecycle state of a secondary status update
type PropagationState string

const (
	PropagationPending    PropagationState = "pending_status_update"
	PropagationPropagated PropagationState = "propagated"
	PropagationDegraded   PropagationState = "degraded"
)

// PropagationTarget names the kind of remote record a task updates
type PropagationTarget string

const (
	TargetLineItem    PropagationTarget = "line_item"
	TargetExpectation PropagationTarget = "expectation"
)

// Remote field values written during propagation
const (
	RemoteStatusMatched = "matched"

	FieldStatus             = "Status"
	FieldMatchedExpectation = "Matched_Expectation"
	FieldAllocatedAmount    = "Allocated_Amount"
	FieldRemainingAmount    = "Remaining_Amount"
)

// PropagationTask is one remote status update owed after a match was confirmed
type PropagationTask struct {
	ID                  uuid.UUID         `json:"id"`
	Target              PropagationTarget `json:"target"`
	RemoteID            string            `json:"remote_id"`
	ExpectationRemoteID string            `json:"expectation_remote_id,omitempty"`
	AllocatedAmount     decimal.Decimal   `json:"allocated_amount"`
	RemainingAmount     decimal.Decimal   `json:"remaining_amount"`
	PairingIDs          []uuid.UUID       `json:"pairing_ids"`
	State               PropagationState  `json:"state"`
	Attempts            int               `json:"attempts"`
	LastError           string            `json:"last_error,omitempty"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Module returns the remote module the task writes to
func (t *PropagationTask) Module() Module {
	if t.Target == TargetExpectation {
		return ModuleExpectations
	}
	return ModulePaymentLineItems
}

// Update returns the remote field update for the task
func (t *PropagationTask) Update() RecordUpdate {
	fields := map[string]any{FieldStatus: RemoteStatusMatched}
	switch t.Target {
	case TargetLineItem:
		fields[FieldMatchedExpectation] = t.ExpectationRemoteID
	case TargetExpectation:
		fields[FieldAllocatedAmount] = t.AllocatedAmount.StringFixed(2)
		fields[FieldRemainingAmount] = t.RemainingAmount.StringFixed(2)
	}
	return RecordUpdate{RemoteID: t.RemoteID, Fields: fields}
}

// MarkPropagated records a successful remote update
func (t *PropagationTask) MarkPropagated(now time.Time) {
	t.Attempts++
	t.State = PropagationPropagated
	t.LastError = ""
	t.UpdatedAt = now
}

// MarkDegraded records a failed remote update
func (t *PropagationTask) MarkDegraded(reason string, now time.Time) {
	t.Attempts++
	t.State = PropagationDegraded
	t.LastError = reason
	t.UpdatedAt = now
}

// BuildPropagationTasks derives the secondary updates for confirmed records:
// one line item task per record, and one expectation task per remote expectation
// with the amounts of every line item matched to it summed.
func BuildPropagationTasks(records []MatchRecord, now time.Time) (lineItems, expectations []*PropagationTask) {
	lineItems = make([]*PropagationTask, 0, len(records))
	expectations = make([]*PropagationTask, 0, len(records))
	byExpectation := make(map[string]*PropagationTask)

	for _, r := range records {
		lineItems = append(lineItems, &PropagationTask{
			ID:                  uuid.New(),
			Target:              TargetLineItem,
			RemoteID:            r.LineItemRemoteID,
			ExpectationRemoteID: r.ExpectationRemoteID,
			AllocatedAmount:     r.Amount,
			RemainingAmount:     decimal.Zero,
			PairingIDs:          []uuid.UUID{r.LocalID},
			State:               PropagationPending,
			UpdatedAt:           now,
		})

		if task, ok := byExpectation[r.ExpectationRemoteID]; ok {
			task.AllocatedAmount = task.AllocatedAmount.Add(r.Amount)
			task.PairingIDs = append(task.PairingIDs, r.LocalID)
			continue
		}
		task := &PropagationTask{
			ID:              uuid.New(),
			Target:          TargetExpectation,
			RemoteID:        r.ExpectationRemoteID,
			AllocatedAmount: r.Amount,
			RemainingAmount: decimal.Zero,
			PairingIDs:      []uuid.UUID{r.LocalID},
			State:           PropagationPending,
			UpdatedAt:       now,
		}
		byExpectation[r.ExpectationRemoteID] = task
		expectations = append(expectations, task)
	}
	return lineItems, expectations
}

// PropagationResult is the outcome of a status propagation phase
type PropagationResult struct {
	State               PropagationState `json:"state"`
	LineItemsUpdated    int              `json:"line_items_updated"`
	LineItemsFailed     int              `json:"line_items_failed"`
	ExpectationsUpdated int              `json:"expectations_updated"`
	ExpectationsFailed  int              `json:"expectations_failed"`
	RateLimited         bool             `json:"rate_limited"`
	RetryAfter          time.Duration    `json:"retry_after"`
	Queued              int              `json:"queued"`
}

// Finalize derives the overall propagation state
func (r *PropagationResult) Finalize() {
	if r.LineItemsFailed == 0 && r.ExpectationsFailed == 0 && !r.RateLimited {
		r.State = PropagationPropagated
		return
	}
	r.State = PropagationDegraded
}

// PropagationQueue persists status updates that still need to reach the remote system
type PropagationQueue interface {
	// SavePropagationTasks upserts tasks by ID
	SavePropagationTasks(ctx context.Context, tasks []*PropagationTask) bool
	// LoadOutstandingPropagationTasks returns tasks not yet propagated, oldest first
	LoadOutstandingPropagationTasks(ctx context.Context) ([]*PropagationTask, bool)
}
