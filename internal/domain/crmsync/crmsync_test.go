package crmsync

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(lineItemRemote, expectationRemote, amount string) MatchRecord {
	return MatchRecord{
		LocalID:             uuid.New(),
		MatchID:             uuid.New(),
		PaymentID:           uuid.New(),
		PaymentRemoteID:     "pay-1",
		LineItemID:          uuid.New(),
		LineItemRemoteID:    lineItemRemote,
		ExpectationID:       uuid.New(),
		ExpectationRemoteID: expectationRemote,
		Amount:              decimal.RequireFromString(amount),
		Quality:             reconciliation.MatchQualityGood,
		Method:              reconciliation.MatchMethodManual,
		MatchedAt:           time.Now(),
	}
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("chunk 2: %w", NewRateLimitError(30, "too many requests"))
	assert.True(t, errors.Is(err, ErrRateLimited))

	retry, ok := RetryAfterOf(err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	retry, ok = RetryAfterOf(NewRateLimitError(0, ""))
	assert.True(t, ok)
	assert.Equal(t, DefaultRetryAfter, retry)

	retry, ok = RetryAfterOf(ErrRateLimited)
	assert.True(t, ok)
	assert.Equal(t, DefaultRetryAfter, retry)

	_, ok = RetryAfterOf(ErrTransport)
	assert.False(t, ok)
}

func TestChunk(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, MaxBatchSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, 100, chunks[1][0])
	assert.Equal(t, 249, chunks[2][49])

	assert.Len(t, Chunk(items, 500), 3, "size is capped at the remote limit")
	assert.Len(t, Chunk(items, 0), 3)
	assert.Len(t, Chunk(items, 40), 7)
	assert.Empty(t, Chunk([]int{}, 10))
}

func TestNewMatchRecords(t *testing.T) {
	p := reconciliation.Pairing{
		ID:                  uuid.New(),
		MatchID:             uuid.New(),
		PaymentRemoteID:     "P1",
		LineItemRemoteID:    "L1",
		ExpectationRemoteID: "E1",
		LineItemAmount:      decimal.NewFromInt(10),
		Quality:             reconciliation.MatchQualityPerfect,
		Method:              reconciliation.MatchMethodAuto,
	}
	records := NewMatchRecords([]reconciliation.Pairing{p})
	require.Len(t, records, 1)
	assert.Equal(t, p.ID, records[0].LocalID)
	assert.Equal(t, "L1", records[0].LineItemRemoteID)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestBuildPropagationTasks(t *testing.T) {
	records := []MatchRecord{
		record("L1", "E1", "100.00"),
		record("L2", "E2", "50.00"),
		record("L3", "E1", "25.50"),
	}

	lines, exps := BuildPropagationTasks(records, time.Now())
	require.Len(t, lines, 3)
	require.Len(t, exps, 2)

	assert.Equal(t, "E1", exps[0].RemoteID)
	assert.True(t, exps[0].AllocatedAmount.Equal(decimal.RequireFromString("125.50")))
	assert.Len(t, exps[0].PairingIDs, 2)
	assert.Equal(t, "E2", exps[1].RemoteID)

	for _, task := range append(lines, exps...) {
		assert.Equal(t, PropagationPending, task.State)
	}

	update := lines[2].Update()
	assert.Equal(t, "L3", update.RemoteID)
	assert.Equal(t, RemoteStatusMatched, update.Fields[FieldStatus])
	assert.Equal(t, "E1", update.Fields[FieldMatchedExpectation])
	assert.Equal(t, ModulePaymentLineItems, lines[2].Module())

	update = exps[0].Update()
	assert.Equal(t, "125.50", update.Fields[FieldAllocatedAmount])
	assert.Equal(t, "0.00", update.Fields[FieldRemainingAmount])
	assert.Equal(t, ModuleExpectations, exps[0].Module())
}

func TestPropagationTaskTransitions(t *testing.T) {
	_, exps := BuildPropagationTasks([]MatchRecord{record("L1", "E1", "1")}, time.Now())
	task := exps[0]

	task.MarkDegraded("boom", time.Now())
	assert.Equal(t, PropagationDegraded, task.State)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "boom", task.LastError)

	task.MarkPropagated(time.Now())
	assert.Equal(t, PropagationPropagated, task.State)
	assert.Equal(t, 2, task.Attempts)
	assert.Empty(t, task.LastError)
}

func TestBatchSyncResult(t *testing.T) {
	ok, failed := uuid.New(), uuid.New()
	r := &BatchSyncResult{
		TotalRequested: 2,
		SuccessCount:   1,
		FailedCount:    1,
		Records: []RecordResult{
			{LocalID: ok, State: SyncUnitConfirmed},
			{LocalID: failed, State: SyncUnitFailed, Failure: FailureValidation},
		},
	}
	r.Finalize(time.Now())
	assert.Equal(t, SyncStatusPartial, r.Status)
	assert.Equal(t, []uuid.UUID{ok}, r.ConfirmedIDs())
	assert.False(t, r.IsDegraded())

	r.Propagation = &PropagationResult{ExpectationsFailed: 1}
	r.Propagation.Finalize()
	assert.True(t, r.IsDegraded())

	empty := &BatchSyncResult{}
	empty.Finalize(time.Now())
	assert.Equal(t, SyncStatusEmpty, empty.Status)

	limited := &BatchSyncResult{TotalRequested: 3, SuccessCount: 1, RateLimited: true}
	limited.Finalize(time.Now())
	assert.Equal(t, SyncStatusRateLimited, limited.Status)

	assert.True(t, SyncUnitConfirmed.IsTerminal())
	assert.False(t, SyncUnitSubmitted.IsTerminal())
}
