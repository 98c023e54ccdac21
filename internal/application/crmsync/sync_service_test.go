package crmsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type updateCall struct {
	module  crmsync.Module
	updates []crmsync.RecordUpdate
}

type fakeCRM struct {
	createCalls [][]crmsync.MatchRecord
	updateCalls []updateCall
	singles     []crmsync.RecordUpdate
	createFn    func(call int, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error)
	updateFn    func(module crmsync.Module, updates []crmsync.RecordUpdate) ([]crmsync.RecordOutcome, error)
	singleErrs  map[crmsync.Module]error
	createErr   error
}

func (f *fakeCRM) CreateMatchBatch(_ context.Context, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
	f.createCalls = append(f.createCalls, records)
	if f.createFn != nil {
		return f.createFn(len(f.createCalls), records)
	}
	return allAccepted(len(records)), nil
}

func (f *fakeCRM) CreateMatch(_ context.Context, record crmsync.MatchRecord) (string, error) {
	f.createCalls = append(f.createCalls, []crmsync.MatchRecord{record})
	if f.createErr != nil {
		return "", f.createErr
	}
	return "remote-match-1", nil
}

func (f *fakeCRM) UpdateRecordsBatch(_ context.Context, module crmsync.Module, updates []crmsync.RecordUpdate) ([]crmsync.RecordOutcome, error) {
	f.updateCalls = append(f.updateCalls, updateCall{module: module, updates: updates})
	if f.updateFn != nil {
		return f.updateFn(module, updates)
	}
	return allAccepted(len(updates)), nil
}

func (f *fakeCRM) UpdateRecord(_ context.Context, module crmsync.Module, update crmsync.RecordUpdate) error {
	f.singles = append(f.singles, update)
	return f.singleErrs[module]
}

func allAccepted(n int) []crmsync.RecordOutcome {
	out := make([]crmsync.RecordOutcome, n)
	for i := range out {
		out[i] = crmsync.RecordOutcome{RemoteID: fmt.Sprintf("remote-%d", i), Success: true}
	}
	return out
}

type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

type fakeLedger struct {
	synced []uuid.UUID
	fail   bool
}

func (l *fakeLedger) MarkSynced(_ context.Context, ids []uuid.UUID) bool {
	if l.fail {
		return false
	}
	l.synced = append(l.synced, ids...)
	return true
}

type fakeQueue struct {
	tasks map[uuid.UUID]*crmsync.PropagationTask
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(map[uuid.UUID]*crmsync.PropagationTask)}
}

func (q *fakeQueue) SavePropagationTasks(_ context.Context, tasks []*crmsync.PropagationTask) bool {
	for _, t := range tasks {
		copied := *t
		q.tasks[t.ID] = &copied
	}
	return true
}

func (q *fakeQueue) LoadOutstandingPropagationTasks(_ context.Context) ([]*crmsync.PropagationTask, bool) {
	out := make([]*crmsync.PropagationTask, 0)
	for _, t := range q.tasks {
		if t.State != crmsync.PropagationPropagated {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, true
}

func (q *fakeQueue) outstanding() int {
	tasks, _ := q.LoadOutstandingPropagationTasks(context.Background())
	return len(tasks)
}

type fakeBacklog struct {
	pairings []reconciliation.Pairing
}

func (b *fakeBacklog) GetUnsyncedPendingMatches(_ context.Context) ([]reconciliation.Pairing, bool) {
	return b.pairings, true
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func matchRecord(i int, expectationRemoteID string) crmsync.MatchRecord {
	return crmsync.MatchRecord{
		LocalID:             uuid.New(),
		MatchID:             uuid.New(),
		PaymentID:           uuid.New(),
		PaymentRemoteID:     "pay-1",
		LineItemID:          uuid.New(),
		LineItemRemoteID:    fmt.Sprintf("li-%d", i),
		ExpectationID:       uuid.New(),
		ExpectationRemoteID: expectationRemoteID,
		Amount:              decimal.RequireFromString("100.25"),
		ExpectedAmount:      decimal.RequireFromString("100.25"),
		Variance:            decimal.Zero,
		VariancePercentage:  decimal.Zero,
		Quality:             reconciliation.MatchQualityPerfect,
		Method:              reconciliation.MatchMethodManual,
		Actor:               "tester",
		MatchedAt:           time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func matchRecords(n int) []crmsync.MatchRecord {
	out := make([]crmsync.MatchRecord, n)
	for i := range out {
		out[i] = matchRecord(i, fmt.Sprintf("exp-%d", i))
	}
	return out
}

func newTestSyncService(t *testing.T, crm *fakeCRM, ledger *fakeLedger, queue *fakeQueue, sleeper *recordingSleeper) *SyncService {
	t.Helper()
	return NewSyncService(crm, ledger, SyncConfig{BatchSize: 100, BatchDelay: DefaultBatchDelay}, zaptest.NewLogger(t),
		WithSleeper(sleeper),
		WithPropagationQueue(queue),
	)
}

func chunkSizes(calls [][]crmsync.MatchRecord) []int {
	sizes := make([]int, len(calls))
	for i, c := range calls {
		sizes[i] = len(c)
	}
	return sizes
}

// ---------------------------------------------------------------------------
// Batch sync
// ---------------------------------------------------------------------------

func TestSyncMatches_ChunksAndDelays(t *testing.T) {
	crm := &fakeCRM{}
	ledger := &fakeLedger{}
	queue := newFakeQueue()
	sleeper := &recordingSleeper{}
	svc := newTestSyncService(t, crm, ledger, queue, sleeper)

	result := svc.SyncMatches(context.Background(), matchRecords(250))

	assert.Equal(t, []int{100, 100, 50}, chunkSizes(crm.createCalls))
	assert.Equal(t, crmsync.SyncStatusSuccess, result.Status)
	assert.Equal(t, 250, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 3, result.ChunksSubmitted)
	assert.Len(t, ledger.synced, 250)

	// 2 between primary chunks, then one before each of the 6 propagation chunks
	require.Len(t, sleeper.waits, 8)
	for _, w := range sleeper.waits {
		assert.Equal(t, DefaultBatchDelay, w)
	}

	require.NotNil(t, result.Propagation)
	assert.Equal(t, crmsync.PropagationPropagated, result.Propagation.State)
	assert.Equal(t, 250, result.Propagation.LineItemsUpdated)
	assert.Equal(t, 250, result.Propagation.ExpectationsUpdated)
	assert.False(t, result.IsDegraded())
	assert.Equal(t, 0, queue.outstanding())
}

func TestSyncMatches_RateLimitHaltsRun(t *testing.T) {
	crm := &fakeCRM{
		createFn: func(call int, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
			if call == 2 {
				return nil, crmsync.NewRateLimitError(30, "too many requests")
			}
			return allAccepted(len(records)), nil
		},
	}
	ledger := &fakeLedger{}
	queue := newFakeQueue()
	sleeper := &recordingSleeper{}
	svc := newTestSyncService(t, crm, ledger, queue, sleeper)

	result := svc.SyncMatches(context.Background(), matchRecords(250))

	assert.Len(t, crm.createCalls, 2, "third chunk must never be sent")
	assert.Equal(t, crmsync.SyncStatusRateLimited, result.Status)
	assert.True(t, result.RateLimited)
	assert.Equal(t, 30*time.Second, result.RetryAfter)
	assert.Equal(t, 100, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 150, result.NotSubmitted)
	assert.Len(t, ledger.synced, 100)

	assert.Equal(t, crmsync.SyncUnitConfirmed, result.Records[0].State)
	assert.Equal(t, crmsync.SyncUnitRateLimited, result.Records[100].State)
	assert.Equal(t, crmsync.SyncUnitRateLimited, result.Records[249].State)

	// Status propagation is deferred, not attempted
	assert.Empty(t, crm.updateCalls)
	require.NotNil(t, result.Propagation)
	assert.Equal(t, crmsync.PropagationPending, result.Propagation.State)
	assert.Equal(t, 200, result.Propagation.Queued)
	assert.Equal(t, 200, queue.outstanding())
}

func TestSyncMatches_TransportFailureContinues(t *testing.T) {
	crm := &fakeCRM{
		createFn: func(call int, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
			if call == 1 {
				return nil, fmt.Errorf("%w: connection reset", crmsync.ErrTransport)
			}
			return allAccepted(len(records)), nil
		},
	}
	ledger := &fakeLedger{}
	svc := newTestSyncService(t, crm, ledger, newFakeQueue(), &recordingSleeper{})

	result := svc.SyncMatches(context.Background(), matchRecords(150))

	assert.Len(t, crm.createCalls, 2)
	assert.Equal(t, crmsync.SyncStatusPartial, result.Status)
	assert.Equal(t, 50, result.SuccessCount)
	assert.Equal(t, 100, result.FailedCount)
	assert.Equal(t, crmsync.FailureTransport, result.Records[0].Failure)
	assert.Equal(t, crmsync.SyncUnitConfirmed, result.Records[149].State)
	assert.Len(t, ledger.synced, 50)
}

func TestSyncMatches_PartialSuccessWithinBatch(t *testing.T) {
	crm := &fakeCRM{
		createFn: func(_ int, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
			out := allAccepted(len(records))
			out[1] = crmsync.RecordOutcome{Success: false, Code: "INVALID_DATA", Message: "bad lookup id"}
			return out, nil
		},
	}
	ledger := &fakeLedger{}
	svc := newTestSyncService(t, crm, ledger, newFakeQueue(), &recordingSleeper{})
	records := matchRecords(3)

	result := svc.SyncMatches(context.Background(), records)

	assert.Equal(t, crmsync.SyncStatusPartial, result.Status)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, crmsync.FailureValidation, result.Records[1].Failure)
	assert.Contains(t, result.Records[1].Error, "INVALID_DATA")
	assert.ElementsMatch(t, []uuid.UUID{records[0].LocalID, records[2].LocalID}, ledger.synced)
	assert.Equal(t, 2, result.Propagation.LineItemsUpdated)
}

func TestSyncMatches_PreflightValidation(t *testing.T) {
	crm := &fakeCRM{}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), &recordingSleeper{})
	records := matchRecords(2)
	records[0].LineItemRemoteID = ""

	result := svc.SyncMatches(context.Background(), records)

	require.Len(t, crm.createCalls, 1)
	assert.Len(t, crm.createCalls[0], 1)
	assert.Equal(t, crmsync.FailureValidation, result.Records[0].Failure)
	assert.Contains(t, result.Records[0].Error, crmsync.ErrValidation.Error())
	assert.Equal(t, 1, result.SuccessCount)
}

func TestSyncMatches_MismatchedOutcomesFailChunk(t *testing.T) {
	crm := &fakeCRM{
		createFn: func(_ int, _ []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
			return allAccepted(1), nil
		},
	}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), &recordingSleeper{})

	result := svc.SyncMatches(context.Background(), matchRecords(3))

	assert.Equal(t, crmsync.SyncStatusFailed, result.Status)
	assert.Equal(t, 3, result.FailedCount)
	assert.Contains(t, result.Records[0].Error, crmsync.ErrInvalidResponse.Error())
	assert.Nil(t, result.Propagation)
}

func TestSyncMatches_Empty(t *testing.T) {
	crm := &fakeCRM{}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), &recordingSleeper{})

	result := svc.SyncMatches(context.Background(), nil)

	assert.Equal(t, crmsync.SyncStatusEmpty, result.Status)
	assert.Empty(t, crm.createCalls)
}

func TestSyncMatches_CancelledBetweenChunks(t *testing.T) {
	crm := &fakeCRM{}
	sleeper := &recordingSleeper{err: context.Canceled}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), sleeper)

	result := svc.SyncMatches(context.Background(), matchRecords(150))

	assert.Len(t, crm.createCalls, 1)
	assert.Equal(t, 100, result.SuccessCount)
	assert.Equal(t, 50, result.FailedCount)
	assert.Equal(t, crmsync.FailureTransport, result.Records[120].Failure)
}

// ---------------------------------------------------------------------------
// Status propagation
// ---------------------------------------------------------------------------

func TestSyncMatches_PropagationSumsSharedExpectation(t *testing.T) {
	crm := &fakeCRM{}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), &recordingSleeper{})
	records := []crmsync.MatchRecord{matchRecord(1, "exp-shared"), matchRecord(2, "exp-shared")}
	records[1].Amount = decimal.RequireFromString("25.25")

	result := svc.SyncMatches(context.Background(), records)

	require.Len(t, crm.updateCalls, 2)
	assert.Equal(t, crmsync.ModulePaymentLineItems, crm.updateCalls[0].module)
	assert.Len(t, crm.updateCalls[0].updates, 2)
	assert.Equal(t, "exp-shared", crm.updateCalls[0].updates[0].Fields[crmsync.FieldMatchedExpectation])

	assert.Equal(t, crmsync.ModuleExpectations, crm.updateCalls[1].module)
	require.Len(t, crm.updateCalls[1].updates, 1)
	fields := crm.updateCalls[1].updates[0].Fields
	assert.Equal(t, "125.50", fields[crmsync.FieldAllocatedAmount])
	assert.Equal(t, "0.00", fields[crmsync.FieldRemainingAmount])
	assert.Equal(t, crmsync.RemoteStatusMatched, fields[crmsync.FieldStatus])

	assert.Equal(t, 1, result.Propagation.ExpectationsUpdated)
}

func TestSyncMatches_PropagationFailureIsDegraded(t *testing.T) {
	crm := &fakeCRM{
		updateFn: func(module crmsync.Module, updates []crmsync.RecordUpdate) ([]crmsync.RecordOutcome, error) {
			if module == crmsync.ModuleExpectations {
				return nil, fmt.Errorf("%w: gateway timeout", crmsync.ErrTransport)
			}
			return allAccepted(len(updates)), nil
		},
	}
	queue := newFakeQueue()
	svc := newTestSyncService(t, crm, &fakeLedger{}, queue, &recordingSleeper{})

	result := svc.SyncMatches(context.Background(), matchRecords(3))

	assert.Equal(t, crmsync.SyncStatusSuccess, result.Status)
	assert.Equal(t, 3, result.SuccessCount)
	assert.True(t, result.IsDegraded())
	assert.Equal(t, crmsync.PropagationDegraded, result.Propagation.State)
	assert.Equal(t, 3, result.Propagation.LineItemsUpdated)
	assert.Equal(t, 3, result.Propagation.ExpectationsFailed)
	assert.Equal(t, 3, result.Propagation.Queued)
	assert.Equal(t, 3, queue.outstanding())
}

func TestRetryPropagation(t *testing.T) {
	failing := true
	crm := &fakeCRM{
		updateFn: func(module crmsync.Module, updates []crmsync.RecordUpdate) ([]crmsync.RecordOutcome, error) {
			if failing && module == crmsync.ModuleExpectations {
				return nil, crmsync.NewRateLimitError(10, "")
			}
			return allAccepted(len(updates)), nil
		},
	}
	queue := newFakeQueue()
	svc := newTestSyncService(t, crm, &fakeLedger{}, queue, &recordingSleeper{})

	first := svc.SyncMatches(context.Background(), matchRecords(2))
	assert.Equal(t, crmsync.PropagationDegraded, first.Propagation.State)
	assert.True(t, first.Propagation.RateLimited)
	assert.Equal(t, 2, queue.outstanding())

	failing = false
	res, err := svc.RetryPropagation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crmsync.PropagationPropagated, res.State)
	assert.Equal(t, 2, res.ExpectationsUpdated)
	assert.Equal(t, 0, queue.outstanding())
}

func TestRetryPropagation_NoQueue(t *testing.T) {
	svc := NewSyncService(&fakeCRM{}, nil, SyncConfig{}, nil)

	_, err := svc.RetryPropagation(context.Background())
	assert.ErrorIs(t, err, crmsync.ErrTransport)
}

// ---------------------------------------------------------------------------
// Single record path and backlog
// ---------------------------------------------------------------------------

func TestSyncMatch_SecondaryFailureIsWarning(t *testing.T) {
	crm := &fakeCRM{singleErrs: map[crmsync.Module]error{
		crmsync.ModulePaymentLineItems: errors.New("field locked"),
	}}
	ledger := &fakeLedger{}
	queue := newFakeQueue()
	svc := newTestSyncService(t, crm, ledger, queue, &recordingSleeper{})
	record := matchRecord(1, "exp-1")

	result, err := svc.SyncMatch(context.Background(), record)

	require.NoError(t, err)
	assert.Equal(t, "remote-match-1", result.RemoteMatchID)
	assert.False(t, result.LineItemUpdated)
	assert.True(t, result.ExpectationUpdated)
	assert.True(t, result.IsDegraded())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "field locked")
	assert.Len(t, crm.singles, 2)
	assert.Equal(t, []uuid.UUID{record.LocalID}, ledger.synced)
	assert.Equal(t, 1, queue.outstanding())
}

func TestSyncMatch_CreateFailureReturnsError(t *testing.T) {
	crm := &fakeCRM{createErr: crmsync.NewRateLimitError(5, "")}
	ledger := &fakeLedger{}
	svc := newTestSyncService(t, crm, ledger, newFakeQueue(), &recordingSleeper{})

	_, err := svc.SyncMatch(context.Background(), matchRecord(1, "exp-1"))

	assert.ErrorIs(t, err, crmsync.ErrRateLimited)
	assert.Empty(t, crm.singles)
	assert.Empty(t, ledger.synced)
}

func TestSyncMatch_InvalidRecord(t *testing.T) {
	crm := &fakeCRM{}
	svc := newTestSyncService(t, crm, &fakeLedger{}, newFakeQueue(), &recordingSleeper{})
	record := matchRecord(1, "")

	_, err := svc.SyncMatch(context.Background(), record)

	assert.ErrorIs(t, err, crmsync.ErrValidation)
	assert.Empty(t, crm.createCalls)
}

func TestSyncPending(t *testing.T) {
	crm := &fakeCRM{}
	pairing := reconciliation.Pairing{
		ID:                  uuid.New(),
		MatchID:             uuid.New(),
		PaymentID:           uuid.New(),
		PaymentRemoteID:     "pay-9",
		LineItemID:          uuid.New(),
		LineItemRemoteID:    "li-9",
		ExpectationID:       uuid.New(),
		ExpectationRemoteID: "exp-9",
		LineItemAmount:      decimal.NewFromInt(10),
		ExpectedAmount:      decimal.NewFromInt(10),
		Quality:             reconciliation.MatchQualityPerfect,
		Method:              reconciliation.MatchMethodAuto,
		MatchedAt:           time.Now(),
	}
	svc := NewSyncService(crm, &fakeLedger{}, SyncConfig{}, zaptest.NewLogger(t),
		WithSleeper(&recordingSleeper{}),
		WithBacklog(&fakeBacklog{pairings: []reconciliation.Pairing{pairing}}),
	)

	result, err := svc.SyncPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, crm.createCalls, 1)
	assert.Equal(t, "li-9", crm.createCalls[0][0].LineItemRemoteID)
}
