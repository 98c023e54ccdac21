package crmsync

import (
	"context"
	"fmt"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default pacing between remote calls
const (
	DefaultBatchDelay = 2 * time.Second
	DefaultReadDelay  = 300 * time.Millisecond
)

// Sleeper waits between remote calls. It returns early with ctx.Err() when ctx ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper waits on a real timer
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// PairingBacklog lists confirmed pairings the remote system has not acknowledged
type PairingBacklog interface {
	GetUnsyncedPendingMatches(ctx context.Context) ([]reconciliation.Pairing, bool)
}

// SyncConfig controls batching and pacing
type SyncConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// SyncService pushes confirmed matches to the CRM in rate-limit aware batches
type SyncService struct {
	crm      crmsync.CRM
	ledger   crmsync.SyncLedger
	queue    crmsync.PropagationQueue
	backlog  PairingBacklog
	sleeper  Sleeper
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *telemetry.ReconciliationMetrics
	cfg      SyncConfig
	now      func() time.Time
}

// SyncOption configures a SyncService
type SyncOption func(*SyncService)

// WithSleeper replaces the timer used between chunks
func WithSleeper(sl Sleeper) SyncOption {
	return func(s *SyncService) { s.sleeper = sl }
}

// WithSyncClock replaces the clock used to stamp results
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// WithPropagationQueue sets where unfinished status updates are persisted
func WithPropagationQueue(q crmsync.PropagationQueue) SyncOption {
	return func(s *SyncService) { s.queue = q }
}

// WithBacklog sets the source used by SyncPending
func WithBacklog(b PairingBacklog) SyncOption {
	return func(s *SyncService) { s.backlog = b }
}

// NewSyncService creates a new SyncService
func NewSyncService(crm crmsync.CRM, ledger crmsync.SyncLedger, cfg SyncConfig, logger *zap.Logger, opts ...SyncOption) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > crmsync.MaxBatchSize {
		cfg.BatchSize = crmsync.MaxBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	s := &SyncService{
		crm:      crm,
		ledger:   ledger,
		sleeper:  TimerSleeper,
		validate: validator.New(),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReconciliationMetrics sets the metrics recorder (optional)
func (s *SyncService) SetReconciliationMetrics(m *telemetry.ReconciliationMetrics) {
	s.metrics = m
}

// SyncMatches sends records in chunks, halting on the first rate limit signal.
// Partial failure is reported through the result counts, never as an error.
func (s *SyncService) SyncMatches(ctx context.Context, records []crmsync.MatchRecord) *crmsync.BatchSyncResult {
	ctx, span := telemetry.StartSpan(ctx, "crmsync.sync_matches",
		telemetry.SpanAttrRecordCount, len(records),
		telemetry.SpanAttrChunkSize, s.cfg.BatchSize,
	)
	defer span.End()
	started := s.now()

	result := &crmsync.BatchSyncResult{
		TotalRequested: len(records),
		Records:        make([]crmsync.RecordResult, len(records)),
	}
	for i, r := range records {
		result.Records[i] = crmsync.RecordResult{LocalID: r.LocalID, State: crmsync.SyncUnitStaged}
	}

	// Pre-flight: invalid records never reach the remote system
	valid := make([]int, 0, len(records))
	for i := range records {
		if err := s.validate.Struct(records[i]); err != nil {
			s.fail(result, i, crmsync.FailureValidation, fmt.Errorf("%w: %v", crmsync.ErrValidation, err))
			continue
		}
		valid = append(valid, i)
	}

	confirmed := make([]crmsync.MatchRecord, 0, len(valid))
	chunks := crmsync.Chunk(valid, s.cfg.BatchSize)
	for ci, chunk := range chunks {
		if ci > 0 {
			if err := s.sleeper.Sleep(ctx, s.cfg.BatchDelay); err != nil {
				s.abandon(result, chunks[ci:], err)
				break
			}
		}

		batch := make([]crmsync.MatchRecord, len(chunk))
		for j, idx := range chunk {
			batch[j] = records[idx]
			result.Records[idx].State = crmsync.SyncUnitSubmitted
		}
		result.ChunksSubmitted++

		outcomes, err := s.crm.CreateMatchBatch(ctx, batch)
		if err == nil && len(outcomes) != len(batch) {
			err = fmt.Errorf("%w: %d outcomes for %d records", crmsync.ErrInvalidResponse, len(outcomes), len(batch))
		}
		if err != nil {
			if retryAfter, ok := crmsync.RetryAfterOf(err); ok {
				result.RateLimited = true
				result.RetryAfter = retryAfter
				for _, rest := range chunks[ci:] {
					for _, idx := range rest {
						result.Records[idx].State = crmsync.SyncUnitRateLimited
						result.Records[idx].Failure = crmsync.FailureRateLimited
						result.NotSubmitted++
					}
				}
				s.logger.Warn("CRM rate limit reached, halting sync",
					zap.Int("chunk", ci+1),
					zap.Int("chunks", len(chunks)),
					zap.Int("confirmed", result.SuccessCount),
					zap.Int("not_submitted", result.NotSubmitted),
					zap.Duration("retry_after", retryAfter),
				)
				telemetry.AddEvent(span, "rate_limited", telemetry.SpanAttrChunkIndex, ci)
				break
			}
			for _, idx := range chunk {
				s.fail(result, idx, crmsync.FailureTransport, err)
			}
			s.logger.Error("Match batch failed",
				zap.Int("chunk", ci+1),
				zap.Int("records", len(chunk)),
				zap.Error(err),
			)
			continue
		}

		synced := make([]uuid.UUID, 0, len(chunk))
		for j, idx := range chunk {
			out := outcomes[j]
			if !out.Success {
				s.fail(result, idx, crmsync.FailureValidation,
					fmt.Errorf("%w: %s %s", crmsync.ErrRemoteRejected, out.Code, out.Message))
				continue
			}
			result.Records[idx].State = crmsync.SyncUnitConfirmed
			result.Records[idx].RemoteMatchID = out.RemoteID
			result.SuccessCount++
			synced = append(synced, records[idx].LocalID)
			confirmed = append(confirmed, records[idx])
		}
		if len(synced) > 0 && s.ledger != nil && !s.ledger.MarkSynced(ctx, synced) {
			s.logger.Warn("Failed to record synced pairings", zap.Int("count", len(synced)))
		}
	}

	if len(confirmed) > 0 {
		lineTasks, expTasks := crmsync.BuildPropagationTasks(confirmed, s.now())
		tasks := append(lineTasks, expTasks...)
		if result.RateLimited {
			result.Propagation = s.deferPropagation(ctx, tasks, result.RetryAfter)
		} else {
			result.Propagation = s.propagate(ctx, tasks, true)
		}
	}

	result.Finalize(s.now())
	telemetry.SetAttributes(span, telemetry.SpanAttrSyncStatus, string(result.Status))
	if s.metrics != nil {
		s.metrics.RecordSyncRun(ctx, string(result.Status), result.SuccessCount, result.FailedCount,
			result.NotSubmitted, s.now().Sub(started))
	}
	s.logger.Info("Match sync finished",
		zap.String("status", string(result.Status)),
		zap.Int("requested", result.TotalRequested),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("not_submitted", result.NotSubmitted),
		zap.Int("chunks", result.ChunksSubmitted),
	)
	return result
}

// SyncPairings converts pairings to match records and syncs them
func (s *SyncService) SyncPairings(ctx context.Context, pairings []reconciliation.Pairing) *crmsync.BatchSyncResult {
	return s.SyncMatches(ctx, crmsync.NewMatchRecords(pairings))
}

// SyncPending re-sends every confirmed pairing the backlog reports as unsynced
func (s *SyncService) SyncPending(ctx context.Context) (*crmsync.BatchSyncResult, error) {
	if s.backlog == nil {
		return nil, fmt.Errorf("%w: no backlog configured", crmsync.ErrTransport)
	}
	pairings, ok := s.backlog.GetUnsyncedPendingMatches(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: unable to read unsynced matches", crmsync.ErrTransport)
	}
	return s.SyncPairings(ctx, pairings), nil
}

// DataCheck asks the CRM for record counts and field health
func (s *SyncService) DataCheck(ctx context.Context, source crmsync.Source) (*crmsync.DataCheckReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "crmsync.data_check")
	defer span.End()

	report, err := source.DataCheck(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return report, nil
}

func (s *SyncService) fail(result *crmsync.BatchSyncResult, idx int, kind crmsync.FailureKind, err error) {
	result.Records[idx].State = crmsync.SyncUnitFailed
	result.Records[idx].Failure = kind
	result.Records[idx].Error = err.Error()
	result.FailedCount++
}

// abandon fails every record of chunks not yet sent because the run was cancelled
func (s *SyncService) abandon(result *crmsync.BatchSyncResult, chunks [][]int, err error) {
	for _, chunk := range chunks {
		for _, idx := range chunk {
			s.fail(result, idx, crmsync.FailureTransport, fmt.Errorf("%w: %v", crmsync.ErrTransport, err))
		}
	}
	s.logger.Warn("Match sync cancelled", zap.Error(err))
}
