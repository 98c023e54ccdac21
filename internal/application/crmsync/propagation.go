package crmsync

import (
	"context"
	"fmt"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// propagate pushes line item updates then expectation updates in chunks.
// A rate limit halts both phases and leaves the remaining tasks pending.
// delayFirst inserts the batch delay before the first call.
func (s *SyncService) propagate(ctx context.Context, tasks []*crmsync.PropagationTask, delayFirst bool) *crmsync.PropagationResult {
	ctx, span := telemetry.StartSpan(ctx, "crmsync.propagate", telemetry.SpanAttrRecordCount, len(tasks))
	defer span.End()

	res := &crmsync.PropagationResult{}
	var lineTasks, expTasks []*crmsync.PropagationTask
	for _, t := range tasks {
		if t.Target == crmsync.TargetExpectation {
			expTasks = append(expTasks, t)
		} else {
			lineTasks = append(lineTasks, t)
		}
	}

	wait := delayFirst
	halted := false
	for _, phase := range [][]*crmsync.PropagationTask{lineTasks, expTasks} {
		for _, chunk := range crmsync.Chunk(phase, s.cfg.BatchSize) {
			if halted {
				break
			}
			if wait {
				if err := s.sleeper.Sleep(ctx, s.cfg.BatchDelay); err != nil {
					halted = true
					break
				}
			}
			wait = true

			module := chunk[0].Module()
			updates := make([]crmsync.RecordUpdate, len(chunk))
			for i, t := range chunk {
				updates[i] = t.Update()
			}

			outcomes, err := s.crm.UpdateRecordsBatch(ctx, module, updates)
			if err == nil && len(outcomes) != len(chunk) {
				err = fmt.Errorf("%w: %d outcomes for %d updates", crmsync.ErrInvalidResponse, len(outcomes), len(chunk))
			}
			if err != nil {
				if retryAfter, ok := crmsync.RetryAfterOf(err); ok {
					res.RateLimited = true
					res.RetryAfter = retryAfter
					halted = true
					s.logger.Warn("CRM rate limit reached during status propagation",
						zap.String("module", string(module)),
						zap.Duration("retry_after", retryAfter),
					)
					break
				}
				now := s.now()
				for _, t := range chunk {
					t.MarkDegraded(err.Error(), now)
					countPropagation(res, t, false)
				}
				s.logger.Warn("Status propagation batch failed",
					zap.String("module", string(module)),
					zap.Int("records", len(chunk)),
					zap.Error(err),
				)
				continue
			}

			now := s.now()
			for i, t := range chunk {
				if outcomes[i].Success {
					t.MarkPropagated(now)
					countPropagation(res, t, true)
					continue
				}
				t.MarkDegraded(fmt.Sprintf("%s %s", outcomes[i].Code, outcomes[i].Message), now)
				countPropagation(res, t, false)
			}
		}
	}

	outstanding := make([]*crmsync.PropagationTask, 0)
	for _, t := range tasks {
		if t.State != crmsync.PropagationPropagated {
			outstanding = append(outstanding, t)
		}
	}
	res.Queued = s.enqueue(ctx, outstanding)
	res.Finalize()
	if len(outstanding) > 0 {
		res.State = crmsync.PropagationDegraded
	}

	if s.metrics != nil {
		s.metrics.RecordPropagation(ctx, string(crmsync.TargetLineItem), res.LineItemsUpdated, res.LineItemsFailed)
		s.metrics.RecordPropagation(ctx, string(crmsync.TargetExpectation), res.ExpectationsUpdated, res.ExpectationsFailed)
	}
	telemetry.SetAttributes(span, "propagation_state", string(res.State))
	return res
}

// deferPropagation queues every task untouched after the primary run was rate limited
func (s *SyncService) deferPropagation(ctx context.Context, tasks []*crmsync.PropagationTask, retryAfter time.Duration) *crmsync.PropagationResult {
	res := &crmsync.PropagationResult{
		State:       crmsync.PropagationPending,
		RateLimited: true,
		RetryAfter:  retryAfter,
	}
	res.Queued = s.enqueue(ctx, tasks)
	return res
}

// RetryPropagation re-sends status updates left pending or degraded by earlier runs
func (s *SyncService) RetryPropagation(ctx context.Context) (*crmsync.PropagationResult, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: no propagation queue configured", crmsync.ErrTransport)
	}
	tasks, ok := s.queue.LoadOutstandingPropagationTasks(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: unable to read propagation queue", crmsync.ErrTransport)
	}
	if len(tasks) == 0 {
		return &crmsync.PropagationResult{State: crmsync.PropagationPropagated}, nil
	}

	res := s.propagate(ctx, tasks, false)
	// Successful tasks are persisted too so they leave the outstanding set
	if !s.queue.SavePropagationTasks(ctx, tasks) {
		s.logger.Warn("Failed to persist propagation retry results", zap.Int("tasks", len(tasks)))
	}
	return res, nil
}

func (s *SyncService) enqueue(ctx context.Context, tasks []*crmsync.PropagationTask) int {
	if len(tasks) == 0 {
		return 0
	}
	if s.queue == nil {
		s.logger.Warn("Status updates not propagated and no queue configured", zap.Int("tasks", len(tasks)))
		return 0
	}
	if !s.queue.SavePropagationTasks(ctx, tasks) {
		s.logger.Warn("Failed to queue status updates", zap.Int("tasks", len(tasks)))
		return 0
	}
	return len(tasks)
}

func countPropagation(res *crmsync.PropagationResult, t *crmsync.PropagationTask, ok bool) {
	switch {
	case t.Target == crmsync.TargetExpectation && ok:
		res.ExpectationsUpdated++
	case t.Target == crmsync.TargetExpectation:
		res.ExpectationsFailed++
	case ok:
		res.LineItemsUpdated++
	default:
		res.LineItemsFailed++
	}
}
