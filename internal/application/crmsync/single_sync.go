package crmsync

import (
	"context"
	"fmt"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncMatch performs the three writes for one pairing in order: create the
// match, then update the line item and the expectation. Only a failure of the
// first write is returned; later failures become warnings and queued updates.
func (s *SyncService) SyncMatch(ctx context.Context, record crmsync.MatchRecord) (*crmsync.SingleSyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "crmsync.sync_match",
		telemetry.SpanAttrMatchID, record.MatchID.String(),
		telemetry.SpanAttrLineItemID, record.LineItemID.String(),
	)
	defer span.End()

	if err := s.validate.Struct(record); err != nil {
		err = fmt.Errorf("%w: %v", crmsync.ErrValidation, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	remoteID, err := s.crm.CreateMatch(ctx, record)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.ledger != nil && !s.ledger.MarkSynced(ctx, []uuid.UUID{record.LocalID}) {
		s.logger.Warn("Failed to record synced pairing", zap.String("pairing_id", record.LocalID.String()))
	}

	result := &crmsync.SingleSyncResult{LocalID: record.LocalID, RemoteMatchID: remoteID}
	lineTasks, expTasks := crmsync.BuildPropagationTasks([]crmsync.MatchRecord{record}, s.now())
	var outstanding []*crmsync.PropagationTask

	for _, task := range append(lineTasks, expTasks...) {
		if err := s.crm.UpdateRecord(ctx, task.Module(), task.Update()); err != nil {
			task.MarkDegraded(err.Error(), s.now())
			outstanding = append(outstanding, task)
			warning := fmt.Sprintf("%s %s not updated: %v", task.Target, task.RemoteID, err)
			result.Warnings = append(result.Warnings, warning)
			s.logger.Warn("Match created but status update failed",
				zap.String("target", string(task.Target)),
				zap.String("remote_id", task.RemoteID),
				zap.String("remote_match_id", remoteID),
				zap.Error(err),
			)
			continue
		}
		task.MarkPropagated(s.now())
		if task.Target == crmsync.TargetExpectation {
			result.ExpectationUpdated = true
		} else {
			result.LineItemUpdated = true
		}
	}
	s.enqueue(ctx, outstanding)
	return result, nil
}
