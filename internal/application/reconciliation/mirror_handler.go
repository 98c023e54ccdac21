package reconciliation

import (
	"context"
	"fmt"

	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MirrorHandler writes committed session changes through to the local mirror.
// Staging and selection events are not mirrored.
type MirrorHandler struct {
	mirror reconciliation.Mirror
	logger *zap.Logger
}

// NewMirrorHandler creates a new MirrorHandler
func NewMirrorHandler(mirror reconciliation.Mirror, logger *zap.Logger) *MirrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorHandler{
		mirror: mirror,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *MirrorHandler) EventTypes() []string {
	return []string{
		reconciliation.EventTypeMatchConfirmed,
		reconciliation.EventTypeLineItemApprovedUnmatched,
		reconciliation.EventTypePaymentReconciled,
		reconciliation.EventTypeExpectationInvalidated,
	}
}

// Handle mirrors the state carried by the event
func (h *MirrorHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *reconciliation.MatchConfirmedEvent:
		return h.matchConfirmed(ctx, e)
	case *reconciliation.LineItemApprovedUnmatchedEvent:
		return h.payment(ctx, e.Payment)
	case *reconciliation.PaymentReconciledEvent:
		return h.payment(ctx, e.Payment)
	case *reconciliation.ExpectationInvalidatedEvent:
		if !h.mirror.UpdateExpectation(ctx, e.Expectation) {
			return fmt.Errorf("mirror: expectation %s not written", e.Expectation.ID)
		}
		return nil
	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}

func (h *MirrorHandler) matchConfirmed(ctx context.Context, e *reconciliation.MatchConfirmedEvent) error {
	failed := 0
	if !h.mirror.UpdatePayment(ctx, e.Payment) {
		failed++
	}
	for _, exp := range e.Expectations {
		if !h.mirror.UpdateExpectation(ctx, exp) {
			failed++
		}
	}
	if !h.mirror.SaveMatch(ctx, e.Match) {
		failed++
		// The backlog must survive even when the match row could not be written
		for _, p := range e.Match.Pairings {
			h.mirror.SavePendingMatch(ctx, p)
		}
	}
	if failed > 0 {
		h.logger.Warn("Confirmed match partially mirrored",
			zap.String("match_id", e.Match.ID.String()),
			zap.Int("failed_writes", failed),
		)
		return fmt.Errorf("mirror: %d writes failed for match %s", failed, e.Match.ID)
	}
	return nil
}

func (h *MirrorHandler) payment(ctx context.Context, p *reconciliation.Payment) error {
	if !h.mirror.UpdatePayment(ctx, p) {
		return fmt.Errorf("mirror: payment %s not written", p.ID)
	}
	return nil
}
