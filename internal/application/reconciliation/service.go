package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	crmsyncapp "github.com/feerecon/backend/internal/application/crmsync"
	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PairingSyncer pushes confirmed pairings to the CRM
type PairingSyncer interface {
	SyncPairings(ctx context.Context, pairings []reconciliation.Pairing) *crmsync.BatchSyncResult
	SyncMatch(ctx context.Context, record crmsync.MatchRecord) (*crmsync.SingleSyncResult, error)
	SyncPending(ctx context.Context) (*crmsync.BatchSyncResult, error)
	RetryPropagation(ctx context.Context) (*crmsync.PropagationResult, error)
	DataCheck(ctx context.Context, source crmsync.Source) (*crmsync.DataCheckReport, error)
}

// Downloader fetches fresh working data from the CRM
type Downloader interface {
	Download(ctx context.Context) (*crmsyncapp.DownloadResult, error)
}

// Config controls optional behaviour of the Service
type Config struct {
	// SyncOnConfirm pushes the pairings of a confirmed match straight away
	SyncOnConfirm bool
}

// Service runs reconciliation operations against a single shared session.
// Every operation holds the session lock, then publishes the events the
// session raised so the mirror and other subscribers see them in order.
type Service struct {
	mu         sync.Mutex
	session    *reconciliation.Session
	events     shared.EventPublisher
	mirror     reconciliation.Mirror
	syncer     PairingSyncer
	downloader Downloader
	source     crmsync.Source
	metrics    *telemetry.ReconciliationMetrics
	logger     *zap.Logger
	cfg        Config
}

// Option configures a Service
type Option func(*Service)

// WithSyncer sets the CRM sync collaborator
func WithSyncer(s PairingSyncer) Option {
	return func(svc *Service) { svc.syncer = s }
}

// WithDownloader sets the CRM download collaborator
func WithDownloader(d Downloader) Option {
	return func(svc *Service) { svc.downloader = d }
}

// WithSource sets the CRM read port used for data checks
func WithSource(src crmsync.Source) Option {
	return func(svc *Service) { svc.source = src }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *telemetry.ReconciliationMetrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// NewService creates a new Service
func NewService(
	session *reconciliation.Session,
	events shared.EventPublisher,
	mirror reconciliation.Mirror,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		session: session,
		events:  events,
		mirror:  mirror,
		logger:  logger,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// publish drains and delivers the session's pending events. Delivery
// failures are logged only; the session state is already committed.
func (s *Service) publish(ctx context.Context) {
	events := s.session.PullDomainEvents()
	if len(events) == 0 || s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to deliver session events",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

// Restore loads the last mirrored state into the session. It reports false
// when the mirror could not be read.
func (s *Service) Restore(ctx context.Context) bool {
	if s.mirror == nil {
		return false
	}
	snap, ok := s.mirror.LoadAll(ctx)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Load(snap)
	s.publish(ctx)

	s.logger.Info("Session restored from mirror",
		zap.Int("payments", len(snap.Payments)),
		zap.Int("expectations", len(snap.Expectations)),
		zap.Int("matches", len(snap.Matches)),
	)
	return true
}

// Download replaces the session data with a fresh copy from the CRM.
// It refuses while confirmed pairings are waiting to be synced.
func (s *Service) Download(ctx context.Context) (*crmsyncapp.DownloadResult, error) {
	if s.downloader == nil {
		return nil, fmt.Errorf("%w: download is not configured", crmsync.ErrTransport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.session.UnsyncedPairings()); n > 0 {
		return nil, fmt.Errorf("%w: %d pairings not yet synced", crmsync.ErrUnsyncedMatches, n)
	}
	result, err := s.downloader.Download(ctx)
	if err != nil {
		return nil, err
	}

	s.session.Load(result.Snapshot)
	if s.mirror != nil && !s.mirror.SaveAll(ctx, result.Snapshot.Payments, result.Snapshot.Expectations) {
		s.logger.Warn("Downloaded data not mirrored",
			zap.Int("payments", result.Payments),
			zap.Int("expectations", result.Expectations),
		)
	}
	s.publish(ctx)
	return result, nil
}

// Load replaces the session data with the given snapshot and mirrors it
func (s *Service) Load(ctx context.Context, snap reconciliation.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Load(snap)
	if s.mirror != nil {
		s.mirror.SaveAll(ctx, snap.Payments, snap.Expectations)
	}
	s.publish(ctx)
}

// State returns a read-only view of the session
func (s *Service) State(ctx context.Context) *SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildView(s.session)
}

// Summary returns the progress view of a payment
func (s *Service) Summary(ctx context.Context, paymentID uuid.UUID) (*reconciliation.PaymentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Summary(paymentID)
}

// SelectPayment makes a payment the working payment
func (s *Service) SelectPayment(ctx context.Context, paymentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.SelectPayment(paymentID)
	s.publish(ctx)
	return err
}

// SelectLineItem highlights a line item of the working payment; nil clears it
func (s *Service) SelectLineItem(ctx context.Context, lineItemID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.SelectLineItem(lineItemID)
	s.publish(ctx)
	return err
}

// SetTolerance changes the session tolerance
func (s *Service) SetTolerance(ctx context.Context, t reconciliation.Tolerance) reconciliation.Tolerance {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.SetTolerance(t)
	s.publish(ctx)
	return s.session.Tolerance()
}

// AddPendingMatch stages a manual pairing
func (s *Service) AddPendingMatch(ctx context.Context, lineItemID, expectationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.AddPendingMatch(lineItemID, expectationID) {
		return shared.NewDomainError("INVALID_STATE", "Line item and expectation cannot be staged together")
	}
	s.publish(ctx)
	return nil
}

// RemovePendingMatch withdraws the staged pairing of a line item
func (s *Service) RemovePendingMatch(ctx context.Context, lineItemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.RemovePendingMatch(lineItemID) {
		return shared.NewDomainError("NOT_FOUND", "No pending match for this line item")
	}
	s.publish(ctx)
	return nil
}

// ClearPendingMatches empties the staging set and returns how many were removed
func (s *Service) ClearPendingMatches(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.session.ClearPendingMatches()
	s.publish(ctx)
	return n
}

// AutoMatch stages reference-join candidates within the session tolerance
func (s *Service) AutoMatch(ctx context.Context) (*reconciliation.AutoMatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.auto_match")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.session.AutoMatch()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx)

	if result.DataQuality.HasIssues() {
		s.logger.Warn("Auto-match pool has records that can never pair",
			zap.Int("non_positive_expectations", result.DataQuality.NonPositiveExpectations),
			zap.Int("blank_reference_line_items", result.DataQuality.BlankReferenceLineItems),
			zap.Int("blank_reference_expectations", result.DataQuality.BlankReferenceExpectations),
		)
	}

	telemetry.SetAttributes(span, "staged", len(result.Staged), "candidates", result.Candidates)
	if s.metrics != nil {
		s.metrics.RecordAutoStaged(ctx, "auto_match", len(result.Staged))
	}
	return result, nil
}

// PrescreenStatus returns ladder progress with a preview for the working payment
func (s *Service) PrescreenStatus(ctx context.Context) (*reconciliation.PrescreenStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.PrescreenStatus()
}

// PrescreenPreview projects how many pairings each ladder tolerance would stage
func (s *Service) PrescreenPreview(ctx context.Context) ([]reconciliation.PreviewEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.PrescreenPreview()
}

// RunNextPrescreenPass runs the next ladder tolerance. The bool is false once the ladder is exhausted.
func (s *Service) RunNextPrescreenPass(ctx context.Context) (reconciliation.PrescreenPass, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.prescreen_next")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	pass, ran, err := s.session.RunNextPrescreenPass()
	if err != nil {
		telemetry.RecordError(span, err)
		return pass, false, err
	}
	s.publish(ctx)
	if ran && s.metrics != nil {
		s.metrics.RecordAutoStaged(ctx, "prescreen", pass.Count)
	}
	return pass, ran, nil
}

// RunAllPrescreenPasses runs every remaining ladder tolerance
func (s *Service) RunAllPrescreenPasses(ctx context.Context) ([]reconciliation.PrescreenPass, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.prescreen_all")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	passes, err := s.session.RunAllPrescreenPasses()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx)
	if s.metrics != nil {
		staged := 0
		for _, p := range passes {
			staged += p.Count
		}
		s.metrics.RecordAutoStaged(ctx, "prescreen", staged)
	}
	return passes, nil
}

// ConfirmResult is the outcome of committing the staging set
type ConfirmResult struct {
	Match   *reconciliation.Match          `json:"match"`
	Sync    *crmsync.BatchSyncResult       `json:"sync,omitempty"`
	Summary *reconciliation.PaymentSummary `json:"summary,omitempty"`
}

// Confirm commits the staged pairings as one match. With SyncOnConfirm the
// pairings are pushed to the CRM straight away; a failed push leaves them
// in the unsynced backlog and does not fail the confirmation.
func (s *Service) Confirm(ctx context.Context, notes string) (*ConfirmResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.confirm")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	match, err := s.session.Confirm(notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx)

	telemetry.SetAttributes(span, "match_id", match.ID.String(), "pairings", len(match.Pairings))
	if s.metrics != nil {
		s.metrics.RecordMatchConfirmed(ctx, string(match.Method), string(match.Quality), len(match.Pairings))
	}
	s.logger.Info("Match confirmed",
		zap.String("match_id", match.ID.String()),
		zap.String("payment_id", match.PaymentID.String()),
		zap.Int("pairings", len(match.Pairings)),
		zap.String("method", string(match.Method)),
		zap.String("quality", string(match.Quality)),
	)

	result := &ConfirmResult{Match: match}
	if s.cfg.SyncOnConfirm && s.syncer != nil {
		result.Sync = s.syncLocked(ctx, match.Pairings)
	}
	if summary, err := s.session.Summary(match.PaymentID); err == nil {
		result.Summary = summary
	}
	return result, nil
}

// ApproveLineItemUnmatched resolves a line item without an expectation
func (s *Service) ApproveLineItemUnmatched(ctx context.Context, lineItemID uuid.UUID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.ApproveLineItemUnmatched(lineItemID, notes); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// CompletePayment closes the working payment, approving every open line item.
// It returns how many line items were approved.
func (s *Service) CompletePayment(ctx context.Context, notes string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.session.MarkPaymentFullyReconciled(notes)
	if err != nil {
		return 0, err
	}
	s.publish(ctx)
	return n, nil
}

// InvalidateExpectation withdraws an expectation from matching
func (s *Service) InvalidateExpectation(ctx context.Context, expectationID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.InvalidateExpectation(expectationID, reason); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

// Sync pushes every confirmed pairing not yet acknowledged by the CRM.
// When the session holds none it drains the mirrored backlog instead.
func (s *Service) Sync(ctx context.Context) (*crmsync.BatchSyncResult, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("%w: sync is not configured", crmsync.ErrTransport)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pairings := s.session.UnsyncedPairings(); len(pairings) > 0 {
		return s.syncLocked(ctx, pairings), nil
	}

	result, err := s.syncer.SyncPending(ctx)
	if err != nil {
		return nil, err
	}
	s.session.MarkPairingsSynced(result.ConfirmedIDs())
	s.publish(ctx)
	s.logResult("Backlog synced", result, time.Time{})
	return result, nil
}

// SyncPairing pushes a single unsynced pairing through the sequential
// create-then-update path. A failed status update is reported as a warning
// on the result; only a failed create returns an error.
func (s *Service) SyncPairing(ctx context.Context, pairingID uuid.UUID) (*crmsync.SingleSyncResult, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("%w: sync is not configured", crmsync.ErrTransport)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairing *reconciliation.Pairing
	for _, p := range s.session.UnsyncedPairings() {
		if p.ID == pairingID {
			pairing = &p
			break
		}
	}
	if pairing == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "No unsynced pairing with this ID")
	}

	result, err := s.syncer.SyncMatch(ctx, crmsync.NewMatchRecord(*pairing))
	if err != nil {
		s.logger.Warn("Pairing sync failed",
			zap.String("pairing_id", pairingID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if s.session.MarkPairingsSynced([]uuid.UUID{pairingID}) > 0 {
		s.publish(ctx)
	}

	fields := []zap.Field{
		zap.String("pairing_id", pairingID.String()),
		zap.String("remote_match_id", result.RemoteMatchID),
	}
	if result.IsDegraded() {
		s.logger.Warn("Pairing synced with pending status updates",
			append(fields, zap.Strings("warnings", result.Warnings))...)
	} else {
		s.logger.Info("Pairing synced", fields...)
	}
	return result, nil
}

func (s *Service) syncLocked(ctx context.Context, pairings []reconciliation.Pairing) *crmsync.BatchSyncResult {
	started := time.Now()
	result := s.syncer.SyncPairings(ctx, pairings)
	if changed := s.session.MarkPairingsSynced(result.ConfirmedIDs()); changed > 0 {
		s.publish(ctx)
	}
	s.logResult("Pairings synced", result, started)
	return result
}

func (s *Service) logResult(msg string, result *crmsync.BatchSyncResult, started time.Time) {
	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.Int("requested", result.TotalRequested),
		zap.Int("confirmed", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("not_submitted", result.NotSubmitted),
	}
	if !started.IsZero() {
		fields = append(fields, zap.Duration("elapsed", time.Since(started)))
	}
	if result.IsDegraded() {
		s.logger.Warn(msg+" with degraded status propagation",
			append(fields, zap.String("propagation", string(result.Propagation.State)))...)
		return
	}
	s.logger.Info(msg, fields...)
}

// RetryPropagation re-sends queued status updates
func (s *Service) RetryPropagation(ctx context.Context) (*crmsync.PropagationResult, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("%w: sync is not configured", crmsync.ErrTransport)
	}
	return s.syncer.RetryPropagation(ctx)
}

// DataCheck reports remote record counts
func (s *Service) DataCheck(ctx context.Context) (*crmsync.DataCheckReport, error) {
	if s.syncer == nil || s.source == nil {
		return nil, fmt.Errorf("%w: data check is not configured", crmsync.ErrTransport)
	}
	return s.syncer.DataCheck(ctx, s.source)
}
