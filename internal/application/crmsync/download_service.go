package crmsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// remoteNamespace seeds local identifiers derived from remote record ids, so
// repeated downloads of the same record produce the same local id.
var remoteNamespace = uuid.MustParse("5b0f3c9e-2d41-4f7a-8c66-1e9a7d3b2f10")

// LocalID returns the stable local identifier for a remote record
func LocalID(module crmsync.Module, remoteID string) uuid.UUID {
	return uuid.NewSHA1(remoteNamespace, []byte(string(module)+":"+remoteID))
}

// DownloadConfig controls paging and pacing of reads
type DownloadConfig struct {
	PageSize  int
	ReadDelay time.Duration
	MaxPages  int
}

// DownloadResult is the working data fetched from the CRM
type DownloadResult struct {
	Snapshot         reconciliation.Snapshot  `json:"-"`
	Providers        []crmsync.RemoteProvider `json:"providers"`
	Payments         int                      `json:"payments"`
	LineItems        int                      `json:"line_items"`
	Expectations     int                      `json:"expectations"`
	PaymentPages     int                      `json:"payment_pages"`
	ExpectationPages int                      `json:"expectation_pages"`
	Skipped          []string                 `json:"skipped,omitempty"`
	DownloadedAt     time.Time                `json:"downloaded_at"`
}

// DownloadService fetches providers, payments, line items and expectations
// with a fixed delay between reads
type DownloadService struct {
	source  crmsync.Source
	backlog PairingBacklog
	sleeper Sleeper
	logger  *zap.Logger
	cfg     DownloadConfig
	now     func() time.Time
}

// NewDownloadService creates a new DownloadService
func NewDownloadService(source crmsync.Source, backlog PairingBacklog, cfg DownloadConfig, logger *zap.Logger) *DownloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	return &DownloadService{
		source:  source,
		backlog: backlog,
		sleeper: TimerSleeper,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetSleeper replaces the timer used between reads
func (d *DownloadService) SetSleeper(sl Sleeper) {
	d.sleeper = sl
}

// EnsureNoUnsynced returns ErrUnsyncedMatches while confirmed pairings await sync
func (d *DownloadService) EnsureNoUnsynced(ctx context.Context) error {
	if d.backlog == nil {
		return nil
	}
	pending, ok := d.backlog.GetUnsyncedPendingMatches(ctx)
	if !ok {
		return fmt.Errorf("%w: unable to read unsynced matches", crmsync.ErrTransport)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %d pairings not yet synced", crmsync.ErrUnsyncedMatches, len(pending))
	}
	return nil
}

// Download fetches all working data. It refuses while unsynced pairings exist.
func (d *DownloadService) Download(ctx context.Context) (*DownloadResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "crmsync.download")
	defer span.End()

	if err := d.EnsureNoUnsynced(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &DownloadResult{}
	providers, err := d.source.GetProviders(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Providers = providers

	remotePayments, err := d.payments(ctx, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	remoteExpectations, err := d.expectations(ctx, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	expectations := make([]*reconciliation.Expectation, 0, len(remoteExpectations))
	for _, re := range remoteExpectations {
		expectations = append(expectations, ToExpectation(re))
	}
	payments := make([]*reconciliation.Payment, 0, len(remotePayments))
	for _, rp := range remotePayments {
		p, err := ToPayment(rp)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("payment %s: %v", rp.ID, err))
			d.logger.Warn("Skipping remote payment", zap.String("remote_id", rp.ID), zap.Error(err))
			continue
		}
		result.LineItems += len(p.LineItems)
		payments = append(payments, p)
	}

	result.Snapshot = reconciliation.Snapshot{Payments: payments, Expectations: expectations}
	result.Payments = len(payments)
	result.Expectations = len(expectations)
	result.DownloadedAt = d.now()

	telemetry.SetAttributes(span, "payments", result.Payments, "expectations", result.Expectations)
	d.logger.Info("Downloaded reconciliation data",
		zap.Int("providers", len(providers)),
		zap.Int("payments", result.Payments),
		zap.Int("line_items", result.LineItems),
		zap.Int("expectations", result.Expectations),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (d *DownloadService) payments(ctx context.Context, result *DownloadResult) ([]crmsync.RemotePayment, error) {
	var out []crmsync.RemotePayment
	for page := 1; page <= d.cfg.MaxPages; page++ {
		if err := d.sleeper.Sleep(ctx, d.cfg.ReadDelay); err != nil {
			return nil, err
		}
		p, err := d.source.GetPayments(ctx, page, d.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		result.PaymentPages++
		out = append(out, p.Items...)
		if !p.HasMore {
			break
		}
	}

	for i := range out {
		if len(out[i].LineItems) > 0 {
			continue
		}
		if err := d.sleeper.Sleep(ctx, d.cfg.ReadDelay); err != nil {
			return nil, err
		}
		items, err := d.source.GetPaymentLineItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LineItems = items
	}
	return out, nil
}

func (d *DownloadService) expectations(ctx context.Context, result *DownloadResult) ([]crmsync.RemoteExpectation, error) {
	var out []crmsync.RemoteExpectation
	for page := 1; page <= d.cfg.MaxPages; page++ {
		if err := d.sleeper.Sleep(ctx, d.cfg.ReadDelay); err != nil {
			return nil, err
		}
		p, err := d.source.GetExpectations(ctx, page, d.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		result.ExpectationPages++
		out = append(out, p.Items...)
		if !p.HasMore {
			break
		}
	}
	return out, nil
}

// ToPayment maps a remote payment and its line items to the domain model
func ToPayment(rp crmsync.RemotePayment) (*reconciliation.Payment, error) {
	items := make([]*reconciliation.PaymentLineItem, 0, len(rp.LineItems))
	for _, rli := range rp.LineItems {
		items = append(items, ToLineItem(rli))
	}

	p, err := reconciliation.NewPayment(rp.ID, rp.ProviderName, rp.PaymentReference, rp.Amount, rp.PaymentDate, items)
	if err != nil {
		return nil, err
	}
	p.ID = LocalID(crmsync.ModulePayments, rp.ID)
	p.Notes = rp.Notes
	p.ReconciledAmount = rp.ReconciledAmount
	p.RemainingAmount = rp.Amount.Sub(rp.ReconciledAmount)
	if status := reconciliation.PaymentStatus(normalizeStatus(rp.Status)); status.IsValid() {
		p.Status = status
	}
	return p, nil
}

// ToLineItem maps a remote line item to the domain model
func ToLineItem(rli crmsync.RemoteLineItem) *reconciliation.PaymentLineItem {
	li := reconciliation.NewPaymentLineItem(rli.ID, rli.ClientName, rli.PlanReference, rli.Amount)
	li.ID = LocalID(crmsync.ModulePaymentLineItems, rli.ID)
	li.AgencyCode = rli.AgencyCode
	li.FeeCategory = rli.FeeCategory
	li.Notes = rli.Notes
	if status := reconciliation.LineItemStatus(normalizeStatus(rli.Status)); status.IsValid() {
		li.Status = status
	}
	if rli.MatchedExpectationID != "" {
		id := LocalID(crmsync.ModuleExpectations, rli.MatchedExpectationID)
		li.MatchedExpectationID = &id
	}
	return li
}

// ToExpectation maps a remote expectation to the domain model
func ToExpectation(re crmsync.RemoteExpectation) *reconciliation.Expectation {
	e := reconciliation.NewExpectation(re.ID, re.ClientName, re.PlanReference, re.ProviderName, re.ExpectedAmount)
	e.ID = LocalID(crmsync.ModuleExpectations, re.ID)
	e.CalculationDate = re.CalculationDate
	e.FeeCategory = re.FeeCategory
	e.FeeType = re.FeeType
	e.AdviserName = re.AdviserName
	e.GroupingCompany = re.GroupingCompany
	e.AllocatedAmount = re.AllocatedAmount
	e.RemainingAmount = re.ExpectedAmount.Sub(re.AllocatedAmount)
	if status := reconciliation.ExpectationStatus(normalizeStatus(re.Status)); status.IsValid() {
		e.Status = status
	}
	return e
}

// normalizeStatus turns remote picklist values such as "Approved Unmatched" into enum form
func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}
