package persistence

import (
	"context"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mirrorBatchSize = 100

// GormMirror keeps a best-effort copy of the session in a SQL store.
// Failures are logged and reported as false; callers carry on without it.
type GormMirror struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGormMirror creates a new GormMirror
func NewGormMirror(db *gorm.DB, log *zap.Logger) *GormMirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormMirror{db: db, logger: log.Named("mirror"), now: time.Now}
}

var (
	_ reconciliation.Mirror    = (*GormMirror)(nil)
	_ crmsync.SyncLedger       = (*GormMirror)(nil)
	_ crmsync.PropagationQueue = (*GormMirror)(nil)
)

func (m *GormMirror) failed(ctx context.Context, op string, err error) bool {
	logger.Enrich(ctx, m.logger).Warn("Mirror write failed", zap.String("op", op), zap.Error(err))
	return false
}

// LoadAll implements reconciliation.Mirror
func (m *GormMirror) LoadAll(ctx context.Context) (reconciliation.Snapshot, bool) {
	db := m.db.WithContext(ctx)

	var paymentRows []models.PaymentModel
	err := db.Preload("LineItems", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).Order("payment_date ASC, id ASC").Find(&paymentRows).Error
	if err != nil {
		return reconciliation.Snapshot{}, m.failed(ctx, "load payments", err)
	}

	var expectationRows []models.ExpectationModel
	if err := db.Order("created_at ASC, id ASC").Find(&expectationRows).Error; err != nil {
		return reconciliation.Snapshot{}, m.failed(ctx, "load expectations", err)
	}

	var matchRows []models.MatchModel
	if err := db.Order("matched_at ASC, id ASC").Find(&matchRows).Error; err != nil {
		return reconciliation.Snapshot{}, m.failed(ctx, "load matches", err)
	}
	var pairingRows []models.PairingModel
	if err := db.Order("matched_at ASC, id ASC").Find(&pairingRows).Error; err != nil {
		return reconciliation.Snapshot{}, m.failed(ctx, "load pairings", err)
	}

	byMatch := make(map[uuid.UUID][]reconciliation.Pairing, len(matchRows))
	for i := range pairingRows {
		p := pairingRows[i].ToDomain()
		byMatch[p.MatchID] = append(byMatch[p.MatchID], p)
	}

	snap := reconciliation.Snapshot{
		Payments:     make([]*reconciliation.Payment, 0, len(paymentRows)),
		Expectations: make([]*reconciliation.Expectation, 0, len(expectationRows)),
		Matches:      make([]*reconciliation.Match, 0, len(matchRows)),
	}
	for i := range paymentRows {
		snap.Payments = append(snap.Payments, paymentRows[i].ToDomain())
	}
	for i := range expectationRows {
		snap.Expectations = append(snap.Expectations, expectationRows[i].ToDomain())
	}
	for i := range matchRows {
		snap.Matches = append(snap.Matches, matchRows[i].ToDomain(byMatch[matchRows[i].ID]))
	}
	return snap, true
}

// SaveAll implements reconciliation.Mirror. Matches and pairings are kept.
func (m *GormMirror) SaveAll(ctx context.Context, payments []*reconciliation.Payment, expectations []*reconciliation.Expectation) bool {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.LineItemModel{}, &models.PaymentModel{}, &models.ExpectationModel{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		paymentRows := make([]*models.PaymentModel, 0, len(payments))
		lineItemRows := make([]models.LineItemModel, 0)
		for _, p := range payments {
			row := models.PaymentModelFromDomain(p)
			lineItemRows = append(lineItemRows, row.LineItems...)
			row.LineItems = nil
			paymentRows = append(paymentRows, row)
		}
		if len(paymentRows) > 0 {
			if err := tx.CreateInBatches(paymentRows, mirrorBatchSize).Error; err != nil {
				return err
			}
		}
		if len(lineItemRows) > 0 {
			if err := tx.CreateInBatches(lineItemRows, mirrorBatchSize).Error; err != nil {
				return err
			}
		}

		expectationRows := make([]*models.ExpectationModel, 0, len(expectations))
		for _, e := range expectations {
			expectationRows = append(expectationRows, models.ExpectationModelFromDomain(e))
		}
		if len(expectationRows) > 0 {
			if err := tx.CreateInBatches(expectationRows, mirrorBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return m.failed(ctx, "save all", err)
	}
	return true
}

// UpdateLineItem implements reconciliation.Mirror
func (m *GormMirror) UpdateLineItem(ctx context.Context, paymentID uuid.UUID, li *reconciliation.PaymentLineItem) bool {
	res := m.db.WithContext(ctx).Model(&models.LineItemModel{}).
		Where("id = ? AND payment_id = ?", li.ID, paymentID).
		Updates(map[string]any{
			"status":                 string(li.Status),
			"matched_expectation_id": li.MatchedExpectationID,
			"notes":                  li.Notes,
			"updated_at":             li.UpdatedAt,
		})
	if res.Error != nil {
		return m.failed(ctx, "update line item", res.Error)
	}
	if res.RowsAffected == 0 {
		return m.failed(ctx, "update line item", gorm.ErrRecordNotFound)
	}
	return true
}

// UpdateExpectation implements reconciliation.Mirror
func (m *GormMirror) UpdateExpectation(ctx context.Context, e *reconciliation.Expectation) bool {
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(models.ExpectationModelFromDomain(e)).Error
	if err != nil {
		return m.failed(ctx, "update expectation", err)
	}
	return true
}

// UpdatePayment implements reconciliation.Mirror. Line items are upserted with the payment.
func (m *GormMirror) UpdatePayment(ctx context.Context, p *reconciliation.Payment) bool {
	row := models.PaymentModelFromDomain(p)
	items := row.LineItems
	row.LineItems = nil

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&items).Error
	})
	if err != nil {
		return m.failed(ctx, "update payment", err)
	}
	return true
}

// SaveMatch implements reconciliation.Mirror. Pairings already mirrored keep their sync state.
func (m *GormMirror) SaveMatch(ctx context.Context, match *reconciliation.Match) bool {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(models.MatchModelFromDomain(match)).Error; err != nil {
			return err
		}
		if len(match.Pairings) == 0 {
			return nil
		}
		rows := make([]*models.PairingModel, 0, len(match.Pairings))
		for _, p := range match.Pairings {
			rows = append(rows, models.PairingModelFromDomain(p))
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
	})
	if err != nil {
		return m.failed(ctx, "save match", err)
	}
	return true
}

// SavePendingMatch implements reconciliation.Mirror
func (m *GormMirror) SavePendingMatch(ctx context.Context, pairing reconciliation.Pairing) bool {
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.PairingModelFromDomain(pairing)).Error
	if err != nil {
		return m.failed(ctx, "save pending match", err)
	}
	return true
}

// GetUnsyncedPendingMatches implements reconciliation.Mirror
func (m *GormMirror) GetUnsyncedPendingMatches(ctx context.Context) ([]reconciliation.Pairing, bool) {
	var rows []models.PairingModel
	err := m.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("matched_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, m.failed(ctx, "get unsynced pending matches", err)
	}
	out := make([]reconciliation.Pairing, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, true
}

// MarkSynced implements reconciliation.Mirror and crmsync.SyncLedger
func (m *GormMirror) MarkSynced(ctx context.Context, pairingIDs []uuid.UUID) bool {
	if len(pairingIDs) == 0 {
		return true
	}
	now := m.now()
	err := m.db.WithContext(ctx).Model(&models.PairingModel{}).
		Where("id IN ?", pairingIDs).
		Updates(map[string]any{"synced": true, "synced_at": now}).Error
	if err != nil {
		return m.failed(ctx, "mark synced", err)
	}
	return true
}

// SavePropagationTasks implements crmsync.PropagationQueue
func (m *GormMirror) SavePropagationTasks(ctx context.Context, tasks []*crmsync.PropagationTask) bool {
	if len(tasks) == 0 {
		return true
	}
	rows := make([]*models.PropagationTaskModel, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, models.PropagationTaskModelFromDomain(t))
	}
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, mirrorBatchSize).Error
	if err != nil {
		return m.failed(ctx, "save propagation tasks", err)
	}
	return true
}

// LoadOutstandingPropagationTasks implements crmsync.PropagationQueue
func (m *GormMirror) LoadOutstandingPropagationTasks(ctx context.Context) ([]*crmsync.PropagationTask, bool) {
	var rows []models.PropagationTaskModel
	err := m.db.WithContext(ctx).
		Where("state <> ?", string(crmsync.PropagationPropagated)).
		Order("updated_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, m.failed(ctx, "load propagation tasks", err)
	}
	out := make([]*crmsync.PropagationTask, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, true
}
