package crmsync

import (
	"time"

	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchRecord is one confirmed pairing carrying both local and remote identifiers
type MatchRecord struct {
	LocalID             uuid.UUID                   `validate:"required"`
	MatchID             uuid.UUID                   `validate:"required"`
	PaymentID           uuid.UUID                   `validate:"required"`
	PaymentRemoteID     string                      `validate:"required,max=64"`
	LineItemID          uuid.UUID                   `validate:"required"`
	LineItemRemoteID    string                      `validate:"required,max=64"`
	ExpectationID       uuid.UUID                   `validate:"required"`
	ExpectationRemoteID string                      `validate:"required,max=64"`
	Amount              decimal.Decimal             `validate:"-"`
	ExpectedAmount      decimal.Decimal             `validate:"-"`
	Variance            decimal.Decimal             `validate:"-"`
	VariancePercentage  decimal.Decimal             `validate:"-"`
	Quality             reconciliation.MatchQuality `validate:"required,oneof=perfect good acceptable warning"`
	Method              reconciliation.MatchMethod  `validate:"required,oneof=auto manual ai-suggested"`
	Notes               string                      `validate:"max=2000"`
	Actor               string                      `validate:"max=255"`
	MatchedAt           time.Time                   `validate:"required"`
}

// NewMatchRecord builds the sync record for a confirmed pairing
func NewMatchRecord(p reconciliation.Pairing) MatchRecord {
	return MatchRecord{
		LocalID:             p.ID,
		MatchID:             p.MatchID,
		PaymentID:           p.PaymentID,
		PaymentRemoteID:     p.PaymentRemoteID,
		LineItemID:          p.LineItemID,
		LineItemRemoteID:    p.LineItemRemoteID,
		ExpectationID:       p.ExpectationID,
		ExpectationRemoteID: p.ExpectationRemoteID,
		Amount:              p.LineItemAmount,
		ExpectedAmount:      p.ExpectedAmount,
		Variance:            p.Variance,
		VariancePercentage:  p.VariancePercentage,
		Quality:             p.Quality,
		Method:              p.Method,
		Notes:               p.Notes,
		Actor:               p.Actor,
		MatchedAt:           p.MatchedAt,
	}
}

// NewMatchRecords builds sync records for pairings, preserving order
func NewMatchRecords(pairings []reconciliation.Pairing) []MatchRecord {
	out := make([]MatchRecord, len(pairings))
	for i, p := range pairings {
		out[i] = NewMatchRecord(p)
	}
	return out
}

// Chunk splits records into consecutive slices of at most size elements
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
