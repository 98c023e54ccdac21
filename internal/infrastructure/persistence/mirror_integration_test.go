package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupPostgresMirror starts a throwaway PostgreSQL container and applies the
// versioned migrations to it.
func setupPostgresMirror(t *testing.T) (*GormMirror, *Database) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("feerecon_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	db := &Database{DB: gdb, driver: "postgres", logger: log}
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	// a second run finds nothing to apply
	require.NoError(t, db.Migrate(ctx))

	return NewGormMirror(gdb, log), db
}

func TestGormMirror_PostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror, db := setupPostgresMirror(t)
	require.NoError(t, db.Ping(ctx))

	p := samplePayment(t)
	e := sampleExpectation()
	require.True(t, mirror.SaveAll(ctx, []*reconciliation.Payment{p}, []*reconciliation.Expectation{e}))
	// saving the same rows again goes through the upsert path
	require.True(t, mirror.SaveAll(ctx, []*reconciliation.Payment{p}, []*reconciliation.Expectation{e}))

	snap, ok := mirror.LoadAll(ctx)
	require.True(t, ok)
	require.Len(t, snap.Payments, 1)
	require.Len(t, snap.Expectations, 1)
	require.Len(t, snap.Payments[0].LineItems, 2)
	assert.Equal(t, "li-1", snap.Payments[0].LineItems[0].RemoteID)
	assert.True(t, snap.Payments[0].Amount.Equal(decimal.RequireFromString("622.50")))
	assert.True(t, snap.Expectations[0].ExpectedAmount.Equal(decimal.NewFromInt(500)))
}

func TestGormMirror_PostgresSyncBacklog(t *testing.T) {
	ctx := context.Background()
	mirror, _ := setupPostgresMirror(t)
	base := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	first := samplePairing(base)
	second := samplePairing(base.Add(time.Minute))
	second.MatchID = first.MatchID
	require.True(t, mirror.SavePendingMatch(ctx, second))
	require.True(t, mirror.SavePendingMatch(ctx, first))
	// duplicates are ignored
	require.True(t, mirror.SavePendingMatch(ctx, first))

	pending, ok := mirror.GetUnsyncedPendingMatches(ctx)
	require.True(t, ok)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.True(t, pending[0].LineItemAmount.Equal(decimal.RequireFromString("502.50")))
	assert.True(t, pending[0].VariancePercentage.Equal(decimal.RequireFromString("0.5")))

	require.True(t, mirror.MarkSynced(ctx, []uuid.UUID{first.ID}))
	pending, ok = mirror.GetUnsyncedPendingMatches(ctx)
	require.True(t, ok)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	match := &reconciliation.Match{
		ID:                  first.MatchID,
		PaymentID:           first.PaymentID,
		ExpectationIDs:      []uuid.UUID{first.ExpectationID, second.ExpectationID},
		TotalMatchedAmount:  decimal.NewFromInt(1005),
		TotalExpectedAmount: decimal.NewFromInt(1000),
		Variance:            decimal.NewFromInt(5),
		VariancePercentage:  decimal.RequireFromString("0.5"),
		Type:                reconciliation.MatchTypeMulti,
		Method:              reconciliation.MatchMethodManual,
		Quality:             reconciliation.MatchQualityGood,
		MatchedAt:           base,
		Confirmed:           true,
		Pairings:            []reconciliation.Pairing{first, second},
	}
	require.True(t, mirror.SaveMatch(ctx, match))
	require.True(t, mirror.SaveMatch(ctx, match))

	snap, ok := mirror.LoadAll(ctx)
	require.True(t, ok)
	require.Len(t, snap.Matches, 1)
	require.Len(t, snap.Matches[0].Pairings, 2)
	assert.True(t, snap.Matches[0].Pairings[0].Synced, "existing sync state survives")
	assert.False(t, snap.Matches[0].Pairings[1].Synced)

	require.True(t, mirror.MarkSynced(ctx, []uuid.UUID{second.ID}))
	pending, ok = mirror.GetUnsyncedPendingMatches(ctx)
	require.True(t, ok)
	assert.Empty(t, pending)
}
