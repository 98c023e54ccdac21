package reconciliation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairKey struct {
	lineItem    uuid.UUID
	expectation uuid.UUID
}

// ladderFixture builds a payment whose line items vary from their expectations by
// 0%, 0.5%, 3%, 7%, 20% and 60%, plus a shared reference and a zero-value expectation.
func ladderFixture(t *testing.T) (*Payment, []*Expectation) {
	t.Helper()
	items := []*PaymentLineItem{
		newLineItem("R1", "100"),
		newLineItem("R2", "100.50"),
		newLineItem("R3", "103"),
		newLineItem("R4", "107"),
		newLineItem("R5", "120"),
		newLineItem("R6", "160"),
		newLineItem("DUP", "100"),
		newLineItem("DUP", "250"),
		newLineItem("ZERO", "40"),
	}
	exps := []*Expectation{
		newExpectation("R6", "100"),
		newExpectation("R5", "100"),
		newExpectation("R4", "100"),
		newExpectation("R3", "100"),
		newExpectation("R2", "100"),
		newExpectation("R1", "100"),
		newExpectation("DUP", "250"),
		newExpectation("DUP", "100"),
		newExpectation("ZERO", "0"),
	}
	return newTestPayment(t, "1180.50", items...), exps
}

func TestPrescreen_LadderMatchesSinglePass(t *testing.T) {
	payment, exps := ladderFixture(t)

	ladderSession := newLoadedSession(t, []*Payment{payment}, exps)
	require.NoError(t, ladderSession.SelectPayment(payment.ID))
	passes, err := ladderSession.RunAllPrescreenPasses()
	require.NoError(t, err)
	require.Len(t, passes, 6)

	seenLines := make(map[uuid.UUID]int)
	seenExps := make(map[uuid.UUID]int)
	union := make(map[pairKey]bool)
	for _, pass := range passes {
		for _, pm := range pass.Staged {
			seenLines[pm.LineItemID]++
			seenExps[pm.ExpectationID]++
			union[pairKey{pm.LineItemID, pm.ExpectationID}] = true
		}
	}
	for id, n := range seenLines {
		assert.Equal(t, 1, n, "line item %s staged in more than one pass", id)
	}
	for id, n := range seenExps {
		assert.Equal(t, 1, n, "expectation %s staged in more than one pass", id)
	}

	singleSession := newLoadedSession(t, []*Payment{payment}, exps, WithTolerance(InfiniteTolerance()))
	require.NoError(t, singleSession.SelectPayment(payment.ID))
	result, err := singleSession.AutoMatch()
	require.NoError(t, err)

	single := make(map[pairKey]bool)
	for _, pm := range result.Staged {
		single[pairKey{pm.LineItemID, pm.ExpectationID}] = true
	}
	assert.Equal(t, single, union)
	assert.Len(t, union, 8)
}

func TestPrescreen_PassCounts(t *testing.T) {
	payment, exps := ladderFixture(t)
	s := newLoadedSession(t, []*Payment{payment}, exps)
	require.NoError(t, s.SelectPayment(payment.ID))

	// DUP pairs first-fit: 100 -> 250 (-60%) and 250 -> 100 (+150%)
	want := []int{1, 1, 1, 1, 1, 3}
	for i, tol := range DefaultToleranceLadder() {
		pass, ok, err := s.RunNextPrescreenPass()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, pass.Tolerance.Equal(tol))
		assert.Equal(t, i+1, pass.Number)
		assert.Equal(t, want[i], pass.Count, "pass at %s", tol)
		assert.Len(t, pass.Staged, pass.Count)
	}

	_, ok, err := s.RunNextPrescreenPass()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.PrescreenHistory(), 6)
	assert.Len(t, s.PendingMatches(), 8)
}

func TestPrescreen_PreviewIsPure(t *testing.T) {
	payment, exps := ladderFixture(t)
	s := newLoadedSession(t, []*Payment{payment}, exps)
	require.NoError(t, s.SelectPayment(payment.ID))
	s.ClearDomainEvents()

	preview, err := s.PrescreenPreview()
	require.NoError(t, err)
	counts := make([]int, len(preview))
	for i, e := range preview {
		counts[i] = e.Count
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 8}, counts)
	assert.Empty(t, s.PendingMatches())
	assert.Empty(t, s.GetDomainEvents())

	_, _, err = s.RunNextPrescreenPass()
	require.NoError(t, err)
	preview, err = s.PrescreenPreview()
	require.NoError(t, err)
	assert.Equal(t, 0, preview[0].Count)
	assert.Equal(t, 7, preview[5].Count)

	status, err := s.PrescreenStatus()
	require.NoError(t, err)
	assert.False(t, status.Recommended)
	require.NotNil(t, status.NextTolerance)
	assert.Equal(t, "1%", status.NextTolerance.String())
	assert.Len(t, status.Passes, 1)
	assert.Equal(t, []string{"0%", "1%", "5%", "10%", "25%", "∞"}, status.Ladder)
}

func TestPrescreen_ConfirmRecordsTolerances(t *testing.T) {
	payment, exps := ladderFixture(t)
	s := newLoadedSession(t, []*Payment{payment}, exps)
	require.NoError(t, s.SelectPayment(payment.ID))

	for i := 0; i < 3; i++ {
		_, _, err := s.RunNextPrescreenPass()
		require.NoError(t, err)
	}

	m, err := s.Confirm("first sweep")
	require.NoError(t, err)
	assert.Equal(t, MatchMethodAuto, m.Method)
	assert.Equal(t, "first sweep; Prescreening tolerances: 0%, 1%, 5%", m.Notes)
	assert.Len(t, m.Pairings, 3)
	assert.Empty(t, s.PrescreenHistory())

	// A manual pairing downgrades the method
	require.True(t, s.AddPendingMatch(payment.LineItems[5].ID, exps[0].ID))
	m, err = s.Confirm("")
	require.NoError(t, err)
	assert.Equal(t, MatchMethodManual, m.Method)
	assert.Equal(t, "", m.Notes)
}

func TestPrescreen_RequiresSelection(t *testing.T) {
	s := NewSession()
	_, err := s.PrescreenPreview()
	assert.Error(t, err)
	_, _, err = s.RunNextPrescreenPass()
	assert.Error(t, err)
	_, err = s.RunAllPrescreenPasses()
	assert.Error(t, err)
}

func TestPrescreen_Recommended(t *testing.T) {
	items := make([]*PaymentLineItem, 0, 3)
	for i := 0; i < 3; i++ {
		items = append(items, newLineItem("X", "1"))
	}
	payment := newTestPayment(t, "3", items...)
	s := newLoadedSession(t, []*Payment{payment}, nil, WithPrescreenThreshold(3))
	require.NoError(t, s.SelectPayment(payment.ID))
	status, err := s.PrescreenStatus()
	require.NoError(t, err)
	assert.True(t, status.Recommended)
}
