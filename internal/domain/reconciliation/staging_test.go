package reconciliation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func pending(li, exp uuid.UUID, liAmount, expAmount string) PendingMatch {
	return PendingMatch{
		LineItemID:     li,
		ExpectationID:  exp,
		LineItemAmount: dec(liAmount),
		ExpectedAmount: dec(expAmount),
	}
}

func TestPendingMatchSet(t *testing.T) {
	li1, li2, li3 := uuid.New(), uuid.New(), uuid.New()
	e1, e2, e3 := uuid.New(), uuid.New(), uuid.New()

	t.Run("one pending match per line item and per expectation", func(t *testing.T) {
		s := NewPendingMatchSet()
		assert.True(t, s.Add(pending(li1, e1, "10", "10")))
		assert.False(t, s.Add(pending(li1, e1, "10", "10")))
		assert.False(t, s.Add(pending(li1, e2, "10", "10")))
		assert.False(t, s.Add(pending(li2, e1, "10", "10")))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("remove and re-add", func(t *testing.T) {
		s := NewPendingMatchSet()
		s.Add(pending(li1, e1, "10", "10"))
		s.Add(pending(li2, e2, "20", "25"))
		s.Add(pending(li3, e3, "30", "30"))

		removed, ok := s.Remove(li2)
		assert.True(t, ok)
		assert.Equal(t, e2, removed.ExpectationID)
		assert.False(t, s.HasExpectation(e2))

		_, ok = s.Remove(li2)
		assert.False(t, ok)

		assert.True(t, s.HasLineItem(li3))
		assert.True(t, s.Add(pending(li2, e2, "20", "25")))

		all := s.All()
		assert.Equal(t, []uuid.UUID{li1, li3, li2}, []uuid.UUID{all[0].LineItemID, all[1].LineItemID, all[2].LineItemID})
	})

	t.Run("remove by expectation", func(t *testing.T) {
		s := NewPendingMatchSet()
		s.Add(pending(li1, e1, "10", "10"))
		_, ok := s.RemoveByExpectation(e1)
		assert.True(t, ok)
		assert.True(t, s.IsEmpty())
	})

	t.Run("totals and clear", func(t *testing.T) {
		s := NewPendingMatchSet()
		s.Add(pending(li1, e1, "10.50", "10"))
		s.Add(pending(li2, e2, "20", "25"))

		liTotal, expTotal := s.Totals()
		assert.True(t, liTotal.Equal(dec("30.50")))
		assert.True(t, expTotal.Equal(dec("35")))

		assert.Equal(t, 2, s.Clear())
		assert.Equal(t, 0, s.Clear())
		assert.False(t, s.HasLineItem(li1))
	})
}
