package reconciliation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingMatchSet is the 1:1 working set of proposed pairings for the selected payment.
// At most one pending match exists per line item and per expectation.
type PendingMatchSet struct {
	items         []PendingMatch
	byLineItem    map[uuid.UUID]int
	byExpectation map[uuid.UUID]int
}

// NewPendingMatchSet creates an empty set
func NewPendingMatchSet() *PendingMatchSet {
	return &PendingMatchSet{
		items:         make([]PendingMatch, 0),
		byLineItem:    make(map[uuid.UUID]int),
		byExpectation: make(map[uuid.UUID]int),
	}
}

// Add appends the pending match unless either side is already staged.
// Returns false when the add was a no-op.
func (s *PendingMatchSet) Add(pm PendingMatch) bool {
	if s.HasLineItem(pm.LineItemID) || s.HasExpectation(pm.ExpectationID) {
		return false
	}
	s.items = append(s.items, pm)
	s.reindex()
	return true
}

// Remove drops the pending match for a line item, if any
func (s *PendingMatchSet) Remove(lineItemID uuid.UUID) (PendingMatch, bool) {
	idx, ok := s.byLineItem[lineItemID]
	if !ok {
		return PendingMatch{}, false
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.reindex()
	return removed, true
}

// RemoveByExpectation drops the pending match targeting an expectation, if any
func (s *PendingMatchSet) RemoveByExpectation(expectationID uuid.UUID) (PendingMatch, bool) {
	idx, ok := s.byExpectation[expectationID]
	if !ok {
		return PendingMatch{}, false
	}
	return s.Remove(s.items[idx].LineItemID)
}

// Clear empties the set and returns how many pending matches were dropped
func (s *PendingMatchSet) Clear() int {
	n := len(s.items)
	s.items = make([]PendingMatch, 0)
	s.byLineItem = make(map[uuid.UUID]int)
	s.byExpectation = make(map[uuid.UUID]int)
	return n
}

// HasLineItem reports whether the line item is staged
func (s *PendingMatchSet) HasLineItem(id uuid.UUID) bool {
	_, ok := s.byLineItem[id]
	return ok
}

// HasExpectation reports whether the expectation is staged
func (s *PendingMatchSet) HasExpectation(id uuid.UUID) bool {
	_, ok := s.byExpectation[id]
	return ok
}

// Len returns the number of pending matches
func (s *PendingMatchSet) Len() int {
	return len(s.items)
}

// IsEmpty returns true if nothing is staged
func (s *PendingMatchSet) IsEmpty() bool {
	return len(s.items) == 0
}

// All returns a copy of the pending matches in staging order
func (s *PendingMatchSet) All() []PendingMatch {
	return append([]PendingMatch(nil), s.items...)
}

// Totals returns the summed line item and expected amounts
func (s *PendingMatchSet) Totals() (lineItemTotal, expectedTotal decimal.Decimal) {
	lineItemTotal, expectedTotal = decimal.Zero, decimal.Zero
	for _, pm := range s.items {
		lineItemTotal = lineItemTotal.Add(pm.LineItemAmount)
		expectedTotal = expectedTotal.Add(pm.ExpectedAmount)
	}
	return lineItemTotal, expectedTotal
}

func (s *PendingMatchSet) reindex() {
	s.byLineItem = make(map[uuid.UUID]int, len(s.items))
	s.byExpectation = make(map[uuid.UUID]int, len(s.items))
	for i, pm := range s.items {
		s.byLineItem[pm.LineItemID] = i
		s.byExpectation[pm.ExpectationID] = i
	}
}
