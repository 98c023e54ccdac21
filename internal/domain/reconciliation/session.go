package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the full working data of a session
type Snapshot struct {
	Payments     []*Payment
	Expectations []*Expectation
	Matches      []*Match
}

// Session owns all payments, expectations, confirmed matches and the
// staging set for one reconciliation user. Every mutation of status or
// amounts goes through its methods. A Session is not safe for concurrent use.
type Session struct {
	shared.BaseAggregateRoot

	actor              string
	tolerance          Tolerance
	ladder             ToleranceLadder
	prescreenThreshold int
	now                func() time.Time

	payments     []*Payment
	expectations []*Expectation
	matches      []*Match
	paymentIdx   map[uuid.UUID]*Payment
	expectIdx    map[uuid.UUID]*Expectation

	selectedPaymentID  *uuid.UUID
	selectedLineItemID *uuid.UUID
	pending            *PendingMatchSet
	prescreen          *prescreenRun
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithTolerance sets the initial session tolerance
func WithTolerance(t Tolerance) SessionOption {
	return func(s *Session) { s.tolerance = t }
}

// WithActor sets the name recorded on matches and completions
func WithActor(actor string) SessionOption {
	return func(s *Session) { s.actor = actor }
}

// WithToleranceLadder overrides the prescreening ladder
func WithToleranceLadder(l ToleranceLadder) SessionOption {
	return func(s *Session) {
		if len(l) > 0 {
			s.ladder = l
		}
	}
}

// WithPrescreenThreshold sets the line item count from which prescreening is recommended
func WithPrescreenThreshold(n int) SessionOption {
	return func(s *Session) { s.prescreenThreshold = n }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates an empty session
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		actor:              "system",
		tolerance:          TolerancePercent(DefaultTolerancePercent),
		ladder:             DefaultToleranceLadder(),
		prescreenThreshold: DefaultPrescreenThreshold,
		now:                time.Now,
		paymentIdx:         make(map[uuid.UUID]*Payment),
		expectIdx:          make(map[uuid.UUID]*Expectation),
		pending:            NewPendingMatchSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.prescreen = newPrescreenRun(s.ladder)
	return s
}

func (s *Session) raise(eventType string, build func(base shared.BaseDomainEvent) shared.DomainEvent) {
	s.AddDomainEvent(build(shared.NewBaseDomainEvent(eventType, AggregateTypeSession, s.ID)))
}

// Load replaces the session's data. Selection, staging and prescreen progress are reset.
func (s *Session) Load(snap Snapshot) {
	s.payments = make([]*Payment, 0, len(snap.Payments))
	s.expectations = make([]*Expectation, 0, len(snap.Expectations))
	s.matches = make([]*Match, 0, len(snap.Matches))
	s.paymentIdx = make(map[uuid.UUID]*Payment, len(snap.Payments))
	s.expectIdx = make(map[uuid.UUID]*Expectation, len(snap.Expectations))

	for _, p := range snap.Payments {
		if p == nil {
			continue
		}
		s.payments = append(s.payments, p)
		s.paymentIdx[p.ID] = p
	}
	for _, e := range snap.Expectations {
		if e == nil {
			continue
		}
		s.expectations = append(s.expectations, e)
		s.expectIdx[e.ID] = e
	}
	for _, m := range snap.Matches {
		if m != nil {
			s.matches = append(s.matches, m)
		}
	}

	s.selectedPaymentID = nil
	s.selectedLineItemID = nil
	s.pending.Clear()
	s.prescreen = newPrescreenRun(s.ladder)
	s.Touch()
	s.IncrementVersion()

	s.raise(EventTypeDataLoaded, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &DataLoadedEvent{BaseDomainEvent: base, PaymentCount: len(s.payments), ExpectationCount: len(s.expectations)}
	})
}

// Actor returns the name recorded on matches
func (s *Session) Actor() string {
	return s.actor
}

// Tolerance returns the current session tolerance
func (s *Session) Tolerance() Tolerance {
	return s.tolerance
}

// SetTolerance changes the tolerance used for future evaluations.
// Already staged pending matches keep the verdict computed when they were staged.
func (s *Session) SetTolerance(t Tolerance) {
	if s.tolerance.Equal(t) {
		return
	}
	previous := s.tolerance
	s.tolerance = t
	s.raise(EventTypeToleranceChanged, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &ToleranceChangedEvent{BaseDomainEvent: base, Previous: previous, Current: t}
	})
}

// Payments returns copies of all payments in load order
func (s *Session) Payments() []*Payment {
	out := make([]*Payment, len(s.payments))
	for i, p := range s.payments {
		out[i] = p.Clone()
	}
	return out
}

// Expectations returns copies of all expectations in load order
func (s *Session) Expectations() []*Expectation {
	out := make([]*Expectation, len(s.expectations))
	for i, e := range s.expectations {
		out[i] = e.Clone()
	}
	return out
}

// Matches returns copies of all confirmed matches
func (s *Session) Matches() []*Match {
	out := make([]*Match, len(s.matches))
	for i, m := range s.matches {
		out[i] = m.Clone()
	}
	return out
}

// Payment returns a copy of the payment with the given id
func (s *Session) Payment(id uuid.UUID) (*Payment, error) {
	p, ok := s.paymentIdx[id]
	if !ok {
		return nil, paymentNotFound(id)
	}
	return p.Clone(), nil
}

// Expectation returns a copy of the expectation with the given id
func (s *Session) Expectation(id uuid.UUID) (*Expectation, error) {
	e, ok := s.expectIdx[id]
	if !ok {
		return nil, expectationNotFound(id)
	}
	return e.Clone(), nil
}

func paymentNotFound(id uuid.UUID) error {
	return shared.NewDomainError("PAYMENT_NOT_FOUND", fmt.Sprintf("Payment %s not found", id))
}

func expectationNotFound(id uuid.UUID) error {
	return shared.NewDomainError("EXPECTATION_NOT_FOUND", fmt.Sprintf("Expectation %s not found", id))
}

func errNoPaymentSelected() error {
	return shared.NewDomainError("PRECONDITION_VIOLATION", "No payment is selected")
}

// SelectPayment makes a payment the working payment.
// Switching to a different payment clears the staging set and prescreen progress.
func (s *Session) SelectPayment(id uuid.UUID) error {
	if _, ok := s.paymentIdx[id]; !ok {
		return paymentNotFound(id)
	}
	if s.selectedPaymentID != nil && *s.selectedPaymentID == id {
		return nil
	}

	previous := s.selectedPaymentID
	cleared := s.clearPending()
	s.prescreen = newPrescreenRun(s.ladder)
	selected := id
	s.selectedPaymentID = &selected
	s.selectedLineItemID = nil

	s.raise(EventTypePaymentSelected, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PaymentSelectedEvent{BaseDomainEvent: base, PaymentID: id, PreviousPaymentID: previous, ClearedPending: cleared}
	})
	return nil
}

// SelectedPayment returns a copy of the working payment, or nil
func (s *Session) SelectedPayment() *Payment {
	p := s.selectedPayment()
	if p == nil {
		return nil
	}
	return p.Clone()
}

func (s *Session) selectedPayment() *Payment {
	if s.selectedPaymentID == nil {
		return nil
	}
	return s.paymentIdx[*s.selectedPaymentID]
}

// SelectLineItem highlights a line item of the working payment; nil clears the selection
func (s *Session) SelectLineItem(lineItemID *uuid.UUID) error {
	p := s.selectedPayment()
	if p == nil {
		return errNoPaymentSelected()
	}
	var selected *uuid.UUID
	if lineItemID != nil {
		if p.FindLineItem(*lineItemID) == nil {
			return shared.NewDomainError("LINE_ITEM_NOT_FOUND", fmt.Sprintf("Line item %s not found on payment", *lineItemID))
		}
		id := *lineItemID
		selected = &id
	}
	s.selectedLineItemID = selected
	s.raise(EventTypeLineItemSelected, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &LineItemSelectedEvent{BaseDomainEvent: base, PaymentID: p.ID, LineItemID: selected}
	})
	return nil
}

// SelectedLineItemID returns the highlighted line item, or nil
func (s *Session) SelectedLineItemID() *uuid.UUID {
	if s.selectedLineItemID == nil {
		return nil
	}
	id := *s.selectedLineItemID
	return &id
}

// AddPendingMatch stages a manual pairing on the working payment.
// Returns false without changing anything when either side is unknown,
// already staged, or no longer open for matching.
func (s *Session) AddPendingMatch(lineItemID, expectationID uuid.UUID) bool {
	p := s.selectedPayment()
	if p == nil {
		return false
	}
	li := p.FindLineItem(lineItemID)
	exp := s.expectIdx[expectationID]
	if li == nil || exp == nil {
		return false
	}
	return s.stage(p, li, exp, MatchMethodManual)
}

func (s *Session) stage(p *Payment, li *PaymentLineItem, exp *Expectation, method MatchMethod) bool {
	if !li.IsOpen() || !exp.CanStage() {
		return false
	}
	pm := newPendingMatch(li, exp, s.tolerance, method, s.now())
	if !s.pending.Add(pm) {
		return false
	}
	s.raise(EventTypePendingMatchStaged, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PendingMatchStagedEvent{BaseDomainEvent: base, PaymentID: p.ID, PendingMatch: pm}
	})
	return true
}

// RemovePendingMatch withdraws the staged pairing for a line item, if any
func (s *Session) RemovePendingMatch(lineItemID uuid.UUID) bool {
	removed, ok := s.pending.Remove(lineItemID)
	if !ok {
		return false
	}
	s.raisePendingRemoved(removed)
	return true
}

func (s *Session) raisePendingRemoved(pm PendingMatch) {
	var paymentID uuid.UUID
	if s.selectedPaymentID != nil {
		paymentID = *s.selectedPaymentID
	}
	s.raise(EventTypePendingMatchRemoved, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PendingMatchRemovedEvent{BaseDomainEvent: base, PaymentID: paymentID, PendingMatch: pm}
	})
}

// ClearPendingMatches empties the staging set and returns how many were dropped
func (s *Session) ClearPendingMatches() int {
	return s.clearPending()
}

func (s *Session) clearPending() int {
	n := s.pending.Clear()
	if n == 0 {
		return 0
	}
	var paymentID uuid.UUID
	if s.selectedPaymentID != nil {
		paymentID = *s.selectedPaymentID
	}
	s.raise(EventTypePendingMatchesCleared, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PendingMatchesClearedEvent{BaseDomainEvent: base, PaymentID: paymentID, Count: n}
	})
	return n
}

// PendingMatches returns the staged pairings in staging order
func (s *Session) PendingMatches() []PendingMatch {
	return s.pending.All()
}

// PendingTotals returns the summed line item and expected amounts of the staging set
func (s *Session) PendingTotals() (lineItemTotal, expectedTotal decimal.Decimal) {
	return s.pending.Totals()
}

// candidatePool collects the open, unstaged records of the working payment and its provider
func (s *Session) candidatePool(p *Payment) CandidatePool {
	pool := CandidatePool{
		LineItems:    make([]*PaymentLineItem, 0, len(p.LineItems)),
		Expectations: make([]*Expectation, 0),
	}
	for _, li := range p.OpenLineItems() {
		if !s.pending.HasLineItem(li.ID) {
			pool.LineItems = append(pool.LineItems, li)
		}
	}
	for _, exp := range s.expectations {
		if exp.Status == ExpectationStatusUnmatched && !s.pending.HasExpectation(exp.ID) && exp.BelongsTo(p.ProviderName) {
			pool.Expectations = append(pool.Expectations, exp)
		}
	}
	return pool
}

// PotentialMatches returns every reference-join candidate for the working payment, unfiltered
func (s *Session) PotentialMatches() ([]Candidate, error) {
	p := s.selectedPayment()
	if p == nil {
		return nil, errNoPaymentSelected()
	}
	return FindCandidates(s.candidatePool(p)), nil
}

// DataQuality reports suspect records in the working payment's candidate pool
func (s *Session) DataQuality() (DataQualityReport, error) {
	p := s.selectedPayment()
	if p == nil {
		return DataQualityReport{}, errNoPaymentSelected()
	}
	return AssessDataQuality(s.candidatePool(p)), nil
}

// AutoMatch stages every reference-join candidate within the session tolerance
func (s *Session) AutoMatch() (*AutoMatchResult, error) {
	p := s.selectedPayment()
	if p == nil {
		return nil, errNoPaymentSelected()
	}
	pool := s.candidatePool(p)
	candidates := FindCandidates(pool)
	result := &AutoMatchResult{
		Tolerance:   s.tolerance,
		Staged:      make([]PendingMatch, 0),
		Candidates:  len(candidates),
		DataQuality: AssessDataQuality(pool),
	}
	for _, c := range FilterCandidates(candidates, s.tolerance) {
		if s.stage(p, c.LineItem, c.Expectation, MatchMethodAuto) {
			pm, _ := s.pendingFor(c.LineItem.ID)
			result.Staged = append(result.Staged, pm)
		}
	}
	result.Skipped = result.Candidates - len(result.Staged)
	return result, nil
}

func (s *Session) pendingFor(lineItemID uuid.UUID) (PendingMatch, bool) {
	for _, pm := range s.pending.All() {
		if pm.LineItemID == lineItemID {
			return pm, true
		}
	}
	return PendingMatch{}, false
}

// PrescreenPreview projects how many pairings each ladder tolerance would stage now
func (s *Session) PrescreenPreview() ([]PreviewEntry, error) {
	candidates, err := s.PotentialMatches()
	if err != nil {
		return nil, err
	}
	return PreviewLadder(candidates, s.ladder), nil
}

// PrescreenStatus reports ladder progress and the current preview for the working payment
func (s *Session) PrescreenStatus() (*PrescreenStatus, error) {
	p := s.selectedPayment()
	if p == nil {
		return nil, errNoPaymentSelected()
	}
	preview := PreviewLadder(FindCandidates(s.candidatePool(p)), s.ladder)
	status := &PrescreenStatus{
		Recommended:   len(p.LineItems) >= s.prescreenThreshold,
		LineItemCount: len(p.LineItems),
		Ladder:        s.prescreen.ladder.Strings(),
		Passes:        s.PrescreenHistory(),
		Preview:       preview,
	}
	if !s.prescreen.done() {
		next := s.prescreen.ladder[s.prescreen.next]
		status.NextTolerance = &next
	}
	return status, nil
}

// RunPrescreenPass stages every candidate within the given tolerance and records the pass
func (s *Session) RunPrescreenPass(t Tolerance) (PrescreenPass, error) {
	p := s.selectedPayment()
	if p == nil {
		return PrescreenPass{}, errNoPaymentSelected()
	}
	pass := PrescreenPass{Tolerance: t, Staged: make([]PendingMatch, 0), RanAt: s.now()}
	for _, c := range FilterCandidates(FindCandidates(s.candidatePool(p)), t) {
		if s.stage(p, c.LineItem, c.Expectation, MatchMethodAuto) {
			pm, _ := s.pendingFor(c.LineItem.ID)
			pass.Staged = append(pass.Staged, pm)
		}
	}
	pass.Count = len(pass.Staged)
	pass = s.prescreen.record(pass)

	s.raise(EventTypePrescreenPassCompleted, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PrescreenPassCompletedEvent{BaseDomainEvent: base, PaymentID: p.ID, Pass: pass}
	})
	return pass, nil
}

// RunNextPrescreenPass runs the next ladder tolerance. The boolean is false once the ladder is exhausted.
func (s *Session) RunNextPrescreenPass() (PrescreenPass, bool, error) {
	if s.selectedPayment() == nil {
		return PrescreenPass{}, false, errNoPaymentSelected()
	}
	if s.prescreen.done() {
		return PrescreenPass{}, false, nil
	}
	t := s.prescreen.ladder[s.prescreen.next]
	s.prescreen.next++
	pass, err := s.RunPrescreenPass(t)
	if err != nil {
		return PrescreenPass{}, false, err
	}
	return pass, true, nil
}

// RunAllPrescreenPasses runs the remaining ladder tolerances in order
func (s *Session) RunAllPrescreenPasses() ([]PrescreenPass, error) {
	passes := make([]PrescreenPass, 0, len(s.ladder))
	for {
		pass, ok, err := s.RunNextPrescreenPass()
		if err != nil {
			return nil, err
		}
		if !ok {
			return passes, nil
		}
		passes = append(passes, pass)
	}
}

// PrescreenHistory returns the passes run for the working payment
func (s *Session) PrescreenHistory() []PrescreenPass {
	return append([]PrescreenPass(nil), s.prescreen.passes...)
}

// Confirm commits every staged pairing of the working payment as one Match.
// The method is auto when every pairing came from auto-match or prescreening,
// otherwise manual. Prescreening tolerances are appended to the notes.
func (s *Session) Confirm(notes string) (*Match, error) {
	p := s.selectedPayment()
	if p == nil {
		return nil, errNoPaymentSelected()
	}
	if s.pending.IsEmpty() {
		return nil, shared.NewDomainError("PRECONDITION_VIOLATION", "There are no pending matches to confirm")
	}

	staged := s.pending.All()
	type pair struct {
		pm  PendingMatch
		li  *PaymentLineItem
		exp *Expectation
	}
	pairs := make([]pair, 0, len(staged))
	method := MatchMethodAuto
	for _, pm := range staged {
		li := p.FindLineItem(pm.LineItemID)
		exp := s.expectIdx[pm.ExpectationID]
		if li == nil || exp == nil || !li.IsOpen() || !exp.CanStage() {
			return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Pending match for line item %s is no longer valid", pm.LineItemID))
		}
		if pm.Method != MatchMethodAuto {
			method = MatchMethodManual
		}
		pairs = append(pairs, pair{pm: pm, li: li, exp: exp})
	}

	if note := s.prescreen.toleranceNote(); note != "" {
		notes = joinNotes(notes, note)
	}

	now := s.now()
	totalLineItems, totalExpected := s.pending.Totals()
	aggregate := Evaluate(totalLineItems, totalExpected, s.tolerance)

	m := newMatch(p.ID, method, notes, s.actor, now)
	m.TotalMatchedAmount = totalLineItems
	m.TotalExpectedAmount = totalExpected
	m.Variance = aggregate.Amount
	m.VariancePercentage = aggregate.Percentage
	m.Quality = ClassifyQuality(aggregate, s.tolerance)
	m.Type = matchTypeFor(len(pairs))

	touched := make([]*Expectation, 0, len(pairs))
	for _, pr := range pairs {
		v := Evaluate(pr.li.Amount, pr.exp.ExpectedAmount, s.tolerance)
		pr.exp.allocate(p.ID, pr.li.ID, m.ID, pr.li.Amount, now)
		pr.li.markMatched(pr.exp.ID, notes)

		m.ExpectationIDs = append(m.ExpectationIDs, pr.exp.ID)
		m.Pairings = append(m.Pairings, Pairing{
			ID:                  uuid.New(),
			MatchID:             m.ID,
			PaymentID:           p.ID,
			PaymentRemoteID:     p.RemoteID,
			LineItemID:          pr.li.ID,
			LineItemRemoteID:    pr.li.RemoteID,
			ExpectationID:       pr.exp.ID,
			ExpectationRemoteID: pr.exp.RemoteID,
			LineItemAmount:      pr.li.Amount,
			ExpectedAmount:      pr.exp.ExpectedAmount,
			Variance:            v.Amount,
			VariancePercentage:  v.Percentage,
			Quality:             ClassifyQuality(v, s.tolerance),
			Method:              method,
			Notes:               notes,
			Actor:               s.actor,
			MatchedAt:           now,
		})
		touched = append(touched, pr.exp.Clone())
	}
	p.applyReconciled(totalLineItems)

	s.matches = append(s.matches, m)
	s.pending.Clear()
	s.prescreen = newPrescreenRun(s.ladder)
	s.IncrementVersion()

	snapshot := m.Clone()
	paymentSnapshot := p.Clone()
	s.raise(EventTypeMatchConfirmed, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &MatchConfirmedEvent{BaseDomainEvent: base, Match: snapshot, Payment: paymentSnapshot, Expectations: touched}
	})
	return m.Clone(), nil
}

func joinNotes(notes, extra string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return extra
	}
	return notes + "; " + extra
}

// ApproveLineItemUnmatched closes an open line item without a match.
// Any staged pairing for the line item is withdrawn first.
func (s *Session) ApproveLineItemUnmatched(lineItemID uuid.UUID, notes string) error {
	p := s.paymentOfLineItem(lineItemID)
	if p == nil {
		return shared.NewDomainError("LINE_ITEM_NOT_FOUND", fmt.Sprintf("Line item %s not found", lineItemID))
	}
	if strings.TrimSpace(notes) == "" {
		return shared.NewDomainError("NOTES_REQUIRED", "Notes are required to approve a line item without a match")
	}
	if removed, ok := s.pending.Remove(lineItemID); ok {
		s.raisePendingRemoved(removed)
	}
	if _, err := p.approveLineItem(lineItemID, notes); err != nil {
		return err
	}
	s.IncrementVersion()

	snapshot := p.Clone()
	s.raise(EventTypeLineItemApprovedUnmatched, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &LineItemApprovedUnmatchedEvent{BaseDomainEvent: base, Payment: snapshot, LineItemID: lineItemID, Notes: notes}
	})
	return nil
}

func (s *Session) paymentOfLineItem(lineItemID uuid.UUID) *Payment {
	if p := s.selectedPayment(); p != nil && p.FindLineItem(lineItemID) != nil {
		return p
	}
	for _, p := range s.payments {
		if p.FindLineItem(lineItemID) != nil {
			return p
		}
	}
	return nil
}

// MarkPaymentFullyReconciled approves every open line item of the working payment and completes it
func (s *Session) MarkPaymentFullyReconciled(notes string) (int, error) {
	p := s.selectedPayment()
	if p == nil {
		return 0, errNoPaymentSelected()
	}
	if !s.pending.IsEmpty() {
		return 0, shared.NewDomainError("PRECONDITION_VIOLATION", "Confirm or clear pending matches before completing the payment")
	}
	approved, err := p.markFullyReconciled(notes, s.actor, s.now())
	if err != nil {
		return 0, err
	}
	s.IncrementVersion()

	snapshot := p.Clone()
	s.raise(EventTypePaymentReconciled, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &PaymentReconciledEvent{BaseDomainEvent: base, Payment: snapshot, ApprovedCount: approved, Unreconciled: snapshot.RemainingAmount}
	})
	return approved, nil
}

// InvalidateExpectation permanently excludes an expectation from matching.
// A staged pairing targeting it is withdrawn.
func (s *Session) InvalidateExpectation(expectationID uuid.UUID, reason string) error {
	exp, ok := s.expectIdx[expectationID]
	if !ok {
		return expectationNotFound(expectationID)
	}
	if err := exp.invalidate(reason, s.actor, s.now()); err != nil {
		return err
	}
	if removed, ok := s.pending.RemoveByExpectation(expectationID); ok {
		s.raisePendingRemoved(removed)
	}
	s.IncrementVersion()

	snapshot := exp.Clone()
	s.raise(EventTypeExpectationInvalidated, func(base shared.BaseDomainEvent) shared.DomainEvent {
		return &ExpectationInvalidatedEvent{BaseDomainEvent: base, Expectation: snapshot}
	})
	return nil
}

// UnsyncedPairings returns confirmed pairings not yet acknowledged by the system of record, in confirmation order
func (s *Session) UnsyncedPairings() []Pairing {
	out := make([]Pairing, 0)
	for _, m := range s.matches {
		out = append(out, m.UnsyncedPairings()...)
	}
	return out
}

// HasUnsyncedPairings reports whether a sync backlog exists
func (s *Session) HasUnsyncedPairings() bool {
	for _, m := range s.matches {
		if len(m.UnsyncedPairings()) > 0 {
			return true
		}
	}
	return false
}

// MarkPairingsSynced flags pairings as acknowledged and returns how many changed
func (s *Session) MarkPairingsSynced(ids []uuid.UUID) int {
	if len(ids) == 0 {
		return 0
	}
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	now := s.now()
	changed := 0
	for _, m := range s.matches {
		changed += m.markSynced(set, now)
	}
	if changed > 0 {
		synced := append([]uuid.UUID(nil), ids...)
		s.raise(EventTypePairingsSynced, func(base shared.BaseDomainEvent) shared.DomainEvent {
			return &PairingsSyncedEvent{BaseDomainEvent: base, PairingIDs: synced}
		})
	}
	return changed
}
