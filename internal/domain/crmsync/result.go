package crmsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncUnitState is the lifecycle state of one record in a sync run
type SyncUnitState string

const (
	SyncUnitStaged      SyncUnitState = "staged"
	SyncUnitSubmitted   SyncUnitState = "submitted"
	SyncUnitConfirmed   SyncUnitState = "confirmed"
	SyncUnitRateLimited SyncUnitState = "rate_limited"
	SyncUnitFailed      SyncUnitState = "failed"
)

// IsTerminal returns true if the unit will not change again within the run
func (s SyncUnitState) IsTerminal() bool {
	switch s {
	case SyncUnitConfirmed, SyncUnitRateLimited, SyncUnitFailed:
		return true
	}
	return false
}

// FailureKind classifies why a record did not reach the remote system
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureValidation  FailureKind = "validation"
	FailureTransport   FailureKind = "transport"
	FailureRateLimited FailureKind = "rate_limited"
)

// SyncStatus is the overall outcome of a sync run
type SyncStatus string

const (
	SyncStatusSuccess     SyncStatus = "SUCCESS"
	SyncStatusPartial     SyncStatus = "PARTIAL"
	SyncStatusFailed      SyncStatus = "FAILED"
	SyncStatusRateLimited SyncStatus = "RATE_LIMITED"
	SyncStatusEmpty       SyncStatus = "EMPTY"
)

// RecordResult is the outcome for one MatchRecord
type RecordResult struct {
	LocalID       uuid.UUID     `json:"local_id"`
	State         SyncUnitState `json:"state"`
	RemoteMatchID string        `json:"remote_match_id,omitempty"`
	Failure       FailureKind   `json:"failure,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// BatchSyncResult is the outcome of pushing a set of match records
type BatchSyncResult struct {
	// Status is the overall sync status
	Status SyncStatus `json:"status"`
	// TotalRequested is the number of records handed to the run
	TotalRequested int `json:"total_requested"`
	// SuccessCount is the number of records confirmed by the remote system
	SuccessCount int `json:"success_count"`
	// FailedCount is the number of records rejected or lost to transport failure
	FailedCount int `json:"failed_count"`
	// NotSubmitted is the number of records left unsent because of a rate limit
	NotSubmitted int `json:"not_submitted"`
	// ChunksSubmitted is the number of batch calls made
	ChunksSubmitted int `json:"chunks_submitted"`
	// RateLimited is set when the run halted on a rate limit signal
	RateLimited bool `json:"rate_limited"`
	// RetryAfter is the remote retry hint when RateLimited is set
	RetryAfter time.Duration `json:"retry_after"`
	// Records holds one result per requested record in input order
	Records []RecordResult `json:"records"`
	// Propagation is the outcome of the secondary status update phase, if it ran
	Propagation *PropagationResult `json:"propagation,omitempty"`
	// SyncedAt is when the run finished
	SyncedAt time.Time `json:"synced_at"`
}

// ConfirmedIDs returns the local identifiers of confirmed records
func (r *BatchSyncResult) ConfirmedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, r.SuccessCount)
	for _, rec := range r.Records {
		if rec.State == SyncUnitConfirmed {
			ids = append(ids, rec.LocalID)
		}
	}
	return ids
}

// IsDegraded reports whether primary records synced but status propagation did not fully succeed
func (r *BatchSyncResult) IsDegraded() bool {
	return r.Propagation != nil && r.Propagation.State != PropagationPropagated
}

// Finalize derives the overall status from the counts
func (r *BatchSyncResult) Finalize(now time.Time) {
	r.SyncedAt = now
	switch {
	case r.TotalRequested == 0:
		r.Status = SyncStatusEmpty
	case r.RateLimited:
		r.Status = SyncStatusRateLimited
	case r.FailedCount == 0:
		r.Status = SyncStatusSuccess
	case r.SuccessCount == 0:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
}

// SingleSyncResult is the outcome of the sequential single-record path
type SingleSyncResult struct {
	LocalID            uuid.UUID `json:"local_id"`
	RemoteMatchID      string    `json:"remote_match_id"`
	LineItemUpdated    bool      `json:"line_item_updated"`
	ExpectationUpdated bool      `json:"expectation_updated"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// IsDegraded reports whether a secondary write failed
func (r *SingleSyncResult) IsDegraded() bool {
	return !r.LineItemUpdated || !r.ExpectationUpdated
}

// SyncLedger records which pairings the remote system has acknowledged
type SyncLedger interface {
	MarkSynced(ctx context.Context, pairingIDs []uuid.UUID) bool
}
