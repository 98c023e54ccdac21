package reconciliation

// PaymentStatus represents the reconciliation status of a payment
type PaymentStatus string

const (
	PaymentStatusUnreconciled PaymentStatus = "unreconciled" // Nothing matched yet
	PaymentStatusInProgress   PaymentStatus = "in_progress"  // Some line items still open
	PaymentStatusReconciled   PaymentStatus = "reconciled"   // Every line item terminal
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnreconciled, PaymentStatusInProgress, PaymentStatusReconciled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// LineItemStatus represents the status of a payment line item
type LineItemStatus string

const (
	LineItemStatusUnmatched         LineItemStatus = "unmatched"
	LineItemStatusMatched           LineItemStatus = "matched"
	LineItemStatusApprovedUnmatched LineItemStatus = "approved_unmatched"
)

// IsValid checks if the status is a valid LineItemStatus
func (s LineItemStatus) IsValid() bool {
	switch s {
	case LineItemStatusUnmatched, LineItemStatusMatched, LineItemStatusApprovedUnmatched:
		return true
	}
	return false
}

// String returns the string representation of LineItemStatus
func (s LineItemStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the line item no longer needs attention
func (s LineItemStatus) IsTerminal() bool {
	return s == LineItemStatusMatched || s == LineItemStatusApprovedUnmatched
}

// ExpectationStatus represents the status of an expected fee
type ExpectationStatus string

const (
	ExpectationStatusUnmatched   ExpectationStatus = "unmatched"
	ExpectationStatusPartial     ExpectationStatus = "partial"
	ExpectationStatusMatched     ExpectationStatus = "matched"
	ExpectationStatusInvalidated ExpectationStatus = "invalidated"
)

// IsValid checks if the status is a valid ExpectationStatus
func (s ExpectationStatus) IsValid() bool {
	switch s {
	case ExpectationStatusUnmatched, ExpectationStatusPartial, ExpectationStatusMatched, ExpectationStatusInvalidated:
		return true
	}
	return false
}

// String returns the string representation of ExpectationStatus
func (s ExpectationStatus) String() string {
	return string(s)
}

// CanStage returns true if the expectation may be paired with a line item
func (s ExpectationStatus) CanStage() bool {
	return s == ExpectationStatusUnmatched || s == ExpectationStatusPartial
}

// MatchType classifies how many pairings a match covers
type MatchType string

const (
	MatchTypeFull    MatchType = "full"
	MatchTypePartial MatchType = "partial"
	MatchTypeMulti   MatchType = "multi"
)

// MatchMethod records how the pairings of a match were proposed
type MatchMethod string

const (
	MatchMethodAuto        MatchMethod = "auto"
	MatchMethodManual      MatchMethod = "manual"
	MatchMethodAISuggested MatchMethod = "ai-suggested"
)

// IsValid checks if the method is valid
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchMethodAuto, MatchMethodManual, MatchMethodAISuggested:
		return true
	}
	return false
}

// MatchQuality grades the aggregate variance of a match
type MatchQuality string

const (
	MatchQualityPerfect    MatchQuality = "perfect"
	MatchQualityGood       MatchQuality = "good"
	MatchQualityAcceptable MatchQuality = "acceptable"
	MatchQualityWarning    MatchQuality = "warning"
)
