package dto

import (
	"errors"
	"net/http"

	"github.com/feerecon/backend/internal/domain/crmsync"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for values the domain rejects
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeNotesRequired is used when an action needs an explanatory note
	ErrCodeNotesRequired = "ERR_NOTES_REQUIRED"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodePaymentNotFound     = "ERR_PAYMENT_NOT_FOUND"
	ErrCodeLineItemNotFound    = "ERR_LINE_ITEM_NOT_FOUND"
	ErrCodeExpectationNotFound = "ERR_EXPECTATION_NOT_FOUND"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodePrecondition is used when an operation's precondition is not met
	ErrCodePrecondition = "ERR_PRECONDITION_VIOLATION"
	// ErrCodeUnsyncedMatches is used when confirmed matches must be synced first
	ErrCodeUnsyncedMatches = "ERR_UNSYNCED_MATCHES"
)

// CRM error codes
const (
	// ErrCodeRateLimited is used when the CRM throttled the request
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeCRMUnavailable is used for transport failures and malformed CRM responses
	ErrCodeCRMUnavailable = "ERR_CRM_UNAVAILABLE"
	// ErrCodeCRMUnauthorized is used when the CRM credentials were refused
	ErrCodeCRMUnauthorized = "ERR_CRM_UNAUTHORIZED"
	// ErrCodeCRMRejected is used when the CRM refused a well-formed request
	ErrCodeCRMRejected = "ERR_CRM_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeNotesRequired:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodePaymentNotFound:     http.StatusNotFound,
	ErrCodeLineItemNotFound:    http.StatusNotFound,
	ErrCodeExpectationNotFound: http.StatusNotFound,

	// Business rule errors
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodePrecondition:    http.StatusUnprocessableEntity,
	ErrCodeUnsyncedMatches: http.StatusConflict,

	// CRM errors
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeCRMUnavailable:  http.StatusBadGateway,
	ErrCodeCRMUnauthorized: http.StatusBadGateway,
	ErrCodeCRMRejected:     http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"PAYMENT_NOT_FOUND":      ErrCodePaymentNotFound,
	"LINE_ITEM_NOT_FOUND":    ErrCodeLineItemNotFound,
	"EXPECTATION_NOT_FOUND":  ErrCodeExpectationNotFound,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_AMOUNT":         ErrCodeInvalidInput,
	"INVALID_PROVIDER":       ErrCodeInvalidInput,
	"INVALID_TOLERANCE":      ErrCodeInvalidInput,
	"NOTES_REQUIRED":         ErrCodeNotesRequired,
	"REASON_REQUIRED":        ErrCodeNotesRequired,
	"INVALID_STATE":          ErrCodeInvalidState,
	"PRECONDITION_VIOLATION": ErrCodePrecondition,
	"VALIDATION_ERROR":       ErrCodeValidation,
	"INTERNAL_ERROR":         ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// CRMErrorCode classifies a CRM sync error. The bool is false when err
// carries none of the CRM sentinels.
func CRMErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, crmsync.ErrRateLimited):
		return ErrCodeRateLimited, true
	case errors.Is(err, crmsync.ErrUnsyncedMatches):
		return ErrCodeUnsyncedMatches, true
	case errors.Is(err, crmsync.ErrUnauthorized):
		return ErrCodeCRMUnauthorized, true
	case errors.Is(err, crmsync.ErrValidation):
		return ErrCodeValidation, true
	case errors.Is(err, crmsync.ErrRemoteRejected):
		return ErrCodeCRMRejected, true
	case errors.Is(err, crmsync.ErrTransport), errors.Is(err, crmsync.ErrInvalidResponse):
		return ErrCodeCRMUnavailable, true
	}
	return "", false
}
