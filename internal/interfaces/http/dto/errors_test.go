package dto

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotesRequired, http.StatusBadRequest},
		{ErrCodePaymentNotFound, http.StatusNotFound},
		{ErrCodePrecondition, http.StatusUnprocessableEntity},
		{ErrCodeUnsyncedMatches, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeCRMUnavailable, http.StatusBadGateway},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeExpectationNotFound, NormalizeErrorCode("EXPECTATION_NOT_FOUND"))
	assert.Equal(t, ErrCodeInvalidInput, NormalizeErrorCode("INVALID_TOLERANCE"))
	assert.Equal(t, ErrCodeNotesRequired, NormalizeErrorCode("REASON_REQUIRED"))
	assert.Equal(t, "CUSTOM", NormalizeErrorCode("CUSTOM"))
}

func TestCRMErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"rate limit", crmsync.NewRateLimitError(10, "slow down"), ErrCodeRateLimited},
		{"wrapped transport", fmt.Errorf("download: %w", crmsync.ErrTransport), ErrCodeCRMUnavailable},
		{"invalid response", crmsync.ErrInvalidResponse, ErrCodeCRMUnavailable},
		{"unauthorized", crmsync.ErrUnauthorized, ErrCodeCRMUnauthorized},
		{"rejected", crmsync.ErrRemoteRejected, ErrCodeCRMRejected},
		{"unsynced", crmsync.ErrUnsyncedMatches, ErrCodeUnsyncedMatches},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := CRMErrorCode(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}

	_, ok := CRMErrorCode(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("bad", "req-1", []ValidationDetail{{Field: "notes", Message: "required"}})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}
