package middleware

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
	Notes     string `json:"notes" binding:"max=5"`
}

func bindSample(t *testing.T, body string) error {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var req sampleRequest
	return c.ShouldBindJSON(&req)
}

func TestValidationDetails(t *testing.T) {
	SetupValidator()

	t.Run("reports json field names", func(t *testing.T) {
		err := bindSample(t, `{"payment_id":"nope","notes":"far too long"}`)
		require.Error(t, err)

		details := ValidationDetails(err)
		require.Len(t, details, 2)
		assert.Equal(t, "payment_id", details[0].Field)
		assert.Equal(t, "Invalid UUID format", details[0].Message)
		assert.Equal(t, "notes", details[1].Field)
		assert.Equal(t, "Must be at most 5 characters", details[1].Message)
	})

	t.Run("required", func(t *testing.T) {
		details := ValidationDetails(bindSample(t, `{}`))
		require.Len(t, details, 1)
		assert.Equal(t, "This field is required", details[0].Message)
	})

	t.Run("malformed json has no details", func(t *testing.T) {
		err := bindSample(t, `{"payment_id":`)
		require.Error(t, err)
		assert.Nil(t, ValidationDetails(err))
	})

	t.Run("plain error has no details", func(t *testing.T) {
		assert.Nil(t, ValidationDetails(errors.New("boom")))
	})
}
