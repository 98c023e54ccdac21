package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feerecon/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }
func (p stubPinger) Driver() string             { return "sqlite" }

func serveSystem(t *testing.T, h *SystemHandler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	engine := gin.New()
	router.NewRouter(engine).Register(h.Routes()).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system"+path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	w, body := serveSystem(t, NewSystemHandler("feerecon", "1.2.3", nil), "/info")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "feerecon", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_Ping(t *testing.T) {
	w, body := serveSystem(t, NewSystemHandler("feerecon", "dev", nil), "/ping")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", body["data"].(map[string]any)["message"])
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		w, body := serveSystem(t, NewSystemHandler("feerecon", "dev", nil), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "disabled", body["data"].(map[string]any)["database"])
	})

	t.Run("database up", func(t *testing.T) {
		w, body := serveSystem(t, NewSystemHandler("feerecon", "dev", stubPinger{}), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "up", data["database"])
		assert.Equal(t, "sqlite", data["driver"])
	})

	t.Run("database down", func(t *testing.T) {
		w, body := serveSystem(t, NewSystemHandler("feerecon", "dev", stubPinger{err: errors.New("closed")}), "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, body["success"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "degraded", data["status"])
		assert.Equal(t, "down", data["database"])
	})
}
