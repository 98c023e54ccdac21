package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("recon", "/recon")

	var order []string
	group.Use(func(c *gin.Context) {
		order = append(order, "mw")
		c.Next()
	})
	ok := func(c *gin.Context) {
		order = append(order, c.Request.Method)
		c.Status(http.StatusOK)
	}
	group.GET("/a", ok).POST("/a", ok).PUT("/a", ok).DELETE("/a", ok)

	assert.Equal(t, "recon", group.Name())
	assert.Equal(t, "/recon", group.Prefix())
	assert.Equal(t, []string{"GET /recon/a", "POST /recon/a", "PUT /recon/a", "DELETE /recon/a"}, group.Routes())

	NewRouter(engine).Register(group).Setup()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/recon/a", nil))
		assert.Equal(t, http.StatusOK, w.Code, method)
	}
	assert.Equal(t, []string{"mw", "GET", "mw", "POST", "mw", "PUT", "mw", "DELETE"}, order)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		ServiceName:      "test",
		MaxBodySize:      8,
		CORSAllowOrigins: []string{"http://app.example.com"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	engine.POST("/echo", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	t.Run("standard headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("tiny"))
		req.Header.Set("Origin", "http://app.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "http://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("body limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("far more than eight bytes")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("panic recovery", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNewEngine_BadTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{TrustedProxies: []string{"not-an-ip"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
