package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/interfaces/http/dto"
	"github.com/feerecon/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// DatabasePinger reports on the local mirror database
type DatabasePinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// SystemHandler serves service info and health endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        DatabasePinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil when the
// service runs without a mirror.
func NewSystemHandler(name, version string, db DatabasePinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Routes returns the system route group
func (h *SystemHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping).
		GET("/health", h.Health)
}

// GetSystemInfo returns name, version and uptime
// @ID           getSystemInfo
// @Summary      Get system information
// @Description  Returns the service name, version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ping answers pong
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Simple ping endpoint to check if the API is responsive
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Health reports service and database health
// @ID           getSystemHealth
// @Summary      Check service health
// @Description  Reports service and mirror database health. An unreachable database answers 503
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.HealthResponse}
// @Failure      503 {object} dto.Response
// @Router       /system/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	if h.db == nil {
		h.Success(c, dto.HealthResponse{Status: "ok", Database: "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Database: "up", Driver: h.db.Driver()}
	if err := h.db.Ping(ctx); err != nil {
		logger.L(ctx).Warn("Database health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "down"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
