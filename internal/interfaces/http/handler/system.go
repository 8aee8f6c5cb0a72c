package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/interfaces/http/dto"
)

// Version is stamped at build time
var Version = "dev"

// SystemInfo is the static part of the system info response
type SystemInfo struct {
	Name           string
	Program        valueobject.Identity
	Signer         valueobject.Identity
	CanIssue       bool
	Administrators int
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	info      SystemInfo
	ping      func() error
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. ping checks the database and may be nil.
func NewSystemHandler(info SystemInfo, ping func() error) *SystemHandler {
	return &SystemHandler{
		info:      info,
		ping:      ping,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name           string               `json:"name" example:"Presale Settlement API"`
	Version        string               `json:"version" example:"1.0.0"`
	GoVersion      string               `json:"go_version" example:"go1.25.5"`
	Uptime         string               `json:"uptime" example:"1h30m45s"`
	Program        valueobject.Identity `json:"program"`
	VoucherSigner  valueobject.Identity `json:"voucher_signer"`
	CanIssue       bool                 `json:"can_issue_vouchers"`
	Administrators int                  `json:"administrators"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	Database  string `json:"database" example:"up"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns version, uptime and the settlement engine's program and voucher signer identities
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:           h.info.Name,
		Version:        Version,
		GoVersion:      runtime.Version(),
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		Program:        h.info.Program,
		VoucherSigner:  h.info.Signer,
		CanIssue:       h.info.CanIssue,
		Administrators: h.info.Administrators,
	})
}

// Health godoc
// @ID           healthCheck
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "up",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.ping != nil {
		if err := h.ping(); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "down"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
	}
	h.Success(c, resp)
}
