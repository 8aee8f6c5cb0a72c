package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// VestingHandler serves vesting schedules
type VestingHandler struct {
	BaseHandler
	vestings *presale.VestingService
}

// NewVestingHandler creates a new vesting handler
func NewVestingHandler(vestings *presale.VestingService) *VestingHandler {
	return &VestingHandler{vestings: vestings}
}

// CreateVestingRequest locks tokens for a beneficiary. Durations are seconds.
type CreateVestingRequest struct {
	Beneficiary   string `json:"beneficiary" binding:"required,base58id"`
	TotalAmount   uint64 `json:"total_amount"`
	StartTime     int64  `json:"start_time"`
	CliffDuration uint64 `json:"cliff_duration"`
	Duration      uint64 `json:"duration"`
	Revocable     bool   `json:"revocable"`
	// FundFromOwner moves TotalAmount from the caller's balance into the vault
	FundFromOwner bool `json:"fund_from_owner"`
}

// CreateVesting godoc
// @ID           createVesting
// @Summary      Create a vesting schedule
// @Description  Creates the beneficiary's schedule with the caller as owner
// @Tags         vesting
// @Accept       json
// @Produce      json
// @Param        request body CreateVestingRequest true "Schedule parameters"
// @Success      201 {object} APIResponse[presale.ScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vestings [post]
func (h *VestingHandler) CreateVesting(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req CreateVestingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.vestings.CreateVesting(c.Request.Context(), presale.CreateVestingRequest{
		Caller:        caller,
		Beneficiary:   valueobject.MustParseIdentity(req.Beneficiary),
		TotalAmount:   req.TotalAmount,
		StartTime:     req.StartTime,
		CliffDuration: req.CliffDuration,
		Duration:      req.Duration,
		Revocable:     req.Revocable,
		FundFromOwner: req.FundFromOwner,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetSchedule returns a schedule with its vested and claimable amounts as of now
func (h *VestingHandler) GetSchedule(c *gin.Context) {
	address, ok := h.identityParam(c, "vesting")
	if !ok {
		return
	}
	resp, err := h.vestings.GetSchedule(c.Request.Context(), address)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetScheduleByBeneficiary returns the schedule derived from a beneficiary
func (h *VestingHandler) GetScheduleByBeneficiary(c *gin.Context) {
	beneficiary, ok := h.identityParam(c, "beneficiary")
	if !ok {
		return
	}
	resp, err := h.vestings.GetScheduleByBeneficiary(c.Request.Context(), beneficiary)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Claim godoc
// @ID           claimVesting
// @Summary      Claim vested tokens
// @Description  Releases everything vested but unclaimed to the beneficiary. Only the beneficiary may claim.
// @Tags         vesting
// @Produce      json
// @Param        vesting path string true "Vesting address (base58)"
// @Success      200 {object} APIResponse[presale.ClaimResult]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vestings/{vesting}/claim [post]
func (h *VestingHandler) Claim(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	address, ok := h.identityParam(c, "vesting")
	if !ok {
		return
	}
	result, err := h.vestings.Claim(c.Request.Context(), caller, address)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Revoke godoc
// @ID           revokeVesting
// @Summary      Revoke a vesting schedule
// @Description  Returns the unvested remainder to the treasury. Only the owner of a revocable schedule may revoke.
// @Tags         vesting
// @Produce      json
// @Param        vesting path string true "Vesting address (base58)"
// @Success      200 {object} APIResponse[presale.RevokeResult]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vestings/{vesting}/revoke [post]
func (h *VestingHandler) Revoke(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	address, ok := h.identityParam(c, "vesting")
	if !ok {
		return
	}
	result, err := h.vestings.Revoke(c.Request.Context(), caller, address)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
