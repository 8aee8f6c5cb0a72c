package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// VoucherHandler issues and lists purchase vouchers
type VoucherHandler struct {
	BaseHandler
	vouchers *presale.VoucherService
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(vouchers *presale.VoucherService) *VoucherHandler {
	return &VoucherHandler{vouchers: vouchers}
}

// IssueVoucherRequest asks the issuer to sign a voucher
type IssueVoucherRequest struct {
	Buyer         string `json:"buyer" binding:"required,base58id"`
	Sale          string `json:"sale" binding:"required,base58id"`
	MaxAllocation uint64 `json:"max_allocation"`
	Expiry        int64  `json:"expiry_ts"`
}

// Issue godoc
// @ID           issueVoucher
// @Summary      Issue a purchase voucher
// @Description  Signs a voucher with the configured issuer key. Administrators only.
// @Tags         vouchers
// @Accept       json
// @Produce      json
// @Param        request body IssueVoucherRequest true "Voucher terms"
// @Success      201 {object} APIResponse[presale.VoucherResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vouchers [post]
func (h *VoucherHandler) Issue(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req IssueVoucherRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.vouchers.Issue(c.Request.Context(), presale.IssueVoucherRequest{
		Caller:        caller,
		Buyer:         valueobject.MustParseIdentity(req.Buyer),
		Sale:          valueobject.MustParseIdentity(req.Sale),
		MaxAllocation: req.MaxAllocation,
		Expiry:        req.Expiry,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListByBuyer returns the vouchers issued to a buyer, newest first
func (h *VoucherHandler) ListByBuyer(c *gin.Context) {
	buyer, ok := h.identityParam(c, "buyer")
	if !ok {
		return
	}
	vouchers, err := h.vouchers.ListByBuyer(c.Request.Context(), buyer)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vouchers)
}
