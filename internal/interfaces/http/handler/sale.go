package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
)

// SaleHandler serves sale configuration, purchases and escrow reads
type SaleHandler struct {
	BaseHandler
	sales     *presale.SaleService
	purchases *presale.PurchaseService
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(sales *presale.SaleService, purchases *presale.PurchaseService) *SaleHandler {
	return &SaleHandler{
		sales:     sales,
		purchases: purchases,
	}
}

// OpenSaleRequest configures a new sale owned by the caller
type OpenSaleRequest struct {
	Asset          string `json:"asset" binding:"required,base58id"`
	Treasury       string `json:"treasury" binding:"required,base58id"`
	Price          uint64 `json:"price"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	TotalAllocated uint64 `json:"total_allocated"`
}

// VoucherPayload is the signed voucher a buyer presents with a purchase
type VoucherPayload struct {
	Buyer         string `json:"buyer" binding:"required,base58id"`
	Sale          string `json:"sale" binding:"required,base58id"`
	MaxAllocation uint64 `json:"max_allocation"`
	Nonce         uint64 `json:"nonce"`
	Expiry        int64  `json:"expiry_ts"`
}

// PurchaseRequest buys an allocation in a sale
type PurchaseRequest struct {
	Requested uint64         `json:"requested"`
	Voucher   VoucherPayload `json:"voucher"`
	Signature string         `json:"signature" binding:"required"`
}

// OpenSale godoc
// @ID           openSale
// @Summary      Open a sale
// @Description  Creates the caller's sale. Only administrators may open sales and each owner has at most one.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        request body OpenSaleRequest true "Sale configuration"
// @Success      201 {object} APIResponse[presale.SaleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /sales [post]
func (h *SaleHandler) OpenSale(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req OpenSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.sales.OpenSale(c.Request.Context(), presale.OpenSaleRequest{
		Caller:         caller,
		Asset:          valueobject.MustParseIdentity(req.Asset),
		Treasury:       valueobject.MustParseIdentity(req.Treasury),
		Price:          req.Price,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		TotalAllocated: req.TotalAllocated,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetSale godoc
// @ID           getSale
// @Summary      Get a sale by address
// @Tags         sales
// @Produce      json
// @Param        sale path string true "Sale address (base58)"
// @Success      200 {object} APIResponse[presale.SaleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /sales/{sale} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	address, ok := h.identityParam(c, "sale")
	if !ok {
		return
	}
	resp, err := h.sales.GetSale(c.Request.Context(), address)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetSaleByOwner returns the sale derived from an owner identity
func (h *SaleHandler) GetSaleByOwner(c *gin.Context) {
	owner, ok := h.identityParam(c, "owner")
	if !ok {
		return
	}
	resp, err := h.sales.GetSaleByOwner(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Purchase godoc
// @ID           purchaseAllocation
// @Summary      Purchase an allocation
// @Description  Redeems a signed voucher, moves payment to the treasury and records the buyer's escrow.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        sale path string true "Sale address (base58)"
// @Param        request body PurchaseRequest true "Voucher, signature and requested amount"
// @Param        Idempotency-Key header string false "Client retry key"
// @Success      201 {object} APIResponse[presale.PurchaseResult]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /sales/{sale}/purchases [post]
func (h *SaleHandler) Purchase(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	saleAddress, ok := h.identityParam(c, "sale")
	if !ok {
		return
	}
	var req PurchaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	signature, err := voucher.DecodeSignature(req.Signature)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.purchases.Purchase(c.Request.Context(), presale.PurchaseRequest{
		Caller:    caller,
		Sale:      saleAddress,
		Requested: req.Requested,
		Voucher: voucher.Voucher{
			Buyer:         valueobject.MustParseIdentity(req.Voucher.Buyer),
			Sale:          valueobject.MustParseIdentity(req.Voucher.Sale),
			MaxAllocation: req.Voucher.MaxAllocation,
			Nonce:         req.Voucher.Nonce,
			Expiry:        req.Voucher.Expiry,
		},
		Signature: signature,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListEscrows returns every escrow recorded for a sale
func (h *SaleHandler) ListEscrows(c *gin.Context) {
	saleAddress, ok := h.identityParam(c, "sale")
	if !ok {
		return
	}
	escrows, err := h.sales.ListEscrows(c.Request.Context(), saleAddress)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, escrows)
}

// GetEscrow returns one buyer's escrow in a sale
func (h *SaleHandler) GetEscrow(c *gin.Context) {
	saleAddress, ok := h.identityParam(c, "sale")
	if !ok {
		return
	}
	buyer, ok := h.identityParam(c, "buyer")
	if !ok {
		return
	}
	resp, err := h.sales.GetEscrow(c.Request.Context(), saleAddress, buyer)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
