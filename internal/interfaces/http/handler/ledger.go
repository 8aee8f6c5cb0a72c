package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

const defaultEntryLimit = 100

// LedgerHandler serves token balances and deposits
type LedgerHandler struct {
	BaseHandler
	ledger *presale.LedgerService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService *presale.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledgerService}
}

// DepositRequest credits an account from outside the ledger
type DepositRequest struct {
	Account   string `json:"account" binding:"required,base58id"`
	Asset     string `json:"asset" binding:"required,base58id"`
	Amount    uint64 `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"max=128"`
}

// EntryResponse is one journal line
type EntryResponse struct {
	ID        string               `json:"id"`
	Kind      ledger.EntryKind     `json:"kind"`
	Asset     valueobject.Identity `json:"asset"`
	From      valueobject.Identity `json:"from"`
	To        valueobject.Identity `json:"to"`
	Amount    uint64               `json:"amount"`
	Reference string               `json:"reference,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Deposit godoc
// @ID           ledgerDeposit
// @Summary      Credit an account
// @Description  Mints a balance for an account. Administrators only.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body DepositRequest true "Deposit"
// @Success      201 {object} APIResponse[presale.BalanceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /ledger/deposits [post]
func (h *LedgerHandler) Deposit(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req DepositRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.ledger.Deposit(c.Request.Context(), presale.DepositRequest{
		Caller:    caller,
		Account:   valueobject.MustParseIdentity(req.Account),
		Asset:     valueobject.MustParseIdentity(req.Asset),
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetBalances returns every holding of an account, or a single holding when
// the asset query parameter is set
func (h *LedgerHandler) GetBalances(c *gin.Context) {
	account, ok := h.identityParam(c, "account")
	if !ok {
		return
	}

	if raw := c.Query("asset"); raw != "" {
		asset, err := valueobject.ParseIdentity(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp, err := h.ledger.Balance(c.Request.Context(), account, asset)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, resp)
		return
	}

	balances, err := h.ledger.Balances(c.Request.Context(), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balances)
}

// GetEntries returns the newest journal entries touching an account
func (h *LedgerHandler) GetEntries(c *gin.Context) {
	account, ok := h.identityParam(c, "account")
	if !ok {
		return
	}
	entries, err := h.ledger.Entries(c.Request.Context(), account, intQuery(c, "limit", defaultEntryLimit))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]EntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = EntryResponse{
			ID:        e.ID.String(),
			Kind:      e.Kind,
			Asset:     e.Asset,
			From:      e.From,
			To:        e.To,
			Amount:    e.Amount,
			Reference: e.Reference,
			CreatedAt: e.CreatedAt,
		}
	}
	h.Success(c, resp)
}
