package handler

import (
	"net/http"
	"testing"

	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== Open sale ====================

func TestSaleHandler_OpenSale(t *testing.T) {
	t.Run("admin opens a sale", func(t *testing.T) {
		api := newTestAPI(t)
		address := api.openSale()

		w, resp := api.do(http.MethodGet, "/sales/"+address.String(), valueobject.ZeroIdentity, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var sale presale.SaleResponse
		decode(t, resp, &sale)
		assert.Equal(t, api.admin, sale.Owner)
		assert.Equal(t, uint64(100), sale.Remaining)

		w, resp = api.do(http.MethodGet, "/owners/"+api.admin.String()+"/sale", valueobject.ZeroIdentity, nil)
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, resp, &sale)
		assert.Equal(t, address, sale.Address)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		api := newTestAPI(t)
		w, resp := api.do(http.MethodPost, "/sales", api.buyer, OpenSaleRequest{
			Asset: api.token.String(), Treasury: api.treasury.String(),
			Price: 5, StartTime: 1000, EndTime: 2000, TotalAllocated: 100,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	})

	t.Run("second sale for the same owner conflicts", func(t *testing.T) {
		api := newTestAPI(t)
		api.openSale()
		w, resp := api.do(http.MethodPost, "/sales", api.admin, OpenSaleRequest{
			Asset: api.token.String(), Treasury: api.treasury.String(),
			Price: 5, StartTime: 1000, EndTime: 2000, TotalAllocated: 100,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "SALE_ALREADY_EXISTS", resp.Error.Code)
	})

	t.Run("inverted time range", func(t *testing.T) {
		api := newTestAPI(t)
		w, resp := api.do(http.MethodPost, "/sales", api.admin, OpenSaleRequest{
			Asset: api.token.String(), Treasury: api.treasury.String(),
			Price: 5, StartTime: 2000, EndTime: 1000, TotalAllocated: 100,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_TIME_RANGE", resp.Error.Code)
	})

	t.Run("malformed identity fails validation", func(t *testing.T) {
		api := newTestAPI(t)
		w, resp := api.do(http.MethodPost, "/sales", api.admin, `{"asset":"nope","treasury":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Len(t, resp.Error.Details, 2)
	})

	t.Run("anonymous caller is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		w, _ := api.do(http.MethodPost, "/sales", valueobject.ZeroIdentity, OpenSaleRequest{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSaleHandler_GetSale(t *testing.T) {
	api := newTestAPI(t)

	t.Run("unknown sale", func(t *testing.T) {
		w, resp := api.do(http.MethodGet, "/sales/"+identity(0x55).String(), valueobject.ZeroIdentity, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("bad address", func(t *testing.T) {
		w, resp := api.do(http.MethodGet, "/sales/0OIl", valueobject.ZeroIdentity, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_IDENTITY", resp.Error.Code)
	})
}

// ==================== Purchase ====================

func TestSaleHandler_Purchase(t *testing.T) {
	t.Run("settles payment and records escrow", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		api.deposit(api.buyer, ledger.NativeAsset, 1000)

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, api.issue(sale, 30, 20))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var result presale.PurchaseResult
		decode(t, resp, &result)
		assert.Equal(t, uint64(20), result.Escrow.Allocation)
		assert.Equal(t, uint64(100), result.Payment)
		assert.Equal(t, uint64(80), result.Remaining)

		w, resp = api.do(http.MethodGet, "/sales/"+sale.String()+"/escrows/"+api.buyer.String(), valueobject.ZeroIdentity, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var escrow presale.EscrowResponse
		decode(t, resp, &escrow)
		assert.Equal(t, api.buyer, escrow.Buyer)

		w, resp = api.do(http.MethodGet, "/sales/"+sale.String()+"/escrows", valueobject.ZeroIdentity, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var escrows []presale.EscrowResponse
		decode(t, resp, &escrows)
		assert.Len(t, escrows, 1)
	})

	t.Run("second purchase is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		api.deposit(api.buyer, ledger.NativeAsset, 1000)

		w, _ := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, api.issue(sale, 30, 10))
		require.Equal(t, http.StatusCreated, w.Code)

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, api.issue(sale, 30, 10))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "VOUCHER_ALREADY_USED", resp.Error.Code)
	})

	t.Run("voucher presented by someone else", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", identity(0xC1), api.issue(sale, 30, 10))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INVALID_VOUCHER", resp.Error.Code)
	})

	t.Run("tampered allocation breaks the signature", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		body := api.issue(sale, 30, 10)
		body.Voucher.MaxAllocation = 90

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INVALID_VOUCHER", resp.Error.Code)
	})

	t.Run("undecodable signature", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		body := api.issue(sale, 30, 10)
		body.Signature = "!!!"

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INVALID_VOUCHER", resp.Error.Code)
	})

	t.Run("expired voucher", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		body := api.issue(sale, 30, 10)
		api.at(1950)

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "VOUCHER_EXPIRED", resp.Error.Code)
	})

	t.Run("before the window", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()
		api.deposit(api.buyer, ledger.NativeAsset, 1000)
		body := api.issue(sale, 30, 10)
		api.at(900)

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "SALE_NOT_STARTED", resp.Error.Code)
	})

	t.Run("unfunded buyer leaves the sale untouched", func(t *testing.T) {
		api := newTestAPI(t)
		sale := api.openSale()

		w, resp := api.do(http.MethodPost, "/sales/"+sale.String()+"/purchases", api.buyer, api.issue(sale, 30, 10))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Error.Code)

		_, resp = api.do(http.MethodGet, "/sales/"+sale.String(), valueobject.ZeroIdentity, nil)
		var got presale.SaleResponse
		decode(t, resp, &got)
		assert.Zero(t, got.Sold)
	})
}
