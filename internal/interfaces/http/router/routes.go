package router

import (
	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers served under the API prefix
type Handlers struct {
	Auth    *handler.AuthHandler
	Sale    *handler.SaleHandler
	Vesting *handler.VestingHandler
	Voucher *handler.VoucherHandler
	Ledger  *handler.LedgerHandler
	Outbox  *handler.OutboxHandler
	System  *handler.SystemHandler
}

// Guards are the access middlewares applied to protected routes
type Guards struct {
	// Authenticated requires a valid access token
	Authenticated gin.HandlerFunc
	// Administrator must run after Authenticated
	Administrator gin.HandlerFunc
	// Throttle limits authenticated mutations per caller; nil disables it
	Throttle gin.HandlerFunc
	// Idempotent deduplicates retried mutations; nil disables it
	Idempotent gin.HandlerFunc
}

func (g Guards) mutation() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{g.Authenticated}
	if g.Throttle != nil {
		chain = append(chain, g.Throttle)
	}
	if g.Idempotent != nil {
		chain = append(chain, g.Idempotent)
	}
	return chain
}

// PresaleGroups returns the route groups of the settlement API
func PresaleGroups(h Handlers, g Guards) []RouteRegistrar {
	authGroup := NewDomainGroup("auth", "/auth")
	authGroup.POST("/challenge", h.Auth.Challenge)
	authGroup.POST("/token", h.Auth.Token)
	authGroup.Group("session", "").Use(g.Authenticated).
		POST("/logout", h.Auth.Logout).
		GET("/me", h.Auth.Me)

	sales := NewDomainGroup("sale", "/sales")
	sales.GET("/:sale", h.Sale.GetSale)
	sales.GET("/:sale/escrows", h.Sale.ListEscrows)
	sales.GET("/:sale/escrows/:buyer", h.Sale.GetEscrow)
	sales.Group("sale-mutations", "").Use(g.mutation()...).
		POST("", h.Sale.OpenSale).
		POST("/:sale/purchases", h.Sale.Purchase)

	owners := NewDomainGroup("owner", "/owners")
	owners.GET("/:owner/sale", h.Sale.GetSaleByOwner)

	vestings := NewDomainGroup("vesting", "/vestings")
	vestings.GET("/:vesting", h.Vesting.GetSchedule)
	vestings.Group("vesting-mutations", "").Use(g.mutation()...).
		POST("", h.Vesting.CreateVesting).
		POST("/:vesting/claim", h.Vesting.Claim).
		POST("/:vesting/revoke", h.Vesting.Revoke)

	beneficiaries := NewDomainGroup("beneficiary", "/beneficiaries")
	beneficiaries.GET("/:beneficiary/vesting", h.Vesting.GetScheduleByBeneficiary)

	vouchers := NewDomainGroup("voucher", "/vouchers").Use(g.Authenticated)
	vouchers.POST("", h.Voucher.Issue)
	vouchers.GET("/:buyer", h.Voucher.ListByBuyer)

	ledgerGroup := NewDomainGroup("ledger", "/ledger")
	ledgerGroup.GET("/balances/:account", h.Ledger.GetBalances)
	ledgerGroup.GET("/entries/:account", h.Ledger.GetEntries)
	ledgerGroup.Group("ledger-mutations", "").Use(g.mutation()...).
		POST("/deposits", h.Ledger.Deposit)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.Group("outbox", "/outbox").Use(g.Authenticated, g.Administrator).
		GET("/dead", h.Outbox.GetDeadLetterEntries).
		GET("/stats", h.Outbox.GetStats).
		POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
		GET("/:id", h.Outbox.GetEntry).
		POST("/:id/retry", h.Outbox.RetryDeadEntry)

	return []RouteRegistrar{authGroup, sales, owners, vestings, beneficiaries, vouchers, ledgerGroup, system}
}
