package handler

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/auth"
	"github.com/presale/backend/internal/infrastructure/cache"
	"github.com/presale/backend/internal/infrastructure/config"
	"github.com/presale/backend/internal/infrastructure/persistence"
	"github.com/presale/backend/internal/interfaces/http/dto"
	"github.com/presale/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

func identity(b byte) valueobject.Identity {
	var id valueobject.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

// testAPI wires the handlers over sqlite with a settable clock
type testAPI struct {
	t         *testing.T
	engine    *gin.Engine
	jwt       *auth.JWTService
	now       atomic.Int64
	admin     valueobject.Identity
	buyer     valueobject.Identity
	token     valueobject.Identity
	treasury  valueobject.Identity
	sales     *presale.SaleService
	vouchers  *presale.VoucherService
	ledger    *presale.LedgerService
	issuerKey ed25519.PrivateKey
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.NewDatabaseFromGorm(db).AutoMigrate())

	api := &testAPI{
		t:        t,
		admin:    identity(0xA1),
		buyer:    identity(0xB1),
		token:    identity(0x70),
		treasury: identity(0x7E),
	}
	api.now.Store(1500)
	clock := shared.ClockFunc(func() time.Time { return time.Unix(api.now.Load(), 0) })

	_, api.issuerKey, err = ed25519.GenerateKey(nil)
	require.NoError(t, err)
	issuer, err := voucher.NewIssuer(api.issuerKey)
	require.NoError(t, err)
	gate := voucher.NewGate(voucher.NewEd25519Verifier(), api.issuerKey.Public().(ed25519.PublicKey))

	deriver := valueobject.NewDeriver(identity(0xEE))
	admins := presale.NewAdministrators(api.admin)
	scope := persistence.NewGormTransactionScope(db)
	transferer := presale.NewLedgerTransferer()

	api.sales = presale.NewSaleService(scope, persistence.NewGormSaleRepository(db), persistence.NewGormEscrowRepository(db), deriver, admins)
	purchases := presale.NewPurchaseService(scope, gate, deriver, transferer, clock)
	vestings := presale.NewVestingService(scope, persistence.NewGormScheduleRepository(db), deriver, transferer, clock)
	api.vouchers = presale.NewVoucherService(scope, issuer, persistence.NewGormIssuedVoucherRepository(db), admins, clock)
	api.ledger = presale.NewLedgerService(scope, persistence.NewGormLedgerRepository(db), admins)

	api.jwt = auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "presale-test",
		AccessTokenExpiration: 15 * time.Minute,
		ChallengeExpiration:   time.Minute,
	})
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	revocations := auth.NewRevocationList(store)

	authHandler := NewAuthHandler(api.jwt, revocations)
	saleHandler := NewSaleHandler(api.sales, purchases)
	vestingHandler := NewVestingHandler(vestings)
	voucherHandler := NewVoucherHandler(api.vouchers)
	ledgerHandler := NewLedgerHandler(api.ledger)

	engine := gin.New()
	engine.Use(middleware.RequestID(nil))
	authed := middleware.JWTAuth(middleware.JWTMiddlewareConfig{JWTService: api.jwt, Revocations: revocations})

	engine.POST("/auth/challenge", authHandler.Challenge)
	engine.POST("/auth/token", authHandler.Token)
	engine.POST("/auth/logout", authed, authHandler.Logout)
	engine.GET("/auth/me", authed, authHandler.Me)

	engine.POST("/sales", authed, saleHandler.OpenSale)
	engine.GET("/sales/:sale", saleHandler.GetSale)
	engine.GET("/owners/:owner/sale", saleHandler.GetSaleByOwner)
	engine.POST("/sales/:sale/purchases", authed, saleHandler.Purchase)
	engine.GET("/sales/:sale/escrows", saleHandler.ListEscrows)
	engine.GET("/sales/:sale/escrows/:buyer", saleHandler.GetEscrow)

	engine.POST("/vestings", authed, vestingHandler.CreateVesting)
	engine.GET("/vestings/:vesting", vestingHandler.GetSchedule)
	engine.POST("/vestings/:vesting/claim", authed, vestingHandler.Claim)
	engine.POST("/vestings/:vesting/revoke", authed, vestingHandler.Revoke)
	engine.GET("/beneficiaries/:beneficiary/vesting", vestingHandler.GetScheduleByBeneficiary)

	engine.POST("/vouchers", authed, voucherHandler.Issue)
	engine.GET("/vouchers/:buyer", authed, voucherHandler.ListByBuyer)

	engine.POST("/ledger/deposits", authed, ledgerHandler.Deposit)
	engine.GET("/ledger/balances/:account", ledgerHandler.GetBalances)
	engine.GET("/ledger/entries/:account", ledgerHandler.GetEntries)

	api.engine = engine
	return api
}

func (a *testAPI) at(unix int64) {
	a.now.Store(unix)
}

func (a *testAPI) bearer(id valueobject.Identity) string {
	a.t.Helper()
	tok, err := a.jwt.IssueAccessToken(id)
	require.NoError(a.t, err)
	return middleware.BearerPrefix + tok.AccessToken
}

// do sends body as JSON; as may be the zero identity for anonymous calls
func (a *testAPI) do(method, path string, as valueobject.Identity, body any) (*httptest.ResponseRecorder, dto.Response) {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !as.IsZero() {
		req.Header.Set(middleware.AuthHeaderKey, a.bearer(as))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

// decode re-marshals resp.Data into out
func decode(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// openSale opens {price 5, [1000, 2000], total 100} owned by the admin
func (a *testAPI) openSale() valueobject.Identity {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/sales", a.admin, OpenSaleRequest{
		Asset:          a.token.String(),
		Treasury:       a.treasury.String(),
		Price:          5,
		StartTime:      1000,
		EndTime:        2000,
		TotalAllocated: 100,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var sale presale.SaleResponse
	decode(a.t, resp, &sale)
	return sale.Address
}

func (a *testAPI) deposit(account, asset valueobject.Identity, amount uint64) {
	a.t.Helper()
	w, _ := a.do(http.MethodPost, "/ledger/deposits", a.admin, DepositRequest{
		Account: account.String(),
		Asset:   asset.String(),
		Amount:  amount,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
}

// issue returns a purchase body for the buyer carrying a fresh voucher
func (a *testAPI) issue(sale valueobject.Identity, max, requested uint64) PurchaseRequest {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/vouchers", a.admin, IssueVoucherRequest{
		Buyer:         a.buyer.String(),
		Sale:          sale.String(),
		MaxAllocation: max,
		Expiry:        1900,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var v presale.VoucherResponse
	decode(a.t, resp, &v)
	return PurchaseRequest{
		Requested: requested,
		Voucher: VoucherPayload{
			Buyer:         v.Buyer.String(),
			Sale:          v.Sale.String(),
			MaxAllocation: v.MaxAllocation,
			Nonce:         v.Nonce,
			Expiry:        v.Expiry,
		},
		Signature: v.Signature,
	}
}
