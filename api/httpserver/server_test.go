package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/domain/account"
	"tokex/domain/matching"
	"tokex/domain/registry"
	"tokex/infra/metrics"
	"tokex/infra/store"
	"tokex/infra/tradelog"
	"tokex/infra/wal/entry"
	"tokex/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var ctx = context.Background()

type history struct {
	company uint64
	owner   string
	limit   int
}

func (h *history) Recent(_ context.Context, companyID uint64, limit int) ([]tradelog.Trade, error) {
	h.company, h.limit = companyID, limit
	return []tradelog.Trade{{TradeID: 1, CompanyID: companyID, Amount: 5}}, nil
}

func (h *history) ByTrader(_ context.Context, owner string, limit int) ([]tradelog.Trade, error) {
	h.owner, h.limit = owner, limit
	return nil, nil
}

type fixture struct {
	svc    *service.ExchangeService
	router http.Handler
	hist   *history
	seller solana.PublicKey
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	j, err := entry.Open(entry.Config{Dir: t.TempDir(), SegmentSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	now := time.Unix(1_700_000_000, 0)
	reg := prometheus.NewRegistry()
	svc := service.New(st, j, service.Config{
		Policy: matching.Policy{AutoMatch: true},
		Fees:   registry.Limits{DefaultFeeBps: 100, MaxFeeBps: 1000},
		Clock:  func() time.Time { return now },
	}, metrics.New(reg), zerolog.Nop())
	require.NoError(t, svc.Recover())

	admin, issuer, seller := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	_, err = svc.InitializePlatform(ctx, service.InitializePlatformRequest{Authority: admin})
	require.NoError(t, err)
	_, err = svc.RegisterCompany(ctx, service.RegisterCompanyRequest{
		Authority: issuer, Name: "Acme Robotics", Symbol: "ACME", TotalSupply: 1_000_000,
	})
	require.NoError(t, err)
	_, err = svc.CreateTokenOffering(ctx, service.CreateOfferingRequest{
		Requester: issuer, CompanyID: 0, TotalSupply: 10_000, Price: 10,
		Start: now.Unix(), End: now.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	_, err = svc.CreatePortfolio(ctx, service.CreatePortfolioRequest{Owner: seller})
	require.NoError(t, err)
	require.NoError(t, svc.Deposit(ctx, service.DepositRequest{Requester: admin, Owner: seller, Amount: 5_000}))
	_, err = svc.ParticipateInOffering(ctx, service.ParticipateRequest{Investor: seller, OfferingID: 0, Investment: 1_000})
	require.NoError(t, err)
	_, err = svc.CreateSellOrder(ctx, seller, 0, account.Limit, 30, 120)
	require.NoError(t, err)

	h := &history{}
	return &fixture{svc: svc, router: New(svc, h, reg, zerolog.Nop()), hist: h, seller: seller}
}

func (f *fixture) get(t *testing.T, path string) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func data(t *testing.T, r Response) map[string]any {
	t.Helper()
	m, ok := r.Data.(map[string]any)
	require.True(t, ok, "data is %T", r.Data)
	return m
}

func TestReadRoutes(t *testing.T) {
	f := setup(t)

	code, resp := f.get(t, "/api/v1/platform")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, float64(1), data(t, resp)["total_companies"])

	code, resp = f.get(t, "/api/v1/companies/0")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ACME", data(t, resp)["symbol"])

	code, resp = f.get(t, "/api/v1/companies/0/orders/1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sell", data(t, resp)["side"])
	assert.Equal(t, float64(30), data(t, resp)["remaining"])

	code, resp = f.get(t, "/api/v1/portfolios/"+f.seller.String()+"/holdings/0")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(70), data(t, resp)["amount"])

	code, resp = f.get(t, "/api/v1/portfolios/"+f.seller.String()+"/balance")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4_000), data(t, resp)["balance"])

	code, resp = f.get(t, "/api/v1/offerings/0")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), data(t, resp)["sold"])
}

func TestDepthIncludesBestPrices(t *testing.T) {
	f := setup(t)

	code, resp := f.get(t, "/api/v1/companies/0/depth?levels=5")
	require.Equal(t, http.StatusOK, code)
	d := data(t, resp)
	assert.Equal(t, float64(120), d["best_ask"])
	assert.NotContains(t, d, "best_bid")
	asks := d["asks"].([]any)
	require.Len(t, asks, 1)
	assert.Equal(t, float64(30), asks[0].(map[string]any)["qty"])
}

func TestErrorStatuses(t *testing.T) {
	f := setup(t)

	tests := []struct {
		path  string
		code  int
		class string
	}{
		{"/api/v1/companies/x", http.StatusBadRequest, "validation"},
		{"/api/v1/companies/9", http.StatusNotFound, "not_found"},
		{"/api/v1/portfolios/nope", http.StatusBadRequest, "validation"},
		{"/api/v1/companies/0/orders/42", http.StatusNotFound, "not_found"},
		{"/api/v1/companies/0/depth?levels=-1", http.StatusBadRequest, "validation"},
		{"/api/v1/trades/1", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, resp := f.get(t, tt.path)
			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.class, resp.Error.Code)
		})
	}
}

func TestTradeHistory(t *testing.T) {
	f := setup(t)

	code, resp := f.get(t, "/api/v1/companies/0/trades?limit=7")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 7, f.hist.limit)

	code, _ = f.get(t, "/api/v1/portfolios/"+f.seller.String()+"/trades")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.seller.String(), f.hist.owner)
	assert.Equal(t, 50, f.hist.limit)

	disabled := New(f.svc, nil, prometheus.NewRegistry(), zerolog.Nop())
	w := httptest.NewRecorder()
	disabled.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/companies/0/trades", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t)

	code, _ := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tokex_")
}
