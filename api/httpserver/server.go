// Package httpserver serves read-only views of the exchange, health and
// Prometheus metrics over HTTP. Instructions go through gRPC only.
package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tokex/api/view"
	"tokex/domain/errs"
	"tokex/infra/tradelog"
	"tokex/service"
)

// TradeHistory answers trade queries from the relational trade log.
type TradeHistory interface {
	Recent(ctx context.Context, companyID uint64, limit int) ([]tradelog.Trade, error)
	ByTrader(ctx context.Context, owner string, limit int) ([]tradelog.Trade, error)
}

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	svc     *service.ExchangeService
	history TradeHistory // nil when the trade log is disabled
	log     zerolog.Logger
}

// New builds the router. history may be nil.
func New(svc *service.ExchangeService, history TradeHistory, gatherer prometheus.Gatherer, log zerolog.Logger) http.Handler {
	s := &Server{svc: svc, history: history, log: log.With().Str("component", "http").Logger()}

	r := gin.New()
	r.Use(gin.Recovery(), s.logger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/platform", s.platform)
		v1.GET("/offerings/:offering", s.offering)
		v1.GET("/trades/:trade", s.trade)

		companies := v1.Group("/companies/:company")
		companies.GET("", s.company)
		companies.GET("/depth", s.depth)
		companies.GET("/orders/:order", s.order)
		companies.GET("/trades", s.companyTrades)

		portfolios := v1.Group("/portfolios/:owner")
		portfolios.GET("", s.portfolio)
		portfolios.GET("/holdings/:company", s.holding)
		portfolios.GET("/balance", s.balance)
		portfolios.GET("/trades", s.traderTrades)
	}
	return r
}

func (s *Server) logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// -------------------- Responses --------------------

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, err error) {
	class := errs.Class(err)
	code := http.StatusInternalServerError
	switch class {
	case "validation":
		code = http.StatusBadRequest
	case "unauthorized":
		code = http.StatusForbidden
	case "not_found":
		code = http.StatusNotFound
	}
	c.AbortWithStatusJSON(code, Response{Error: &Error{Code: class, Message: err.Error()}})
}

func respond[T any](c *gin.Context, v T, err error, render func(T) view.M) {
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, render(v))
}

// -------------------- Params --------------------

func uintParam(c *gin.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		fail(c, errs.Validation("%s must be an unsigned integer", name))
		return 0, false
	}
	return n, true
}

func keyParam(c *gin.Context, name string) (solana.PublicKey, bool) {
	k, err := solana.PublicKeyFromBase58(c.Param(name))
	if err != nil {
		fail(c, errs.Validation("%s is not a base58 key", name))
		return solana.PublicKey{}, false
	}
	return k, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		fail(c, errs.Validation("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}

// -------------------- Handlers --------------------

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "seq": s.svc.Seq()})
}

func (s *Server) platform(c *gin.Context) {
	p, err := s.svc.GetPlatform()
	respond(c, p, err, view.Platform)
}

func (s *Server) company(c *gin.Context) {
	id, valid := uintParam(c, "company")
	if !valid {
		return
	}
	co, err := s.svc.GetCompany(id)
	respond(c, co, err, view.Company)
}

func (s *Server) offering(c *gin.Context) {
	id, valid := uintParam(c, "offering")
	if !valid {
		return
	}
	o, err := s.svc.GetOffering(id)
	respond(c, o, err, view.Offering)
}

func (s *Server) trade(c *gin.Context) {
	id, valid := uintParam(c, "trade")
	if !valid {
		return
	}
	t, err := s.svc.GetTrade(id)
	respond(c, t, err, view.Trade)
}

func (s *Server) order(c *gin.Context) {
	company, valid := uintParam(c, "company")
	if !valid {
		return
	}
	id, valid := uintParam(c, "order")
	if !valid {
		return
	}
	o, err := s.svc.GetOrder(company, id)
	respond(c, o, err, view.Order)
}

func (s *Server) depth(c *gin.Context) {
	company, valid := uintParam(c, "company")
	if !valid {
		return
	}
	levels, valid := intQuery(c, "levels", 20)
	if !valid {
		return
	}
	d, err := s.svc.MarketDepth(company, levels)
	if err != nil {
		fail(c, err)
		return
	}
	out := view.Depth(d)
	bid, hasBid, ask, hasAsk := s.svc.BestPrices(company)
	if hasBid {
		out["best_bid"] = bid
	}
	if hasAsk {
		out["best_ask"] = ask
	}
	ok(c, out)
}

func (s *Server) portfolio(c *gin.Context) {
	owner, valid := keyParam(c, "owner")
	if !valid {
		return
	}
	p, err := s.svc.GetPortfolio(owner)
	respond(c, p, err, view.Portfolio)
}

func (s *Server) holding(c *gin.Context) {
	owner, valid := keyParam(c, "owner")
	if !valid {
		return
	}
	company, valid := uintParam(c, "company")
	if !valid {
		return
	}
	h, err := s.svc.GetHolding(owner, company)
	respond(c, h, err, view.Holding)
}

// balance reads the payment balance, or company tokens with ?company=.
func (s *Server) balance(c *gin.Context) {
	owner, valid := keyParam(c, "owner")
	if !valid {
		return
	}
	mint := s.svc.Addresses().PaymentMint().Key
	if raw, present := c.GetQuery("company"); present {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fail(c, errs.Validation("company must be an unsigned integer"))
			return
		}
		co, err := s.svc.GetCompany(id)
		if err != nil {
			fail(c, err)
			return
		}
		mint = co.Mint
	}
	bal, err := s.svc.Balance(owner, mint)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view.M{"owner": owner.String(), "mint": mint.String(), "balance": bal})
}

func (s *Server) companyTrades(c *gin.Context) {
	company, valid := uintParam(c, "company")
	if !valid {
		return
	}
	s.tradeList(c, func(ctx context.Context, limit int) ([]tradelog.Trade, error) {
		return s.history.Recent(ctx, company, limit)
	})
}

func (s *Server) traderTrades(c *gin.Context) {
	owner, valid := keyParam(c, "owner")
	if !valid {
		return
	}
	s.tradeList(c, func(ctx context.Context, limit int) ([]tradelog.Trade, error) {
		return s.history.ByTrader(ctx, owner.String(), limit)
	})
}

func (s *Server) tradeList(c *gin.Context, query func(ctx context.Context, limit int) ([]tradelog.Trade, error)) {
	if s.history == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
			Error: &Error{Code: "unavailable", Message: "trade log is disabled"},
		})
		return
	}
	limit, valid := intQuery(c, "limit", 50)
	if !valid {
		return
	}
	trades, err := query(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, trades)
}
