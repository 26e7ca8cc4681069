package grpcserver

import (
	"context"
	"sort"

	"tokex/api/view"
	"tokex/domain/account"
	"tokex/service"
)

var handlers = map[string]handler{
	// platform
	"InitializePlatform": (*Server).initializePlatform,
	"UpdatePlatformFee":  (*Server).updatePlatformFee,
	"PausePlatform":      (*Server).pausePlatform,
	"UnpausePlatform":    (*Server).unpausePlatform,
	"Deposit":            (*Server).deposit,

	// companies and offerings
	"RegisterCompany":       (*Server).registerCompany,
	"VerifyCompany":         (*Server).verifyCompany,
	"CreateTokenOffering":   (*Server).createTokenOffering,
	"ParticipateInOffering": (*Server).participateInOffering,
	"AdminCreateCompany":    (*Server).adminCreateCompany,
	"DistributeTokens":      (*Server).distributeTokens,

	// trading
	"CreatePortfolio": (*Server).createPortfolio,
	"PlaceOrder":      (*Server).placeOrder,
	"CreateBuyOrder":  sided(account.Buy),
	"CreateSellOrder": sided(account.Sell),
	"CancelOrder":     (*Server).cancelOrder,
	"UpdatePortfolio": (*Server).updatePortfolio,

	// escrows
	"CreateEscrow":  (*Server).createEscrow,
	"ReleaseEscrow": (*Server).releaseEscrow,
	"CancelEscrow":  (*Server).cancelEscrow,
	"ExecuteTrade":  (*Server).executeTrade,

	// queries
	"GetPlatform":     (*Server).getPlatform,
	"GetCompany":      (*Server).getCompany,
	"GetOffering":     (*Server).getOffering,
	"GetPortfolio":    (*Server).getPortfolio,
	"GetHolding":      (*Server).getHolding,
	"GetOrder":        (*Server).getOrder,
	"GetTrade":        (*Server).getTrade,
	"GetBalance":      (*Server).getBalance,
	"GetMarketDepth":  (*Server).getMarketDepth,
	"GetEscrow":       (*Server).getEscrow,
	"GetDistribution": (*Server).getDistribution,
}

func methodNames() []string {
	names := make([]string, 0, len(handlers))
	for n := range handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// -------------------- Platform --------------------

func (s *Server) initializePlatform(ctx context.Context, in *args) (view.M, error) {
	req := service.InitializePlatformRequest{Authority: in.key("authority")}
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.InitializePlatform(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Platform(p), nil
}

func (s *Server) updatePlatformFee(ctx context.Context, in *args) (view.M, error) {
	req := service.UpdatePlatformFeeRequest{Requester: in.key("requester")}
	bps := in.uint("fee_bps")
	if bps > 10_000 {
		in.fail("fee_bps %d exceeds 10000", bps)
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	req.FeeBps = uint16(bps)
	p, err := s.svc.UpdatePlatformFee(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Platform(p), nil
}

func (s *Server) pausePlatform(ctx context.Context, in *args) (view.M, error) {
	requester := in.key("requester")
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.PausePlatform(ctx, requester)
	if err != nil {
		return nil, err
	}
	return view.Platform(p), nil
}

func (s *Server) unpausePlatform(ctx context.Context, in *args) (view.M, error) {
	requester := in.key("requester")
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.UnpausePlatform(ctx, requester)
	if err != nil {
		return nil, err
	}
	return view.Platform(p), nil
}

func (s *Server) deposit(ctx context.Context, in *args) (view.M, error) {
	req := service.DepositRequest{
		Requester: in.key("requester"),
		Owner:     in.key("owner"),
		Amount:    in.uint("amount"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	if err := s.svc.Deposit(ctx, req); err != nil {
		return nil, err
	}
	bal, err := s.svc.CashBalance(req.Owner)
	if err != nil {
		return nil, err
	}
	return view.M{"owner": req.Owner.String(), "balance": bal}, nil
}

// -------------------- Companies & offerings --------------------

func (s *Server) registerCompany(ctx context.Context, in *args) (view.M, error) {
	req := service.RegisterCompanyRequest{
		Authority:   in.key("authority"),
		Name:        in.str("name"),
		Symbol:      in.str("symbol"),
		Description: in.optStr("description"),
		TotalSupply: in.uint("total_supply"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	c, err := s.svc.RegisterCompany(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Company(c), nil
}

func (s *Server) verifyCompany(ctx context.Context, in *args) (view.M, error) {
	req := service.VerifyCompanyRequest{
		Requester: in.key("requester"),
		CompanyID: in.uint("company_id"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	c, err := s.svc.VerifyCompany(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Company(c), nil
}

func (s *Server) createTokenOffering(ctx context.Context, in *args) (view.M, error) {
	req := service.CreateOfferingRequest{
		Requester:   in.key("requester"),
		CompanyID:   in.uint("company_id"),
		TotalSupply: in.uint("total_supply"),
		Price:       in.uint("price"),
		Start:       in.int("start"),
		End:         in.int("end"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	o, err := s.svc.CreateTokenOffering(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Offering(o), nil
}

func (s *Server) participateInOffering(ctx context.Context, in *args) (view.M, error) {
	req := service.ParticipateRequest{
		Investor:   in.key("investor"),
		OfferingID: in.uint("offering_id"),
		Investment: in.uint("investment"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.ParticipateInOffering(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Participation(p), nil
}

func (s *Server) adminCreateCompany(ctx context.Context, in *args) (view.M, error) {
	req := service.AdminCreateCompanyRequest{
		Requester:     in.key("requester"),
		Name:          in.str("name"),
		Symbol:        in.str("symbol"),
		Description:   in.optStr("description"),
		InitialSupply: in.uint("initial_supply"),
		InitialPrice:  in.uint("initial_price"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	c, err := s.svc.AdminCreateCompany(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Company(c), nil
}

func (s *Server) distributeTokens(ctx context.Context, in *args) (view.M, error) {
	req := service.DistributeTokensRequest{
		Requester:    in.key("requester"),
		CompanyID:    in.uint("company_id"),
		Recipients:   in.keys("recipients"),
		PerRecipient: in.uint("amount_per_recipient"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	d, err := s.svc.DistributeTokens(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Distribution(d), nil
}

// -------------------- Escrows --------------------

// createEscrow escrows the payment asset, or shares of company_id when
// that field is present.
func (s *Server) createEscrow(ctx context.Context, in *args) (view.M, error) {
	_, shares := in.fields["company_id"]
	req := service.CreateEscrowRequest{
		Payer:     in.key("payer"),
		Recipient: in.key("recipient"),
		Shares:    shares,
		CompanyID: in.optUint("company_id", 0),
		Amount:    in.uint("amount"),
		Reference: in.optUint("reference", 0),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	e, err := s.svc.CreateEscrow(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.TransferEscrow(e), nil
}

func (s *Server) releaseEscrow(ctx context.Context, in *args) (view.M, error) {
	return s.settleEscrow(ctx, in, s.svc.ReleaseEscrow)
}

func (s *Server) cancelEscrow(ctx context.Context, in *args) (view.M, error) {
	return s.settleEscrow(ctx, in, s.svc.CancelEscrow)
}

func (s *Server) settleEscrow(
	ctx context.Context,
	in *args,
	settle func(context.Context, service.SettleEscrowRequest) (*account.TransferEscrow, error),
) (view.M, error) {
	req := service.SettleEscrowRequest{
		Requester: in.key("requester"),
		EscrowID:  in.uint("escrow_id"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	e, err := settle(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.TransferEscrow(e), nil
}

// -------------------- Trading --------------------

func (s *Server) createPortfolio(ctx context.Context, in *args) (view.M, error) {
	req := service.CreatePortfolioRequest{Owner: in.key("owner")}
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.CreatePortfolio(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Portfolio(p), nil
}

func (s *Server) updatePortfolio(ctx context.Context, in *args) (view.M, error) {
	req := service.UpdatePortfolioRequest{Owner: in.key("owner")}
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.UpdatePortfolio(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.Portfolio(p), nil
}

func (s *Server) placeOrder(ctx context.Context, in *args) (view.M, error) {
	return s.place(ctx, in, in.side("side"))
}

func sided(side account.Side) handler {
	return func(s *Server, ctx context.Context, in *args) (view.M, error) {
		return s.place(ctx, in, side)
	}
}

func (s *Server) place(ctx context.Context, in *args, side account.Side) (view.M, error) {
	req := service.PlaceOrderRequest{
		Owner:     in.key("owner"),
		CompanyID: in.uint("company_id"),
		Side:      side,
		Type:      in.kind("type"),
		Quantity:  in.uint("quantity"),
	}
	if req.Type == account.Limit {
		req.Price = in.uint("price")
	} else {
		req.Price = in.optUint("price", 0)
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	res, err := s.svc.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.OrderResult(res.Seq, res.Order, res.Trades, res.Refunded), nil
}

func (s *Server) cancelOrder(ctx context.Context, in *args) (view.M, error) {
	req := service.CancelOrderRequest{
		Requester: in.key("requester"),
		CompanyID: in.uint("company_id"),
		OrderID:   in.uint("order_id"),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	res, err := s.svc.CancelOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.OrderResult(res.Seq, res.Order, res.Trades, res.Refunded), nil
}

func (s *Server) executeTrade(ctx context.Context, in *args) (view.M, error) {
	req := service.ExecuteTradeRequest{
		CompanyID:   in.uint("company_id"),
		BuyOrderID:  in.uint("buy_order_id"),
		SellOrderID: in.uint("sell_order_id"),
		Quantity:    in.optUint("quantity", 0),
	}
	if err := in.done(); err != nil {
		return nil, err
	}
	res, err := s.svc.ExecuteTrade(ctx, req)
	if err != nil {
		return nil, err
	}
	return view.OrderResult(res.Seq, res.Order, res.Trades, res.Refunded), nil
}

// -------------------- Queries --------------------

func (s *Server) getPlatform(_ context.Context, in *args) (view.M, error) {
	p, err := s.svc.GetPlatform()
	if err != nil {
		return nil, err
	}
	return view.Platform(p), nil
}

func (s *Server) getCompany(_ context.Context, in *args) (view.M, error) {
	id := in.uint("company_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	c, err := s.svc.GetCompany(id)
	if err != nil {
		return nil, err
	}
	return view.Company(c), nil
}

func (s *Server) getOffering(_ context.Context, in *args) (view.M, error) {
	id := in.uint("offering_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	o, err := s.svc.GetOffering(id)
	if err != nil {
		return nil, err
	}
	return view.Offering(o), nil
}

func (s *Server) getPortfolio(_ context.Context, in *args) (view.M, error) {
	owner := in.key("owner")
	if err := in.done(); err != nil {
		return nil, err
	}
	p, err := s.svc.GetPortfolio(owner)
	if err != nil {
		return nil, err
	}
	return view.Portfolio(p), nil
}

func (s *Server) getHolding(_ context.Context, in *args) (view.M, error) {
	owner, company := in.key("owner"), in.uint("company_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	h, err := s.svc.GetHolding(owner, company)
	if err != nil {
		return nil, err
	}
	return view.Holding(h), nil
}

func (s *Server) getOrder(_ context.Context, in *args) (view.M, error) {
	company, id := in.uint("company_id"), in.uint("order_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	o, err := s.svc.GetOrder(company, id)
	if err != nil {
		return nil, err
	}
	return view.Order(o), nil
}

func (s *Server) getTrade(_ context.Context, in *args) (view.M, error) {
	id := in.uint("trade_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	t, err := s.svc.GetTrade(id)
	if err != nil {
		return nil, err
	}
	return view.Trade(t), nil
}

// getBalance reads the payment balance, or a company token balance when
// company_id is given.
func (s *Server) getBalance(_ context.Context, in *args) (view.M, error) {
	owner := in.key("owner")
	_, byCompany := in.fields["company_id"]
	company := in.optUint("company_id", 0)
	if err := in.done(); err != nil {
		return nil, err
	}

	mint := s.svc.Addresses().PaymentMint().Key
	if byCompany {
		c, err := s.svc.GetCompany(company)
		if err != nil {
			return nil, err
		}
		mint = c.Mint
	}
	bal, err := s.svc.Balance(owner, mint)
	if err != nil {
		return nil, err
	}
	return view.M{"owner": owner.String(), "mint": mint.String(), "balance": bal}, nil
}

func (s *Server) getMarketDepth(_ context.Context, in *args) (view.M, error) {
	company := in.uint("company_id")
	levels := in.optUint("levels", 20)
	if err := in.done(); err != nil {
		return nil, err
	}
	d, err := s.svc.MarketDepth(company, int(levels))
	if err != nil {
		return nil, err
	}
	return view.Depth(d), nil
}

func (s *Server) getEscrow(_ context.Context, in *args) (view.M, error) {
	id := in.uint("escrow_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	e, err := s.svc.GetTransferEscrow(id)
	if err != nil {
		return nil, err
	}
	return view.TransferEscrow(e), nil
}

func (s *Server) getDistribution(_ context.Context, in *args) (view.M, error) {
	id := in.uint("distribution_id")
	if err := in.done(); err != nil {
		return nil, err
	}
	d, err := s.svc.GetDistribution(id)
	if err != nil {
		return nil, err
	}
	return view.Distribution(d), nil
}
