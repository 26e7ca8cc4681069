package service

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/escrow"
	"tokex/domain/matching"
	"tokex/domain/registry"
	"tokex/infra/outbox"
	"tokex/infra/store"
	"tokex/infra/wal/entry"
)

// Instruction payloads. Each is journaled as msgpack under its record type.

type InitializePlatformRequest struct {
	Authority solana.PublicKey `msgpack:"authority"`
}

type UpdatePlatformFeeRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	FeeBps    uint16           `msgpack:"fee_bps"`
}

type SetPausedRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	Paused    bool             `msgpack:"paused"`
}

type RegisterCompanyRequest struct {
	Authority   solana.PublicKey `msgpack:"authority"`
	Name        string           `msgpack:"name"`
	Symbol      string           `msgpack:"symbol"`
	Description string           `msgpack:"description"`
	TotalSupply uint64           `msgpack:"total_supply"`
}

type VerifyCompanyRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	CompanyID uint64           `msgpack:"company_id"`
}

type CreateOfferingRequest struct {
	Requester   solana.PublicKey `msgpack:"requester"`
	CompanyID   uint64           `msgpack:"company_id"`
	TotalSupply uint64           `msgpack:"total_supply"`
	Price       uint64           `msgpack:"price"`
	Start       int64            `msgpack:"start"`
	End         int64            `msgpack:"end"`
}

type ParticipateRequest struct {
	Investor   solana.PublicKey `msgpack:"investor"`
	OfferingID uint64           `msgpack:"offering_id"`
	Investment uint64           `msgpack:"investment"`
}

type CreatePortfolioRequest struct {
	Owner solana.PublicKey `msgpack:"owner"`
}

type DepositRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	Owner     solana.PublicKey `msgpack:"owner"`
	Amount    uint64           `msgpack:"amount"`
}

type PlaceOrderRequest struct {
	Owner     solana.PublicKey  `msgpack:"owner"`
	CompanyID uint64            `msgpack:"company_id"`
	Side      account.Side      `msgpack:"side"`
	Type      account.OrderKind `msgpack:"type"`
	Quantity  uint64            `msgpack:"quantity"`
	Price     uint64            `msgpack:"price"`
}

type CancelOrderRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	CompanyID uint64           `msgpack:"company_id"`
	OrderID   uint64           `msgpack:"order_id"`
}

type ExecuteTradeRequest struct {
	CompanyID   uint64 `msgpack:"company_id"`
	BuyOrderID  uint64 `msgpack:"buy_order_id"`
	SellOrderID uint64 `msgpack:"sell_order_id"`
	Quantity    uint64 `msgpack:"quantity,omitempty"`
}

type AdminCreateCompanyRequest struct {
	Requester     solana.PublicKey `msgpack:"requester"`
	Name          string           `msgpack:"name"`
	Symbol        string           `msgpack:"symbol"`
	Description   string           `msgpack:"description"`
	InitialSupply uint64           `msgpack:"initial_supply"`
	InitialPrice  uint64           `msgpack:"initial_price"`
}

type DistributeTokensRequest struct {
	Requester    solana.PublicKey   `msgpack:"requester"`
	CompanyID    uint64             `msgpack:"company_id"`
	Recipients   []solana.PublicKey `msgpack:"recipients"`
	PerRecipient uint64             `msgpack:"per_recipient"`
}

// CreateEscrowRequest escrows the payment asset, or company shares when
// Shares is set.
type CreateEscrowRequest struct {
	Payer     solana.PublicKey `msgpack:"payer"`
	Recipient solana.PublicKey `msgpack:"recipient"`
	Shares    bool             `msgpack:"shares"`
	CompanyID uint64           `msgpack:"company_id"`
	Amount    uint64           `msgpack:"amount"`
	Reference uint64           `msgpack:"reference"`
}

type SettleEscrowRequest struct {
	Requester solana.PublicKey `msgpack:"requester"`
	EscrowID  uint64           `msgpack:"escrow_id"`
}

type UpdatePortfolioRequest struct {
	Owner solana.PublicKey `msgpack:"owner"`
}

// OrderResult is what an order instruction reports back.
type OrderResult struct {
	Seq uint64
	*matching.Result
}

// ------------------------------------------------
// PLATFORM
// ------------------------------------------------

func (s *ExchangeService) InitializePlatform(ctx context.Context, req InitializePlatformRequest) (*account.Platform, error) {
	var p *account.Platform
	_, err := s.exec(ctx, entry.RecordInitializePlatform, req, func(tx *store.Tx, c *call) error {
		var err error
		if p, err = s.registry.InitializePlatform(tx, req.Authority); err != nil {
			return err
		}
		c.emit(outbox.PlatformInitialized, newPlatformEvent(p))
		return nil
	})
	return p, err
}

func (s *ExchangeService) UpdatePlatformFee(ctx context.Context, req UpdatePlatformFeeRequest) (*account.Platform, error) {
	var p *account.Platform
	_, err := s.exec(ctx, entry.RecordUpdatePlatformFee, req, func(tx *store.Tx, c *call) error {
		var err error
		if p, err = s.registry.UpdatePlatformFee(tx, req.Requester, req.FeeBps); err != nil {
			return err
		}
		c.emit(outbox.PlatformFeeUpdated, newPlatformEvent(p))
		return nil
	})
	return p, err
}

func (s *ExchangeService) PausePlatform(ctx context.Context, requester solana.PublicKey) (*account.Platform, error) {
	return s.setPaused(ctx, SetPausedRequest{Requester: requester, Paused: true})
}

func (s *ExchangeService) UnpausePlatform(ctx context.Context, requester solana.PublicKey) (*account.Platform, error) {
	return s.setPaused(ctx, SetPausedRequest{Requester: requester, Paused: false})
}

func (s *ExchangeService) setPaused(ctx context.Context, req SetPausedRequest) (*account.Platform, error) {
	var p *account.Platform
	_, err := s.exec(ctx, entry.RecordSetPaused, req, func(tx *store.Tx, c *call) error {
		var err error
		if p, err = s.registry.SetPaused(tx, req.Requester, req.Paused); err != nil {
			return err
		}
		typ := outbox.PlatformUnpaused
		if req.Paused {
			typ = outbox.PlatformPaused
		}
		c.emit(typ, newPlatformEvent(p))
		return nil
	})
	return p, err
}

// Deposit credits the payment asset to owner. Admin only.
func (s *ExchangeService) Deposit(ctx context.Context, req DepositRequest) error {
	_, err := s.exec(ctx, entry.RecordDeposit, req, func(tx *store.Tx, c *call) error {
		if err := s.registry.Deposit(tx, req.Requester, req.Owner, req.Amount); err != nil {
			return err
		}
		c.emit(outbox.Deposited, accountEvent{Owner: req.Owner.String(), Amount: req.Amount})
		return nil
	})
	return err
}

// ------------------------------------------------
// COMPANIES & OFFERINGS
// ------------------------------------------------

func (s *ExchangeService) RegisterCompany(ctx context.Context, req RegisterCompanyRequest) (*account.Company, error) {
	var co *account.Company
	_, err := s.exec(ctx, entry.RecordRegisterCompany, req, func(tx *store.Tx, c *call) error {
		var err error
		co, err = s.registry.RegisterCompany(tx, registry.RegisterCompanyRequest{
			Authority:   req.Authority,
			Name:        req.Name,
			Symbol:      req.Symbol,
			Description: req.Description,
			TotalSupply: req.TotalSupply,
			Now:         c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.CompanyRegistered, newCompanyEvent(co))
		return nil
	})
	return co, err
}

// AdminCreateCompany issues a verified company with its whole supply
// minted to the admin.
func (s *ExchangeService) AdminCreateCompany(ctx context.Context, req AdminCreateCompanyRequest) (*account.Company, error) {
	var co *account.Company
	_, err := s.exec(ctx, entry.RecordAdminCreateCompany, req, func(tx *store.Tx, c *call) error {
		var err error
		co, err = s.registry.AdminCreateCompany(tx, registry.AdminCreateCompanyRequest{
			Requester:     req.Requester,
			Name:          req.Name,
			Symbol:        req.Symbol,
			Description:   req.Description,
			InitialSupply: req.InitialSupply,
			InitialPrice:  req.InitialPrice,
			Now:           c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.CompanyCreatedByAdmin, adminCompanyEvent{companyEvent: newCompanyEvent(co), InitialPrice: req.InitialPrice})
		return nil
	})
	return co, err
}

// DistributeTokens sends the same amount of admin-held company tokens to
// up to ten recipients.
func (s *ExchangeService) DistributeTokens(ctx context.Context, req DistributeTokensRequest) (*account.Distribution, error) {
	var d *account.Distribution
	_, err := s.exec(ctx, entry.RecordDistributeTokens, req, func(tx *store.Tx, c *call) error {
		var err error
		d, err = s.registry.Distribute(tx, registry.DistributeRequest{
			Requester:    req.Requester,
			CompanyID:    req.CompanyID,
			Recipients:   req.Recipients,
			PerRecipient: req.PerRecipient,
			Now:          c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.TokensDistributed, distributionEvent{
			DistributionID: d.ID,
			CompanyID:      d.CompanyID,
			Admin:          d.Admin.String(),
			Recipients:     len(d.Recipients),
			PerRecipient:   d.PerRecipient,
			Total:          d.Total,
		})
		for _, to := range d.Recipients {
			c.emit(outbox.TokensTransferred, transferEvent{
				From:   d.Admin.String(),
				To:     to.String(),
				Mint:   d.Mint.String(),
				Amount: d.PerRecipient,
			})
		}
		return nil
	})
	return d, err
}

func (s *ExchangeService) VerifyCompany(ctx context.Context, req VerifyCompanyRequest) (*account.Company, error) {
	var co *account.Company
	_, err := s.exec(ctx, entry.RecordVerifyCompany, req, func(tx *store.Tx, c *call) error {
		var err error
		if co, err = s.registry.VerifyCompany(tx, req.Requester, req.CompanyID); err != nil {
			return err
		}
		c.emit(outbox.CompanyVerified, newCompanyEvent(co))
		return nil
	})
	return co, err
}

func (s *ExchangeService) CreateTokenOffering(ctx context.Context, req CreateOfferingRequest) (*account.Offering, error) {
	var o *account.Offering
	_, err := s.exec(ctx, entry.RecordCreateOffering, req, func(tx *store.Tx, c *call) error {
		var err error
		o, err = s.registry.CreateOffering(tx, registry.CreateOfferingRequest{
			Requester:   req.Requester,
			CompanyID:   req.CompanyID,
			TotalSupply: req.TotalSupply,
			Price:       req.Price,
			Start:       req.Start,
			End:         req.End,
			Now:         c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.OfferingCreated, newOfferingEvent(o))
		return nil
	})
	return o, err
}

func (s *ExchangeService) ParticipateInOffering(ctx context.Context, req ParticipateRequest) (*registry.Participation, error) {
	var p *registry.Participation
	_, err := s.exec(ctx, entry.RecordParticipateInOffering, req, func(tx *store.Tx, c *call) error {
		var err error
		p, err = s.registry.Participate(tx, registry.ParticipateRequest{
			Investor:   req.Investor,
			OfferingID: req.OfferingID,
			Investment: req.Investment,
			Now:        c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.OfferingParticipated, participationEvent{
			OfferingID: p.Offering.ID,
			Investor:   req.Investor.String(),
			Tokens:     p.Tokens,
			Cost:       p.Cost,
			Sold:       p.Offering.Sold,
			Status:     p.Offering.Status.String(),
		})
		return nil
	})
	return p, err
}

// ------------------------------------------------
// PORTFOLIOS
// ------------------------------------------------

func (s *ExchangeService) CreatePortfolio(ctx context.Context, req CreatePortfolioRequest) (*account.Portfolio, error) {
	var p *account.Portfolio
	_, err := s.exec(ctx, entry.RecordCreatePortfolio, req, func(tx *store.Tx, c *call) error {
		var err error
		if p, err = s.portfolio.Create(tx, req.Owner, c.now()); err != nil {
			return err
		}
		c.emit(outbox.PortfolioCreated, accountEvent{Owner: req.Owner.String()})
		return nil
	})
	return p, err
}

// UpdatePortfolio revalues owner's holdings at the last trade prices.
func (s *ExchangeService) UpdatePortfolio(ctx context.Context, req UpdatePortfolioRequest) (*account.Portfolio, error) {
	var p *account.Portfolio
	_, err := s.exec(ctx, entry.RecordUpdatePortfolio, req, func(tx *store.Tx, c *call) error {
		var err error
		if p, err = s.portfolio.Revalue(tx, req.Owner, c.now()); err != nil {
			return err
		}
		c.emit(outbox.PortfolioUpdated, portfolioEvent{
			Owner:       req.Owner.String(),
			Holdings:    p.Holdings,
			MarketValue: p.MarketValue,
			Invested:    p.Value,
			Unrealized:  p.Unrealized,
			Realized:    p.Realized,
		})
		return nil
	})
	return p, err
}

// ------------------------------------------------
// ESCROWS
// ------------------------------------------------

// CreateEscrow locks the payer's asset for the recipient.
func (s *ExchangeService) CreateEscrow(ctx context.Context, req CreateEscrowRequest) (*account.TransferEscrow, error) {
	var e *account.TransferEscrow
	_, err := s.exec(ctx, entry.RecordCreateEscrow, req, func(tx *store.Tx, c *call) error {
		var err error
		e, err = s.transfers.Create(tx, escrow.TransferRequest{
			Payer:     req.Payer,
			Recipient: req.Recipient,
			Shares:    req.Shares,
			CompanyID: req.CompanyID,
			Amount:    req.Amount,
			Reference: req.Reference,
			Now:       c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.EscrowCreated, newEscrowEvent(e))
		return nil
	})
	return e, err
}

// ReleaseEscrow pays the escrow to its recipient. Either party may ask.
func (s *ExchangeService) ReleaseEscrow(ctx context.Context, req SettleEscrowRequest) (*account.TransferEscrow, error) {
	return s.settleEscrow(ctx, entry.RecordReleaseEscrow, req, s.transfers.Release, outbox.EscrowReleased)
}

// CancelEscrow returns the escrow to its payer. Payer only.
func (s *ExchangeService) CancelEscrow(ctx context.Context, req SettleEscrowRequest) (*account.TransferEscrow, error) {
	return s.settleEscrow(ctx, entry.RecordCancelEscrow, req, s.transfers.Cancel, outbox.EscrowCancelled)
}

type settleFunc func(s account.Store, id uint64, requester solana.PublicKey, now int64) (*account.TransferEscrow, error)

func (s *ExchangeService) settleEscrow(
	ctx context.Context,
	typ entry.RecordType,
	req SettleEscrowRequest,
	settle settleFunc,
	event string,
) (*account.TransferEscrow, error) {
	var e *account.TransferEscrow
	_, err := s.exec(ctx, typ, req, func(tx *store.Tx, c *call) error {
		var err error
		if e, err = settle(tx, req.EscrowID, req.Requester, c.now()); err != nil {
			return err
		}
		c.emit(event, newEscrowEvent(e))
		return nil
	})
	return e, err
}

// ------------------------------------------------
// ORDERS
// ------------------------------------------------

// PlaceOrder escrows the offered asset, assigns the next order id and
// matches. A limit remainder rests; a market remainder never does.
func (s *ExchangeService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderResult, error) {
	var res *matching.Result
	seq, err := s.exec(ctx, entry.RecordPlaceOrder, req, func(tx *store.Tx, c *call) error {
		var err error
		res, err = s.engine.Place(tx, s.books.Peek(req.CompanyID), matching.PlaceRequest{
			Owner:     req.Owner,
			CompanyID: req.CompanyID,
			Side:      req.Side,
			Type:      req.Type,
			Qty:       req.Quantity,
			Price:     req.Price,
			Now:       c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.OrderCreated, newOrderEvent(res.Order, 0))
		emitTrades(c, res)
		if res.Order.Status == account.Cancelled {
			c.emit(outbox.OrderCancelled, newOrderEvent(res.Order, res.Refunded))
		}
		c.apply(req.CompanyID, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Seq: seq, Result: res}, nil
}

func (s *ExchangeService) CreateBuyOrder(
	ctx context.Context,
	owner solana.PublicKey,
	companyID uint64,
	kind account.OrderKind,
	qty, price uint64,
) (*OrderResult, error) {
	return s.PlaceOrder(ctx, PlaceOrderRequest{
		Owner: owner, CompanyID: companyID, Side: account.Buy, Type: kind, Quantity: qty, Price: price,
	})
}

func (s *ExchangeService) CreateSellOrder(
	ctx context.Context,
	owner solana.PublicKey,
	companyID uint64,
	kind account.OrderKind,
	qty, price uint64,
) (*OrderResult, error) {
	return s.PlaceOrder(ctx, PlaceOrderRequest{
		Owner: owner, CompanyID: companyID, Side: account.Sell, Type: kind, Quantity: qty, Price: price,
	})
}

// CancelOrder refunds the remaining escrow. Allowed while paused.
func (s *ExchangeService) CancelOrder(ctx context.Context, req CancelOrderRequest) (*OrderResult, error) {
	var res *matching.Result
	seq, err := s.exec(ctx, entry.RecordCancelOrder, req, func(tx *store.Tx, c *call) error {
		var err error
		res, err = s.engine.Cancel(tx, matching.CancelRequest{
			CompanyID: req.CompanyID,
			OrderID:   req.OrderID,
			Requester: req.Requester,
			Now:       c.now(),
		})
		if err != nil {
			return err
		}
		c.emit(outbox.OrderCancelled, newOrderEvent(res.Order, res.Refunded))
		c.apply(req.CompanyID, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Seq: seq, Result: res}, nil
}

// ExecuteTrade matches two named orders. Re-running it against orders
// that no longer cross is a successful no-op.
func (s *ExchangeService) ExecuteTrade(ctx context.Context, req ExecuteTradeRequest) (*OrderResult, error) {
	var res *matching.Result
	seq, err := s.exec(ctx, entry.RecordExecuteTrade, req, func(tx *store.Tx, c *call) error {
		var err error
		res, err = s.engine.Execute(tx, matching.ExecuteRequest{
			CompanyID:   req.CompanyID,
			BuyOrderID:  req.BuyOrderID,
			SellOrderID: req.SellOrderID,
			Quantity:    req.Quantity,
			Now:         c.now(),
		})
		if err != nil {
			return err
		}
		emitTrades(c, res)
		c.apply(req.CompanyID, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Seq: seq, Result: res}, nil
}

func emitTrades(c *call, res *matching.Result) {
	for _, t := range res.Trades {
		c.emit(outbox.TradeExecuted, newTradeEvent(t))
	}
}
