package matching

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
	"tokex/domain/escrow"
	"tokex/domain/fees"
	"tokex/domain/orderbook"
	"tokex/domain/portfolio"
)

// MarketRemainder decides what happens to the unfilled part of a market order.
type MarketRemainder uint8

const (
	// RemainderCancel fills what it can and refunds the rest.
	RemainderCancel MarketRemainder = iota
	// RemainderReject refuses a market order the book cannot fill in full.
	RemainderReject
)

type Policy struct {
	AutoMatch       bool
	MarketRemainder MarketRemainder
}

// Engine places, matches and cancels orders against one instruction's
// view of the ledger. The order book is only read; every change the book
// needs is returned in the Result and applied once the ledger commits.
type Engine struct {
	addr      account.Deriver
	portfolio portfolio.Ledger
	escrow    escrow.Manager
	fees      fees.Accumulator
	policy    Policy
}

func NewEngine(
	d account.Deriver,
	p portfolio.Ledger,
	m escrow.Manager,
	f fees.Accumulator,
	policy Policy,
) *Engine {
	return &Engine{
		addr:      d,
		portfolio: p,
		escrow:    m,
		fees:      f,
		policy:    policy,
	}
}

func (e *Engine) Policy() Policy { return e.policy }

type PlaceRequest struct {
	Owner     solana.PublicKey
	CompanyID uint64
	Side      account.Side
	Type      account.OrderKind
	Qty       uint64
	Price     uint64 // ignored for market orders
	Now       int64
}

func (r PlaceRequest) validate() error {
	if r.Qty == 0 {
		return errs.Validation("order quantity must be positive")
	}
	if r.Type == account.Limit && r.Price == 0 {
		return errs.Validation("limit price must be positive")
	}
	if r.Type != account.Limit && r.Type != account.Market {
		return errs.Validation("unknown order type %d", r.Type)
	}
	if r.Side != account.Buy && r.Side != account.Sell {
		return errs.Validation("unknown order side %d", r.Side)
	}
	return nil
}

// Place admits a new order: escrow its offered asset, assign the next id,
// then match it. Market remainders are settled per policy and never rest.
func (e *Engine) Place(s account.Store, book *orderbook.OrderBook, req PlaceRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Type == account.Market {
		req.Price = 0
	}

	platform, err := e.loadPlatform(s)
	if err != nil {
		return nil, err
	}
	if platform.Paused {
		return nil, errs.Paused()
	}
	company, err := account.LoadOr[*account.Company](s, e.addr.Company(req.CompanyID).Key, "company")
	if err != nil {
		return nil, err
	}
	if _, err := e.portfolio.Get(s, req.Owner); err != nil {
		return nil, err
	}

	obAddr := e.addr.Orderbook(req.CompanyID)
	ob, err := account.LoadOr[*account.Orderbook](s, obAddr.Key, "orderbook")
	if err != nil {
		return nil, err
	}

	id := ob.NextOrderID
	ob.NextOrderID++
	ob.TotalOrders++
	if req.Side == account.Buy {
		ob.BuyOrders++
	} else {
		ob.SellOrders++
	}
	if err := account.Save(s, obAddr.Key, ob); err != nil {
		return nil, err
	}

	at := e.addr.Order(req.CompanyID, id)
	o := &account.Order{
		ID:        id,
		Owner:     req.Owner,
		CompanyID: req.CompanyID,
		Amount:    req.Qty,
		Price:     req.Price,
		Side:      req.Side,
		Status:    account.Open,
		CreatedAt: req.Now,
		Remaining: req.Qty,
		Type:      req.Type,
		Bump:      at.Bump,
	}
	if err := account.Init(s, at.Key, o); err != nil {
		return nil, err
	}

	if err := e.lock(s, book, platform, company, o); err != nil {
		return nil, err
	}

	res := &Result{Order: o}
	if e.policy.AutoMatch || o.Type == account.Market {
		if err := e.match(s, book, company, o, res, req.Now); err != nil {
			return nil, err
		}
	}

	switch {
	case o.Remaining == 0:
		// filled while matching
	case o.Type == account.Market:
		refund, err := e.cancelRemainder(s, company, o, req.Now)
		if err != nil {
			return nil, err
		}
		res.Refunded = refund
	default:
		if e.policy.AutoMatch {
			if err := selfCross(book, o); err != nil {
				return nil, err
			}
		}
		res.delta.rest = true
	}

	if err := account.Save(s, at.Key, o); err != nil {
		return nil, err
	}
	if err := e.escrow.Verify(s, o); err != nil {
		return nil, err
	}
	return res, nil
}

// lock escrows what the order offers: tokens for a sell, payment for a buy.
func (e *Engine) lock(
	s account.Store,
	book *orderbook.OrderBook,
	platform *account.Platform,
	company *account.Company,
	o *account.Order,
) error {
	var cost uint64
	if o.Type == account.Market {
		fillable, c, err := marketCost(book, o)
		if err != nil {
			return err
		}
		if fillable < o.Amount && e.policy.MarketRemainder == RemainderReject {
			return errs.InsufficientLiquidity("book can fill %d of market order for %d", fillable, o.Amount)
		}
		cost = c
	} else if o.Side == account.Buy {
		c, err := amount.Mul(o.Amount, o.Price)
		if err != nil {
			return err
		}
		cost = c
	}

	if o.Side == account.Sell {
		basis, err := e.portfolio.Debit(s, o.Owner, o.CompanyID, o.Amount, o.CreatedAt)
		if err != nil {
			return err
		}
		_, err = e.escrow.Lock(s, o, company.Mint, o.Amount, basis)
		return err
	}
	_, err := e.escrow.Lock(s, o, platform.PaymentMint, cost, 0)
	if errors.Is(err, errs.ErrInsufficientBalance) {
		return errs.InsufficientFunds("%s cannot cover %d for buy order %d/%d", o.Owner, cost, o.CompanyID, o.ID)
	}
	return err
}

// marketCost walks the counterparties a market order would meet and
// returns the fillable quantity and its payment cost.
func marketCost(book *orderbook.OrderBook, o *account.Order) (qty, cost uint64, err error) {
	want := o.Amount
	book.Counterparties(o.Side, func(r *orderbook.Order) bool {
		if r.Owner == o.Owner {
			return true
		}
		take := min(want-qty, r.Qty)
		var notional uint64
		if notional, err = amount.Mul(take, r.Price); err != nil {
			return false
		}
		if cost, err = amount.Add(cost, notional); err != nil {
			return false
		}
		qty += take
		return qty < want
	})
	return qty, cost, err
}

// match walks resting orders best-first and fills o against each one it
// crosses. Resting orders of the same owner are skipped; Place rejects the
// order if its remainder would then rest across them.
func (e *Engine) match(
	s account.Store,
	book *orderbook.OrderBook,
	company *account.Company,
	o *account.Order,
	res *Result,
	now int64,
) error {
	var err error
	book.Counterparties(o.Side, func(r *orderbook.Order) bool {
		if o.Remaining == 0 {
			return false
		}
		if o.Type == account.Limit && !crosses(o, r.Price) {
			return false
		}
		if r.Owner == o.Owner {
			return true
		}

		var maker *account.Order
		if maker, err = e.loadResting(s, o.CompanyID, r); err != nil {
			return false
		}

		qty := min(o.Remaining, maker.Remaining)
		buy, sell := o, maker
		if o.Side == account.Sell {
			buy, sell = maker, o
		}
		var trade *account.Trade
		if trade, err = e.settle(s, company, buy, sell, qty, maker.Price, now); err != nil {
			return false
		}
		if err = e.saveOrder(s, maker); err != nil {
			return false
		}
		if err = e.escrow.Verify(s, maker); err != nil {
			return false
		}

		res.Trades = append(res.Trades, trade)
		res.Makers = append(res.Makers, maker)
		res.delta.reduce = append(res.delta.reduce, reduction{id: maker.ID, qty: qty})
		return true
	})
	return err
}

// selfCross refuses to rest a remainder that would cross the owner's own
// resting orders. Matching only leaves o unfilled once every crossing order
// of another owner is used up, so any crossing order still seen is o's own.
func selfCross(book *orderbook.OrderBook, o *account.Order) error {
	var err error
	book.Counterparties(o.Side, func(r *orderbook.Order) bool {
		if !crosses(o, r.Price) {
			return false
		}
		if r.Owner == o.Owner {
			err = errs.SelfTrade("order at %d would rest across own order %d at %d", o.Price, r.ID, r.Price)
			return false
		}
		return true
	})
	return err
}

func crosses(taker *account.Order, restingPrice uint64) bool {
	if taker.Side == account.Buy {
		return taker.Price >= restingPrice
	}
	return taker.Price <= restingPrice
}

// loadResting reads a resting order's ledger record and checks the book
// agrees with it.
func (e *Engine) loadResting(s account.Store, companyID uint64, r *orderbook.Order) (*account.Order, error) {
	o, err := account.LoadOr[*account.Order](s, e.addr.Order(companyID, r.ID).Key, "order")
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() || o.Remaining != r.Qty || o.Price != r.Price {
		return nil, errs.InvariantViolation(
			"book entry %d/%d (qty %d @ %d) disagrees with ledger (%s, qty %d @ %d)",
			companyID, r.ID, r.Qty, r.Price, o.Status, o.Remaining, o.Price)
	}
	return o, nil
}

// settle executes qty at price between a buy and a sell order: tokens go
// from the sell escrow to the buyer, payment from the buy escrow to the
// seller net of the platform fee. Both orders are updated in place.
func (e *Engine) settle(
	s account.Store,
	company *account.Company,
	buy, sell *account.Order,
	qty, price uint64,
	now int64,
) (*account.Trade, error) {
	platform, err := e.loadPlatform(s)
	if err != nil {
		return nil, err
	}
	notional, err := amount.Mul(qty, price)
	if err != nil {
		return nil, err
	}
	fee, proceeds, err := e.fees.Quote(platform, notional)
	if err != nil {
		return nil, err
	}

	// Base asset leg.
	basis, err := e.escrow.ReleasePartial(s, sell, qty, buy.Owner)
	if err != nil {
		return nil, errs.WrapInvariant(err, "release %d from sell order %d", qty, sell.ID)
	}

	// Payment leg.
	if _, err := e.escrow.ReleasePartial(s, buy, proceeds, sell.Owner); err != nil {
		return nil, errs.WrapInvariant(err, "release %d from buy order %d", proceeds, buy.ID)
	}
	if err := e.fees.Collect(s, buy, fee); err != nil {
		return nil, errs.WrapInvariant(err, "collect fee %d from buy order %d", fee, buy.ID)
	}
	if buy.Type == account.Limit && buy.Price > price {
		improvement, err := amount.Mul(qty, buy.Price-price)
		if err != nil {
			return nil, err
		}
		if _, err := e.escrow.ReleasePartial(s, buy, improvement, buy.Owner); err != nil {
			return nil, errs.WrapInvariant(err, "refund %d to buy order %d", improvement, buy.ID)
		}
	}

	if err := e.portfolio.Credit(s, buy.Owner, buy.CompanyID, company.Mint, qty, notional, now); err != nil {
		return nil, err
	}
	if err := e.portfolio.Realize(s, sell.Owner, sell.CompanyID, proceeds, basis, now); err != nil {
		return nil, err
	}

	for _, o := range []*account.Order{buy, sell} {
		o.Remaining -= qty
		if o.Remaining == 0 {
			o.Status = account.Filled
			o.FilledAt = now
		} else {
			o.Status = account.PartiallyFilled
		}
	}
	for _, o := range []*account.Order{buy, sell} {
		if o.Status == account.Filled {
			if err := e.closeFilled(s, o); err != nil {
				return nil, err
			}
		}
	}

	tradeID, err := e.fees.Record(s, buy.CompanyID, qty, price, notional, fee)
	if err != nil {
		return nil, err
	}
	at := e.addr.Trade(tradeID)
	trade := &account.Trade{
		ID:          tradeID,
		Buyer:       buy.Owner,
		Seller:      sell.Owner,
		CompanyID:   buy.CompanyID,
		Mint:        company.Mint,
		Amount:      qty,
		Price:       price,
		Notional:    notional,
		Fee:         fee,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		ExecutedAt:  now,
		Bump:        at.Bump,
	}
	if err := account.Init(s, at.Key, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// closeFilled retires the escrow of a fully filled order. Anything left
// in it means the fills drifted from the commitment.
func (e *Engine) closeFilled(s account.Store, o *account.Order) error {
	esc, err := e.escrow.Get(s, o.CompanyID, o.ID)
	if err != nil {
		return err
	}
	if esc.Amount != 0 {
		return errs.InvariantViolation("filled order %d/%d leaves %d in escrow", o.CompanyID, o.ID, esc.Amount)
	}
	_, _, err = e.escrow.CloseAndRefundRemainder(s, o)
	return err
}

// cancelRemainder refunds what is left in escrow and cancels o. Refunded
// tokens go back into the owner's holding with their cost basis.
func (e *Engine) cancelRemainder(s account.Store, company *account.Company, o *account.Order, now int64) (uint64, error) {
	refund, basis, err := e.escrow.CloseAndRefundRemainder(s, o)
	if err != nil {
		return 0, err
	}
	if o.Side == account.Sell && refund > 0 {
		if err := e.portfolio.Credit(s, o.Owner, o.CompanyID, company.Mint, refund, basis, now); err != nil {
			return 0, err
		}
	}
	o.Status = account.Cancelled
	return refund, nil
}

func (e *Engine) saveOrder(s account.Store, o *account.Order) error {
	return account.Save(s, e.addr.Order(o.CompanyID, o.ID).Key, o)
}

func (e *Engine) loadPlatform(s account.Store) (*account.Platform, error) {
	return account.LoadOr[*account.Platform](s, e.addr.Platform().Key, "platform")
}
