package matching

import (
	"tokex/domain/account"
	"tokex/domain/errs"
)

type ExecuteRequest struct {
	CompanyID   uint64
	BuyOrderID  uint64
	SellOrderID uint64
	Quantity    uint64 // 0 fills the smaller remainder
	Now         int64
}

// Execute matches one named buy against one named sell. It is an explicit
// re-trigger: if either order is already terminal or the prices no longer
// cross, it succeeds with no trades. The earlier order is the maker and
// sets the price. A nonzero Quantity fills exactly that much and must fit
// both remainders.
func (e *Engine) Execute(s account.Store, req ExecuteRequest) (*Result, error) {
	platform, err := e.loadPlatform(s)
	if err != nil {
		return nil, err
	}
	if platform.Paused {
		return nil, errs.Paused()
	}

	buyAt := e.addr.Order(req.CompanyID, req.BuyOrderID)
	sellAt := e.addr.Order(req.CompanyID, req.SellOrderID)
	buy, err := account.LoadOr[*account.Order](s, buyAt.Key, "buy order")
	if err != nil {
		return nil, err
	}
	sell, err := account.LoadOr[*account.Order](s, sellAt.Key, "sell order")
	if err != nil {
		return nil, err
	}
	if buy.Side != account.Buy || sell.Side != account.Sell {
		return nil, errs.Validation("orders %d and %d are not a buy and a sell", req.BuyOrderID, req.SellOrderID)
	}
	if buy.Owner == sell.Owner {
		return nil, errs.SelfTrade("orders %d and %d share owner %s", buy.ID, sell.ID, buy.Owner)
	}

	res := &Result{Order: buy}
	if buy.Status.Terminal() || sell.Status.Terminal() || buy.Price < sell.Price {
		return res, nil
	}

	company, err := account.LoadOr[*account.Company](s, e.addr.Company(req.CompanyID).Key, "company")
	if err != nil {
		return nil, err
	}

	maker, taker := buy, sell
	if sell.ID < buy.ID {
		maker, taker = sell, buy
	}
	qty := min(buy.Remaining, sell.Remaining)
	if req.Quantity > qty {
		return nil, errs.Validation("quantity %d exceeds the %d both orders have left", req.Quantity, qty)
	}
	if req.Quantity > 0 {
		qty = req.Quantity
	}
	trade, err := e.settle(s, company, buy, sell, qty, maker.Price, req.Now)
	if err != nil {
		return nil, err
	}

	for _, o := range []*account.Order{buy, sell} {
		if err := e.saveOrder(s, o); err != nil {
			return nil, err
		}
		if err := e.escrow.Verify(s, o); err != nil {
			return nil, err
		}
	}

	res.Trades = append(res.Trades, trade)
	res.Makers = append(res.Makers, maker)
	res.Order = taker
	res.delta.reduce = append(res.delta.reduce,
		reduction{id: buy.ID, qty: qty},
		reduction{id: sell.ID, qty: qty},
	)
	return res, nil
}
