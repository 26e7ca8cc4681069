// Package view renders ledger records as plain maps shared by the gRPC
// and HTTP surfaces. Lists are []any so the maps convert to structpb.
package view

import (
	"tokex/domain/account"
	"tokex/domain/orderbook"
	"tokex/domain/registry"
)

type M = map[string]any

func Platform(p *account.Platform) M {
	return M{
		"authority":       p.Authority.String(),
		"fee_bps":         uint32(p.FeeBps),
		"paused":          p.Paused,
		"payment_mint":    p.PaymentMint.String(),
		"total_companies": p.TotalCompanies,
		"total_offerings": p.TotalOfferings,
		"total_trades":    p.TotalTrades,
		"total_volume":    p.TotalVolume,
		"total_fees":      p.TotalFees,
	}
}

func Company(c *account.Company) M {
	return M{
		"company_id":         c.ID,
		"authority":          c.Authority.String(),
		"name":               c.Name,
		"symbol":             c.Symbol,
		"description":        c.Description,
		"verified":           c.Verified,
		"mint":               c.Mint.String(),
		"total_supply":       c.TotalSupply,
		"circulating_supply": c.CirculatingSupply,
		"offered_supply":     c.OfferedSupply,
		"created_at":         c.CreatedAt,
	}
}

func Offering(o *account.Offering) M {
	return M{
		"offering_id":  o.ID,
		"company_id":   o.CompanyID,
		"mint":         o.Mint.String(),
		"total_supply": o.TotalSupply,
		"sold":         o.Sold,
		"remaining":    o.Remaining(),
		"price":        o.Price,
		"start":        o.Start,
		"end":          o.End,
		"raised":       o.Raised,
		"participants": o.Participants,
		"status":       o.Status.String(),
	}
}

func Participation(p *registry.Participation) M {
	return M{
		"offering": Offering(p.Offering),
		"tokens":   p.Tokens,
		"cost":     p.Cost,
	}
}

func Portfolio(p *account.Portfolio) M {
	return M{
		"owner":          p.Owner.String(),
		"holdings":       p.Holdings,
		"value":          p.Value,
		"holdings_count": p.HoldingsCount,
		"updated_at":     p.UpdatedAt,
		"market_value":   p.MarketValue,
		"unrealized":     p.Unrealized,
		"realized":       p.Realized,
		"revalued_at":    p.RevaluedAt,
	}
}

func Holding(h *account.Holding) M {
	return M{
		"owner":      h.Owner.String(),
		"company_id": h.CompanyID,
		"amount":     h.Amount,
		"invested":   h.Invested,
		"realized":   h.Realized,
		"updated_at": h.UpdatedAt,
		"mark":       h.Mark,
		"value":      h.Value,
	}
}

func Distribution(d *account.Distribution) M {
	to := make([]any, len(d.Recipients))
	for i, r := range d.Recipients {
		to[i] = r.String()
	}
	return M{
		"distribution_id": d.ID,
		"company_id":      d.CompanyID,
		"admin":           d.Admin.String(),
		"mint":            d.Mint.String(),
		"per_recipient":   d.PerRecipient,
		"total":           d.Total,
		"recipients":      to,
		"created_at":      d.CreatedAt,
	}
}

func TransferEscrow(e *account.TransferEscrow) M {
	m := M{
		"escrow_id":  e.ID,
		"reference":  e.Reference,
		"payer":      e.Payer.String(),
		"recipient":  e.Recipient.String(),
		"mint":       e.Mint.String(),
		"amount":     e.Amount,
		"status":     e.Status.String(),
		"created_at": e.CreatedAt,
		"settled_at": e.SettledAt,
	}
	if e.Shares {
		m["company_id"] = e.CompanyID
	}
	return m
}

func Order(o *account.Order) M {
	return M{
		"order_id":   o.ID,
		"company_id": o.CompanyID,
		"owner":      o.Owner.String(),
		"side":       o.Side.String(),
		"type":       o.Type.String(),
		"status":     o.Status.String(),
		"amount":     o.Amount,
		"remaining":  o.Remaining,
		"filled":     o.Filled(),
		"price":      o.Price,
		"created_at": o.CreatedAt,
		"filled_at":  o.FilledAt,
	}
}

func Trade(t *account.Trade) M {
	return M{
		"trade_id":      t.ID,
		"company_id":    t.CompanyID,
		"buyer":         t.Buyer.String(),
		"seller":        t.Seller.String(),
		"amount":        t.Amount,
		"price":         t.Price,
		"notional":      t.Notional,
		"fee":           t.Fee,
		"buy_order_id":  t.BuyOrderID,
		"sell_order_id": t.SellOrderID,
		"executed_at":   t.ExecutedAt,
	}
}

// OrderResult renders an order instruction's outcome.
func OrderResult(seq uint64, o *account.Order, trades []*account.Trade, refunded uint64) M {
	ts := make([]any, len(trades))
	for i, t := range trades {
		ts[i] = Trade(t)
	}
	return M{
		"seq":      seq,
		"order":    Order(o),
		"trades":   ts,
		"refunded": refunded,
	}
}

func Depth(d orderbook.Depth) M {
	levels := func(ls []orderbook.LevelView) []any {
		out := make([]any, len(ls))
		for i, l := range ls {
			out[i] = M{"price": l.Price, "qty": l.Qty, "orders": l.Orders}
		}
		return out
	}
	return M{
		"company_id": d.CompanyID,
		"bids":       levels(d.Bids),
		"asks":       levels(d.Asks),
	}
}
