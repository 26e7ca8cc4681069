package service

import (
	"tokex/domain/account"
	"tokex/infra/outbox"
)

type platformEvent struct {
	Authority string `json:"authority"`
	FeeBps    uint16 `json:"fee_bps"`
	Paused    bool   `json:"paused"`
}

func newPlatformEvent(p *account.Platform) platformEvent {
	return platformEvent{Authority: p.Authority.String(), FeeBps: p.FeeBps, Paused: p.Paused}
}

type companyEvent struct {
	CompanyID   uint64 `json:"company_id"`
	Authority   string `json:"authority"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Mint        string `json:"mint"`
	TotalSupply uint64 `json:"total_supply"`
	Verified    bool   `json:"verified"`
}

func newCompanyEvent(c *account.Company) companyEvent {
	return companyEvent{
		CompanyID:   c.ID,
		Authority:   c.Authority.String(),
		Name:        c.Name,
		Symbol:      c.Symbol,
		Mint:        c.Mint.String(),
		TotalSupply: c.TotalSupply,
		Verified:    c.Verified,
	}
}

type offeringEvent struct {
	OfferingID  uint64 `json:"offering_id"`
	CompanyID   uint64 `json:"company_id"`
	TotalSupply uint64 `json:"total_supply"`
	Price       uint64 `json:"price"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Status      string `json:"status"`
}

func newOfferingEvent(o *account.Offering) offeringEvent {
	return offeringEvent{
		OfferingID:  o.ID,
		CompanyID:   o.CompanyID,
		TotalSupply: o.TotalSupply,
		Price:       o.Price,
		Start:       o.Start,
		End:         o.End,
		Status:      o.Status.String(),
	}
}

type participationEvent struct {
	OfferingID uint64 `json:"offering_id"`
	Investor   string `json:"investor"`
	Tokens     uint64 `json:"tokens"`
	Cost       uint64 `json:"cost"`
	Sold       uint64 `json:"sold"`
	Status     string `json:"status"`
}

type accountEvent struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount,omitempty"`
}

type orderEvent struct {
	OrderID   uint64 `json:"order_id"`
	CompanyID uint64 `json:"company_id"`
	Owner     string `json:"owner"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    uint64 `json:"amount"`
	Remaining uint64 `json:"remaining"`
	Price     uint64 `json:"price"`
	Refunded  uint64 `json:"refunded,omitempty"`
}

func newOrderEvent(o *account.Order, refunded uint64) orderEvent {
	return orderEvent{
		OrderID:   o.ID,
		CompanyID: o.CompanyID,
		Owner:     o.Owner.String(),
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Status:    o.Status.String(),
		Amount:    o.Amount,
		Remaining: o.Remaining,
		Price:     o.Price,
		Refunded:  refunded,
	}
}

func newTradeEvent(t *account.Trade) outbox.Trade {
	return outbox.Trade{
		TradeID:     t.ID,
		CompanyID:   t.CompanyID,
		Buyer:       t.Buyer.String(),
		Seller:      t.Seller.String(),
		Mint:        t.Mint.String(),
		Amount:      t.Amount,
		Price:       t.Price,
		Notional:    t.Notional,
		Fee:         t.Fee,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		ExecutedAt:  t.ExecutedAt,
	}
}

type adminCompanyEvent struct {
	companyEvent
	InitialPrice uint64 `json:"initial_price"`
}

type distributionEvent struct {
	DistributionID uint64 `json:"distribution_id"`
	CompanyID      uint64 `json:"company_id"`
	Admin          string `json:"admin"`
	Recipients     int    `json:"recipients"`
	PerRecipient   uint64 `json:"per_recipient"`
	Total          uint64 `json:"total"`
}

type transferEvent struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

type escrowEvent struct {
	EscrowID  uint64 `json:"escrow_id"`
	Reference uint64 `json:"reference"`
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	Mint      string `json:"mint"`
	Amount    uint64 `json:"amount"`
	Status    string `json:"status"`
}

func newEscrowEvent(e *account.TransferEscrow) escrowEvent {
	return escrowEvent{
		EscrowID:  e.ID,
		Reference: e.Reference,
		Payer:     e.Payer.String(),
		Recipient: e.Recipient.String(),
		Mint:      e.Mint.String(),
		Amount:    e.Amount,
		Status:    e.Status.String(),
	}
}

type portfolioEvent struct {
	Owner       string `json:"owner"`
	Holdings    uint64 `json:"holdings"`
	MarketValue uint64 `json:"market_value"`
	Invested    uint64 `json:"invested"`
	Unrealized  int64  `json:"unrealized"`
	Realized    int64  `json:"realized"`
}
