package account

import "github.com/gagliardetto/solana-go"

// Record bodies are Borsh encoded in field order. The leading fields of
// Platform, Portfolio and Order are the externally observed wire layouts;
// anything after them is an extension and must only ever be appended.

// ---- enums ----

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderKind uint8

const (
	Limit OrderKind = iota
	Market
)

func (k OrderKind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

type OrderStatus uint8

const (
	Open OrderStatus = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (s OrderStatus) String() string {
	switch s {
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == Filled || s == Cancelled
}

type OfferingStatus uint8

const (
	OfferingPending OfferingStatus = iota
	OfferingActive
	OfferingCompleted
	OfferingCancelled
)

func (s OfferingStatus) String() string {
	switch s {
	case OfferingPending:
		return "pending"
	case OfferingActive:
		return "active"
	case OfferingCompleted:
		return "completed"
	case OfferingCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type EscrowStatus uint8

const (
	EscrowActive EscrowStatus = iota
	EscrowReleased
	EscrowCancelled
)

func (s EscrowStatus) String() string {
	switch s {
	case EscrowActive:
		return "active"
	case EscrowReleased:
		return "released"
	case EscrowCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ---- records ----

type Platform struct {
	Authority      solana.PublicKey
	TotalCompanies uint64
	TotalOfferings uint64
	TotalTrades    uint64
	FeeBps         uint16
	Paused         bool
	Bump           uint8

	PaymentMint solana.PublicKey
	TotalVolume uint64 // executed notional
	TotalFees   uint64

	TotalDistributions uint64
	TotalEscrows       uint64
}

func (*Platform) Kind() Kind { return KindPlatform }

type Company struct {
	ID                uint64
	Authority         solana.PublicKey
	Name              string
	Symbol            string
	Description       string
	Verified          bool
	Mint              solana.PublicKey
	TotalSupply       uint64
	CirculatingSupply uint64
	OfferedSupply     uint64
	CreatedAt         int64
	Bump              uint8
}

func (*Company) Kind() Kind { return KindCompany }

type Mint struct {
	Authority solana.PublicKey
	Supply    uint64
	Decimals  uint8
	Bump      uint8
}

func (*Mint) Kind() Kind { return KindMint }

type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	Bump   uint8
}

func (*TokenAccount) Kind() Kind { return KindTokenAccount }

type Offering struct {
	ID           uint64
	CompanyID    uint64
	Authority    solana.PublicKey
	Mint         solana.PublicKey
	TotalSupply  uint64
	Sold         uint64
	Price        uint64
	Start        int64
	End          int64
	Raised       uint64
	Participants uint64
	Status       OfferingStatus
	CreatedAt    int64
	Bump         uint8
}

func (*Offering) Kind() Kind { return KindOffering }

func (o *Offering) Remaining() uint64 { return o.TotalSupply - o.Sold }

type Portfolio struct {
	Owner    solana.PublicKey
	Holdings uint64
	Value    uint64 // cumulative invested
	Bump     uint8

	HoldingsCount uint64
	UpdatedAt     int64

	// Set by revaluation only.
	MarketValue uint64
	Unrealized  int64
	Realized    int64
	RevaluedAt  int64
}

func (*Portfolio) Kind() Kind { return KindPortfolio }

type Holding struct {
	Owner     solana.PublicKey
	CompanyID uint64
	Mint      solana.PublicKey
	Amount    uint64
	Invested  uint64
	Realized  int64
	UpdatedAt int64
	Bump      uint8

	Mark  uint64 // price of the last revaluation; 0 means valued at cost
	Value uint64
}

func (*Holding) Kind() Kind { return KindHolding }

type Order struct {
	ID        uint64
	Owner     solana.PublicKey
	CompanyID uint64
	Amount    uint64 // original quantity
	Price     uint64
	Side      Side
	Status    OrderStatus
	CreatedAt int64

	Remaining uint64
	Type      OrderKind
	FilledAt  int64
	Bump      uint8
}

func (*Order) Kind() Kind { return KindOrder }

func (o *Order) Filled() uint64 { return o.Amount - o.Remaining }

type Escrow struct {
	Order     solana.PublicKey
	CompanyID uint64
	OrderID   uint64
	Owner     solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
	Basis     uint64 // cost basis carried by escrowed tokens
	Closed    bool
	Bump      uint8
}

func (*Escrow) Kind() Kind { return KindEscrow }

type Orderbook struct {
	CompanyID   uint64
	NextOrderID uint64
	TotalOrders uint64
	BuyOrders   uint64
	SellOrders  uint64
	LastPrice   uint64
	Volume      uint64
	Notional    uint64
	Bump        uint8
}

func (*Orderbook) Kind() Kind { return KindOrderbook }

type Trade struct {
	ID          uint64
	Buyer       solana.PublicKey
	Seller      solana.PublicKey
	CompanyID   uint64
	Mint        solana.PublicKey
	Amount      uint64
	Price       uint64
	Notional    uint64
	Fee         uint64
	BuyOrderID  uint64
	SellOrderID uint64
	ExecutedAt  int64
	Bump        uint8
}

func (*Trade) Kind() Kind { return KindTrade }

// Distribution records one admin hand-out of company tokens.
type Distribution struct {
	ID           uint64
	CompanyID    uint64
	Admin        solana.PublicKey
	Mint         solana.PublicKey
	PerRecipient uint64
	Total        uint64
	Recipients   []solana.PublicKey
	CreatedAt    int64
	Bump         uint8
}

func (*Distribution) Kind() Kind { return KindDistribution }

// TransferEscrow holds Amount of Mint from Payer until it is released to
// Recipient or cancelled back. Shares escrows carry cost basis like order
// escrows do.
type TransferEscrow struct {
	ID        uint64
	Reference uint64 // caller's trade or invoice id
	Payer     solana.PublicKey
	Recipient solana.PublicKey
	Mint      solana.PublicKey
	Shares    bool
	CompanyID uint64 // meaningful when Shares
	Amount    uint64
	Basis     uint64
	Status    EscrowStatus
	CreatedAt int64
	SettledAt int64
	Bump      uint8
}

func (*TransferEscrow) Kind() Kind { return KindTransferEscrow }
