package outbox

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const EventVersion = 1

// Event types.
const (
	PlatformInitialized  = "PlatformInitialized"
	PlatformFeeUpdated   = "PlatformFeeUpdated"
	PlatformPaused       = "PlatformPaused"
	PlatformUnpaused     = "PlatformUnpaused"
	CompanyRegistered    = "CompanyRegistered"
	CompanyVerified      = "CompanyVerified"
	OfferingCreated      = "OfferingCreated"
	OfferingParticipated = "OfferingParticipated"
	PortfolioCreated     = "PortfolioCreated"
	Deposited            = "Deposited"
	OrderCreated         = "OrderCreated"
	OrderCancelled       = "OrderCancelled"
	TradeExecuted        = "TradeExecuted"

	CompanyCreatedByAdmin = "CompanyCreatedByAdmin"
	TokensDistributed     = "TokensDistributed"
	TokensTransferred     = "TokensTransferred"
	EscrowCreated         = "EscrowCreated"
	EscrowReleased        = "EscrowReleased"
	EscrowCancelled       = "EscrowCancelled"
	PortfolioUpdated      = "PortfolioUpdated"
)

// Event is the published envelope.
type Event struct {
	ID   string          `json:"id"`
	V    int             `json:"v"`
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Time int64           `json:"time"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(typ string, seq uint64, at time.Time, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, errors.Wrapf(err, "encode %s event", typ)
	}
	return Event{
		ID:   uuid.NewString(),
		V:    EventVersion,
		Type: typ,
		Seq:  seq,
		Time: at.UnixNano(),
		Data: raw,
	}, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	return e, nil
}

// Trade is the TradeExecuted payload.
type Trade struct {
	TradeID     uint64 `json:"trade_id"`
	CompanyID   uint64 `json:"company_id"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Mint        string `json:"mint"`
	Amount      uint64 `json:"amount"`
	Price       uint64 `json:"price"`
	Notional    uint64 `json:"notional"`
	Fee         uint64 `json:"fee"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	ExecutedAt  int64  `json:"executed_at"`
}
