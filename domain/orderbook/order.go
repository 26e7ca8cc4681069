package orderbook

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
)

// Order is a resting order as the book sees it. The ledger record is the
// source of truth; this is the index used to find counterparties.
type Order struct {
	ID    uint64
	Owner solana.PublicKey
	Price uint64
	Qty   uint64 // remaining
	Side  account.Side

	level *PriceLevel
	next  *Order
	prev  *Order
}

// Read-only traversal helper
func (o *Order) Next() *Order {
	return o.next
}
