package matching

import (
	"github.com/cockroachdb/errors"

	"tokex/domain/account"
	"tokex/domain/orderbook"
)

type reduction struct {
	id  uint64
	qty uint64
}

// delta is the book change an instruction needs once it has committed.
type delta struct {
	reduce []reduction
	remove []uint64
	rest   bool
}

// Result is the outcome of one order instruction.
type Result struct {
	Order    *account.Order   // the placed, cancelled or triggering order
	Makers   []*account.Order // resting orders touched, final state
	Trades   []*account.Trade
	Refunded uint64 // escrow returned to Order's owner

	delta delta
}

// Filled is the quantity executed across all trades.
func (r *Result) Filled() uint64 {
	var n uint64
	for _, t := range r.Trades {
		n += t.Amount
	}
	return n
}

// Apply brings the in-memory book in line with the committed ledger.
func (r *Result) Apply(book *orderbook.OrderBook) error {
	for _, red := range r.delta.reduce {
		if err := book.Reduce(red.id, red.qty); err != nil {
			return errors.Wrapf(err, "apply fill to order %d", red.id)
		}
	}
	for _, id := range r.delta.remove {
		book.Remove(id)
	}
	if r.delta.rest {
		o := r.Order
		if err := book.Rest(o.ID, o.Owner, o.Side, o.Price, o.Remaining); err != nil {
			return err
		}
	}
	return nil
}
