package orderbook

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/infra/memory"
)

// OrderBook holds one company's resting orders under price-time priority.
// It is single-writer and deterministic.
type OrderBook struct {
	CompanyID uint64

	Bids *RBTree
	Asks *RBTree

	orders map[uint64]*Order
	pool   *memory.Pool[Order]
}

func NewOrderBook(companyID uint64, pool *memory.Pool[Order]) *OrderBook {
	return &OrderBook{
		CompanyID: companyID,
		Bids:      NewRBTree(),
		Asks:      NewRBTree(),
		orders:    make(map[uint64]*Order),
		pool:      pool,
	}
}

// ---- mutation ----

// Rest queues an order at the back of its price level.
func (b *OrderBook) Rest(id uint64, owner solana.PublicKey, side account.Side, price, qty uint64) error {
	if _, ok := b.orders[id]; ok {
		return errors.Newf("orderbook: order %d already resting", id)
	}
	if qty == 0 {
		return errors.Newf("orderbook: order %d has nothing to rest", id)
	}

	o := b.pool.Get()
	*o = Order{ID: id, Owner: owner, Side: side, Price: price, Qty: qty}

	b.tree(side).GetOrCreate(price).Enqueue(o)
	b.orders[id] = o
	return nil
}

// Reduce takes qty off a resting order, dropping it once exhausted.
func (b *OrderBook) Reduce(id, qty uint64) error {
	o, ok := b.orders[id]
	if !ok {
		return errors.Newf("orderbook: order %d not resting", id)
	}
	if qty > o.Qty {
		return errors.Newf("orderbook: reduce %d exceeds remaining %d of order %d", qty, o.Qty, id)
	}
	if qty == o.Qty {
		b.Remove(id)
		return nil
	}
	o.Qty -= qty
	o.level.TotalQty -= qty
	return nil
}

// Remove drops a resting order. It reports whether the order was present.
func (b *OrderBook) Remove(id uint64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	lvl := o.level
	lvl.Remove(o)
	if lvl.Empty() {
		b.tree(o.Side).Delete(lvl.Price)
	}
	delete(b.orders, id)

	*o = Order{}
	b.pool.Put(o)
	return true
}

// ---- queries ----

// Get returns a copy of the resting order.
func (b *OrderBook) Get(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	cp := *o
	cp.level, cp.next, cp.prev = nil, nil, nil
	return cp, true
}

func (b *OrderBook) Len() int {
	return len(b.orders)
}

func (b *OrderBook) BestBid() (uint64, bool) {
	lvl := b.Bids.BestMax()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

func (b *OrderBook) BestAsk() (uint64, bool) {
	lvl := b.Asks.BestMin()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// ---- traversal helpers ----

func (b *OrderBook) BidsWalk(fn func(*PriceLevel) bool) {
	b.Bids.walkDesc(fn)
}

func (b *OrderBook) AsksWalk(fn func(*PriceLevel) bool) {
	b.Asks.walkAsc(fn)
}

// Counterparties visits the orders a taker on side would meet, best price
// first and oldest first within a price, until fn returns false. The book
// must not be mutated during the walk.
func (b *OrderBook) Counterparties(taker account.Side, fn func(*Order) bool) {
	visit := func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			if !fn(o) {
				return false
			}
		}
		return true
	}
	if taker == account.Buy {
		b.AsksWalk(visit)
	} else {
		b.BidsWalk(visit)
	}
}

func (b *OrderBook) tree(side account.Side) *RBTree {
	if side == account.Buy {
		return b.Bids
	}
	return b.Asks
}
