package orderbook

import (
	"sort"

	"tokex/infra/memory"
)

// Books is the set of per-company books sharing one order pool.
type Books struct {
	books map[uint64]*OrderBook
	pool  *memory.Pool[Order]
}

func NewBooks() *Books {
	return &Books{
		books: make(map[uint64]*OrderBook),
		pool:  newEntryPool(),
	}
}

// Get returns the company's book, creating an empty one on first use.
func (bs *Books) Get(companyID uint64) *OrderBook {
	b, ok := bs.books[companyID]
	if !ok {
		b = NewOrderBook(companyID, bs.pool)
		bs.books[companyID] = b
	}
	return b
}

// Peek returns the company's book for reading. A company without one gets
// an empty book that is not registered.
func (bs *Books) Peek(companyID uint64) *OrderBook {
	if b, ok := bs.books[companyID]; ok {
		return b
	}
	return NewOrderBook(companyID, bs.pool)
}

func (bs *Books) Lookup(companyID uint64) (*OrderBook, bool) {
	b, ok := bs.books[companyID]
	return b, ok
}

// Companies lists company ids with a book, ascending.
func (bs *Books) Companies() []uint64 {
	ids := make([]uint64, 0, len(bs.books))
	for id := range bs.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset drops every book along with the entries they held.
func (bs *Books) Reset() {
	bs.books = make(map[uint64]*OrderBook)
	bs.pool = newEntryPool()
}

// Live counts order entries currently resting across all books.
func (bs *Books) Live() int64 {
	return bs.pool.Live()
}

func newEntryPool() *memory.Pool[Order] {
	return memory.NewPool(func() *Order { return &Order{} })
}
