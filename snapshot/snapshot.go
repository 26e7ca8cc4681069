package snapshot

import (
	"time"

	"tokex/domain/orderbook"
)

const Version = 1

type Snapshot struct {
	Version int               `msgpack:"v"`
	Seq     uint64            `msgpack:"seq"`
	Levels  int               `msgpack:"levels"` // per side; <= 0 means all
	Created time.Time         `msgpack:"created"`
	Books   []orderbook.Depth `msgpack:"books"`
}

// Take captures up to levels price levels per side of every book.
func Take(seq uint64, books *orderbook.Books, levels int) Snapshot {
	s := Snapshot{
		Version: Version,
		Seq:     seq,
		Levels:  levels,
		Created: time.Now().UTC(),
	}
	for _, id := range books.Companies() {
		b, _ := books.Lookup(id)
		s.Books = append(s.Books, b.Depth(levels))
	}
	return s
}
