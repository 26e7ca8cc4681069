package store

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/gagliardetto/solana-go"
)

const accountPrefix = "acct/"

// Store is the durable account ledger. Update runs one instruction at a
// time and commits its writes as a single synced pebble batch.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", dir)
	}
	return &Store{db: db}, nil
}

// OpenInMemory backs the store with an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pebble handle for colocated keyspaces.
func (s *Store) DB() *pebble.DB {
	return s.db
}

// Update executes fn against a fresh transaction and commits it if fn
// returns nil. Concurrent callers are serialized.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(s.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit(s.db)
}

// View runs fn against a consistent snapshot. Writes are rejected.
func (s *Store) View(fn func(tx *Tx) error) error {
	snap := s.db.NewSnapshot()
	defer snap.Close()
	return fn(newTx(snap, true))
}

// ScanAccounts visits every account record in key order.
func (s *Store) ScanAccounts(fn func(addr solana.PublicKey, data []byte) error) error {
	return s.Scan([]byte(accountPrefix), func(key, value []byte) error {
		addr, err := solana.PublicKeyFromBase58(string(key[len(accountPrefix):]))
		if err != nil {
			return errors.Wrapf(err, "bad account key %q", key)
		}
		return fn(addr, value)
	})
}

// Scan visits every key under prefix. Slices are only valid during fn.
func (s *Store) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Set and Delete write outside any transaction.
func (s *Store) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func accountKey(addr solana.PublicKey) string {
	return accountPrefix + addr.String()
}

func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
