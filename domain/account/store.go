package account

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/errs"
)

// Store is the view of the ledger one instruction executes against.
// Writes become visible to later reads in the same instruction and are
// committed all-or-nothing by the implementation.
type Store interface {
	// Get returns errs.ErrNotFound when addr holds no record.
	Get(addr solana.PublicKey) ([]byte, error)
	Has(addr solana.PublicKey) (bool, error)
	Put(addr solana.PublicKey, data []byte) error
	// Create fails with errs.ErrAlreadyExists when addr is taken.
	Create(addr solana.PublicKey, data []byte) error
}

// Load reads and decodes the record at addr, checking its kind.
func Load[R Record](s Store, addr solana.PublicKey) (R, error) {
	var zero R
	raw, err := s.Get(addr)
	if err != nil {
		return zero, err
	}
	rec, err := Decode(raw)
	if err != nil {
		return zero, err
	}
	r, ok := rec.(R)
	if !ok {
		return zero, errors.Newf("account %s holds a %s record, want %s", addr, rec.Kind(), zero.Kind())
	}
	return r, nil
}

// LoadOr is Load but maps a missing record to a NotFound error naming what.
func LoadOr[R Record](s Store, addr solana.PublicKey, what string) (R, error) {
	r, err := Load[R](s, addr)
	if err != nil && errors.Is(err, errs.ErrNotFound) {
		return r, errs.NotFound("%s %s not found", what, addr)
	}
	return r, err
}

func Save(s Store, addr solana.PublicKey, r Record) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}
	return s.Put(addr, b)
}

// Init creates r at addr and never overwrites.
func Init(s Store, addr solana.PublicKey, r Record) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}
	return s.Create(addr, b)
}
