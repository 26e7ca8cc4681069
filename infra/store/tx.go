package store

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/errs"
)

var errReadOnly = errors.New("store: write in read-only transaction")

type write struct {
	value  []byte
	delete bool
}

// Tx buffers writes over a pebble reader. Reads see the buffered writes.
type Tx struct {
	r        pebble.Reader
	readOnly bool
	writes   map[string]write
	order    []string
}

func newTx(r pebble.Reader, readOnly bool) *Tx {
	return &Tx{
		r:        r,
		readOnly: readOnly,
		writes:   make(map[string]write),
	}
}

// ---- account.Store ----

func (tx *Tx) Get(addr solana.PublicKey) ([]byte, error) {
	v, ok, err := tx.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("account %s not found", addr)
	}
	return v, nil
}

func (tx *Tx) Has(addr solana.PublicKey) (bool, error) {
	_, ok, err := tx.get(accountKey(addr))
	return ok, err
}

func (tx *Tx) Put(addr solana.PublicKey, data []byte) error {
	return tx.SetRaw([]byte(accountKey(addr)), data)
}

func (tx *Tx) Create(addr solana.PublicKey, data []byte) error {
	ok, err := tx.Has(addr)
	if err != nil {
		return err
	}
	if ok {
		return errs.AlreadyExists("account %s already exists", addr)
	}
	return tx.Put(addr, data)
}

// ---- raw keyspace ----

// GetRaw reads an arbitrary key, returning errs.ErrNotFound when absent.
func (tx *Tx) GetRaw(key []byte) ([]byte, error) {
	v, ok, err := tx.get(string(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("key %q not found", key)
	}
	return v, nil
}

// SetRaw stages a write to an arbitrary key in the same batch.
func (tx *Tx) SetRaw(key, value []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = write{value: append([]byte(nil), value...)}
	return nil
}

func (tx *Tx) DeleteRaw(key []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = write{delete: true}
	return nil
}

// Pending reports the number of staged writes.
func (tx *Tx) Pending() int {
	return len(tx.order)
}

func (tx *Tx) get(key string) ([]byte, bool, error) {
	if w, ok := tx.writes[key]; ok {
		if w.delete {
			return nil, false, nil
		}
		return w.value, true, nil
	}

	v, closer, err := tx.r.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

func (tx *Tx) commit(db *pebble.DB) error {
	if len(tx.order) == 0 {
		return nil
	}

	b := db.NewBatch()
	defer b.Close()

	for _, k := range tx.order {
		w := tx.writes[k]
		var err error
		if w.delete {
			err = b.Delete([]byte(k), nil)
		} else {
			err = b.Set([]byte(k), w.value, nil)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}
