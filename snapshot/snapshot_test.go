package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/domain/account"
	"tokex/domain/errs"
	"tokex/domain/orderbook"
)

func fill(t *testing.T) *orderbook.Books {
	t.Helper()
	books := orderbook.NewBooks()
	owner := solana.NewWallet().PublicKey()

	a := books.Get(1)
	require.NoError(t, a.Rest(1, owner, account.Buy, 99, 10))
	require.NoError(t, a.Rest(2, owner, account.Buy, 98, 5))
	require.NoError(t, a.Rest(3, owner, account.Sell, 101, 7))
	require.NoError(t, a.Rest(4, owner, account.Sell, 101, 3))

	b := books.Get(0)
	require.NoError(t, b.Rest(1, owner, account.Sell, 50, 1))
	return books
}

func TestWriteAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	books := fill(t)

	_, err := w.Write(Take(5, books, 1))
	require.NoError(t, err)
	path, err := w.Write(Take(9, books, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snapshot-00000000000000000009.snap"), path)

	s, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), s.Seq)
	require.Len(t, s.Books, 2)

	assert.Equal(t, uint64(0), s.Books[0].CompanyID)
	acme := s.Books[1]
	assert.Equal(t, []orderbook.LevelView{{Price: 99, Qty: 10, Orders: 1}, {Price: 98, Qty: 5, Orders: 1}}, acme.Bids)
	assert.Equal(t, []orderbook.LevelView{{Price: 101, Qty: 10, Orders: 2}}, acme.Asks)

	first, err := Load(filepath.Join(dir, "snapshot-00000000000000000005.snap"))
	require.NoError(t, err)
	assert.Len(t, first.Books[1].Bids, 1)
}

func TestKeepPrunesOldest(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Keep: 2}
	books := fill(t)

	for seq := uint64(1); seq <= 4; seq++ {
		_, err := w.Write(Take(seq, books, 0))
		require.NoError(t, err)
	}

	files, err := list(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "snapshot-00000000000000000003.snap", filepath.Base(files[0]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestLatestEmpty(t *testing.T) {
	_, err := Latest(t.TempDir())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = Latest(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot-00000000000000000001.snap")
	require.NoError(t, os.WriteFile(path, []byte{0xc1}, 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
