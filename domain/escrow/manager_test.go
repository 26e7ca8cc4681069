package escrow

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/domain/account"
	"tokex/domain/errs"
	"tokex/domain/token"
	"tokex/infra/store"
)

type fixture struct {
	st     *store.Store
	tokens token.Ledger
	m      Manager
	mint   solana.PublicKey
	owner  solana.PublicKey
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := account.NewDeriver(solana.MustPublicKeyFromBase58(account.DefaultProgramID))
	f := &fixture{
		st:     st,
		tokens: token.NewLedger(d),
		mint:   d.PaymentMint().Key,
		owner:  solana.NewWallet().PublicKey(),
	}
	f.m = NewManager(d, f.tokens)

	require.NoError(t, st.Update(context.Background(), func(tx *store.Tx) error {
		if err := f.tokens.CreateMint(tx, d.PaymentMint(), f.owner); err != nil {
			return err
		}
		return f.tokens.MintTo(tx, f.mint, f.owner, 10_000)
	}))
	return f
}

func (f *fixture) balance(t *testing.T, who solana.PublicKey) uint64 {
	var bal uint64
	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		var err error
		bal, err = f.tokens.Balance(tx, f.mint, who)
		return err
	}))
	return bal
}

func buyOrder(owner solana.PublicKey, qty, price uint64) *account.Order {
	return &account.Order{ID: 1, CompanyID: 0, Owner: owner, Side: account.Buy, Amount: qty, Remaining: qty, Price: price}
}

func TestLockReleaseRefund(t *testing.T) {
	f := setup(t)
	seller := solana.NewWallet().PublicKey()
	o := buyOrder(f.owner, 30, 125)

	require.NoError(t, f.st.Update(context.Background(), func(tx *store.Tx) error {
		_, err := f.m.Lock(tx, o, f.mint, 3750, 0)
		return err
	}))
	assert.Equal(t, uint64(6250), f.balance(t, f.owner))

	require.NoError(t, f.st.Update(context.Background(), func(tx *store.Tx) error {
		if _, err := f.m.ReleasePartial(tx, o, 1250, seller); err != nil {
			return err
		}
		o.Remaining = 20
		return f.m.Verify(tx, o)
	}))
	assert.Equal(t, uint64(1250), f.balance(t, seller))

	require.NoError(t, f.st.Update(context.Background(), func(tx *store.Tx) error {
		refund, _, err := f.m.CloseAndRefundRemainder(tx, o)
		assert.Equal(t, uint64(2500), refund)
		o.Status = account.Cancelled
		if err != nil {
			return err
		}
		return f.m.Verify(tx, o)
	}))
	assert.Equal(t, uint64(8750), f.balance(t, f.owner))
}

func TestReleaseUnderflow(t *testing.T) {
	f := setup(t)
	o := buyOrder(f.owner, 1, 10)

	err := f.st.Update(context.Background(), func(tx *store.Tx) error {
		if _, err := f.m.Lock(tx, o, f.mint, 10, 0); err != nil {
			return err
		}
		_, err := f.m.ReleasePartial(tx, o, 11, solana.NewWallet().PublicKey())
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrEscrowUnderflow))
}

func TestLockInsufficientBalance(t *testing.T) {
	f := setup(t)
	o := buyOrder(f.owner, 1000, 1000)

	err := f.st.Update(context.Background(), func(tx *store.Tx) error {
		_, err := f.m.Lock(tx, o, f.mint, 1_000_000, 0)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrInsufficientBalance))
}

func TestVerifyDetectsDrift(t *testing.T) {
	f := setup(t)
	o := buyOrder(f.owner, 10, 10)

	err := f.st.Update(context.Background(), func(tx *store.Tx) error {
		if _, err := f.m.Lock(tx, o, f.mint, 99, 0); err != nil {
			return err
		}
		return f.m.Verify(tx, o)
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvariantViolation(err))
}

func TestSellBasisTravelsWithTokens(t *testing.T) {
	f := setup(t)
	o := &account.Order{ID: 2, Owner: f.owner, Side: account.Sell, Amount: 10, Remaining: 10, Price: 5}

	require.NoError(t, f.st.Update(context.Background(), func(tx *store.Tx) error {
		if _, err := f.m.Lock(tx, o, f.mint, 10, 1000); err != nil {
			return err
		}
		basis, err := f.m.ReleasePartial(tx, o, 4, solana.NewWallet().PublicKey())
		require.NoError(t, err)
		assert.Equal(t, uint64(400), basis)

		_, rest, err := f.m.CloseAndRefundRemainder(tx, o)
		require.NoError(t, err)
		assert.Equal(t, uint64(600), rest)
		return nil
	}))
}
