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
	"tokex/domain/portfolio"
	"tokex/domain/token"
	"tokex/infra/store"
)

type transferFixture struct {
	st        *store.Store
	d         account.Deriver
	tokens    token.Ledger
	portfolio portfolio.Ledger
	tr        Transfers
	payer     solana.PublicKey
	payee     solana.PublicKey
	shares    solana.PublicKey
}

// setupTransfers seeds a platform and one company. The payer holds 10_000
// payment units and 100 shares bought for 1_000.
func setupTransfers(t *testing.T) *transferFixture {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := account.NewDeriver(solana.MustPublicKeyFromBase58(account.DefaultProgramID))
	f := &transferFixture{
		st:        st,
		d:         d,
		tokens:    token.NewLedger(d),
		portfolio: portfolio.NewLedger(d),
		payer:     solana.NewWallet().PublicKey(),
		payee:     solana.NewWallet().PublicKey(),
		shares:    d.CompanyMint(0).Key,
	}
	f.tr = NewTransfers(d, f.tokens, f.portfolio)

	f.update(t, func(tx *store.Tx) error {
		platform := d.Platform()
		if err := account.Init(tx, platform.Key, &account.Platform{PaymentMint: d.PaymentMint().Key, Bump: platform.Bump}); err != nil {
			return err
		}
		if err := account.Init(tx, d.Company(0).Key, &account.Company{ID: 0, Mint: f.shares, TotalSupply: 100}); err != nil {
			return err
		}
		for _, mint := range []account.Address{d.PaymentMint(), d.CompanyMint(0)} {
			if err := f.tokens.CreateMint(tx, mint, platform.Key); err != nil {
				return err
			}
		}
		for _, owner := range []solana.PublicKey{f.payer, f.payee} {
			if _, err := f.portfolio.Create(tx, owner, 1); err != nil {
				return err
			}
		}
		if err := f.tokens.MintTo(tx, d.PaymentMint().Key, f.payer, 10_000); err != nil {
			return err
		}
		if err := f.tokens.MintTo(tx, f.shares, f.payer, 100); err != nil {
			return err
		}
		return f.portfolio.Credit(tx, f.payer, 0, f.shares, 100, 1_000, 1)
	})
	return f
}

func (f *transferFixture) update(t *testing.T, fn func(tx *store.Tx) error) {
	t.Helper()
	require.NoError(t, f.st.Update(context.Background(), fn))
}

func (f *transferFixture) try(fn func(tx *store.Tx) (*account.TransferEscrow, error)) (*account.TransferEscrow, error) {
	var e *account.TransferEscrow
	err := f.st.Update(context.Background(), func(tx *store.Tx) error {
		var err error
		e, err = fn(tx)
		return err
	})
	return e, err
}

func (f *transferFixture) balance(t *testing.T, mint, who solana.PublicKey) uint64 {
	t.Helper()
	var bal uint64
	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		var err error
		bal, err = f.tokens.Balance(tx, mint, who)
		return err
	}))
	return bal
}

func (f *transferFixture) holding(t *testing.T, who solana.PublicKey) *account.Holding {
	t.Helper()
	var h *account.Holding
	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		var err error
		h, err = f.portfolio.Holding(tx, who, 0)
		return err
	}))
	return h
}

func TestTransferReleasePaysRecipient(t *testing.T) {
	f := setupTransfers(t)
	cash := f.d.PaymentMint().Key

	e, err := f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Create(tx, TransferRequest{Payer: f.payer, Recipient: f.payee, Amount: 2_500, Reference: 77, Now: 5})
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), e.ID)
	assert.Equal(t, account.EscrowActive, e.Status)
	assert.Equal(t, uint64(7_500), f.balance(t, cash, f.payer))

	_, err = f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Release(tx, e.ID, solana.NewWallet().PublicKey(), 6)
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized), "got %v", err)

	// The recipient can release too.
	e, err = f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Release(tx, e.ID, f.payee, 7)
	})
	require.NoError(t, err)
	assert.Equal(t, account.EscrowReleased, e.Status)
	assert.Equal(t, int64(7), e.SettledAt)
	assert.Equal(t, uint64(2_500), f.balance(t, cash, f.payee))

	for _, op := range []func(tx *store.Tx) (*account.TransferEscrow, error){
		func(tx *store.Tx) (*account.TransferEscrow, error) { return f.tr.Release(tx, e.ID, f.payer, 8) },
		func(tx *store.Tx) (*account.TransferEscrow, error) { return f.tr.Cancel(tx, e.ID, f.payer, 8) },
	} {
		_, err = f.try(op)
		assert.True(t, errors.Is(err, errs.ErrAlreadyTerminal), "got %v", err)
	}
	assert.Equal(t, uint64(7_500), f.balance(t, cash, f.payer))
}

func TestTransferCancelRestoresShares(t *testing.T) {
	f := setupTransfers(t)

	e, err := f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Create(tx, TransferRequest{Payer: f.payer, Recipient: f.payee, Shares: true, CompanyID: 0, Amount: 40, Now: 5})
	})
	require.NoError(t, err)
	assert.Equal(t, f.shares, e.Mint)
	assert.Equal(t, uint64(400), e.Basis)
	assert.Equal(t, uint64(60), f.holding(t, f.payer).Amount)
	assert.Equal(t, uint64(60), f.balance(t, f.shares, f.payer))

	_, err = f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Cancel(tx, e.ID, f.payee, 6)
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized), "got %v", err)

	e, err = f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Cancel(tx, e.ID, f.payer, 6)
	})
	require.NoError(t, err)
	assert.Equal(t, account.EscrowCancelled, e.Status)

	h := f.holding(t, f.payer)
	assert.Equal(t, uint64(100), h.Amount)
	assert.Equal(t, uint64(1_000), h.Invested)
	assert.Equal(t, uint64(100), f.balance(t, f.shares, f.payer))
	assert.Zero(t, f.holding(t, f.payee).Amount)
}

func TestTransferReleaseMovesBasis(t *testing.T) {
	f := setupTransfers(t)

	e, err := f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Create(tx, TransferRequest{Payer: f.payer, Recipient: f.payee, Shares: true, Amount: 25, Now: 5})
	})
	require.NoError(t, err)
	_, err = f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Release(tx, e.ID, f.payer, 6)
	})
	require.NoError(t, err)

	h := f.holding(t, f.payee)
	assert.Equal(t, uint64(25), h.Amount)
	assert.Equal(t, uint64(250), h.Invested)
	assert.Equal(t, uint64(25), f.balance(t, f.shares, f.payee))
}

func TestTransferCreateRejections(t *testing.T) {
	f := setupTransfers(t)
	stranger := solana.NewWallet().PublicKey()

	cases := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"zero amount", TransferRequest{Payer: f.payer, Recipient: f.payee}, errs.ErrValidation},
		{"to self", TransferRequest{Payer: f.payer, Recipient: f.payer, Amount: 1}, errs.ErrValidation},
		{"short of cash", TransferRequest{Payer: f.payer, Recipient: f.payee, Amount: 10_001}, errs.ErrInsufficientFunds},
		{"short of shares", TransferRequest{Payer: f.payer, Recipient: f.payee, Shares: true, Amount: 101}, errs.ErrInsufficientHoldings},
		{"unknown company", TransferRequest{Payer: f.payer, Recipient: f.payee, Shares: true, CompanyID: 3, Amount: 1}, errs.ErrNotFound},
		{"shares without portfolio", TransferRequest{Payer: f.payer, Recipient: stranger, Shares: true, Amount: 1}, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
				return f.tr.Create(tx, tc.req)
			})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	f.update(t, func(tx *store.Tx) error {
		p, err := account.Load[*account.Platform](tx, f.d.Platform().Key)
		require.NoError(t, err)
		assert.Zero(t, p.TotalEscrows)
		p.Paused = true
		return account.Save(tx, f.d.Platform().Key, p)
	})
	_, err := f.try(func(tx *store.Tx) (*account.TransferEscrow, error) {
		return f.tr.Create(tx, TransferRequest{Payer: f.payer, Recipient: f.payee, Amount: 1})
	})
	assert.True(t, errors.Is(err, errs.ErrPaused), "got %v", err)
}
