package registry

import (
	"context"
	"strings"
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

type fixture struct {
	st        *store.Store
	d         account.Deriver
	tokens    token.Ledger
	portfolio portfolio.Ledger
	r         *Registry
	admin     solana.PublicKey
	issuer    solana.PublicKey
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := account.NewDeriver(solana.MustPublicKeyFromBase58(account.DefaultProgramID))
	f := &fixture{
		st:        st,
		d:         d,
		tokens:    token.NewLedger(d),
		portfolio: portfolio.NewLedger(d),
		admin:     solana.NewWallet().PublicKey(),
		issuer:    solana.NewWallet().PublicKey(),
	}
	f.r = New(d, f.tokens, f.portfolio, Limits{DefaultFeeBps: 100, MaxFeeBps: 1000})
	f.update(t, func(tx *store.Tx) error {
		_, err := f.r.InitializePlatform(tx, f.admin)
		return err
	})
	return f
}

func (f *fixture) update(t *testing.T, fn func(tx *store.Tx) error) {
	t.Helper()
	require.NoError(t, f.st.Update(context.Background(), fn))
}

func (f *fixture) try(fn func(tx *store.Tx) error) error {
	return f.st.Update(context.Background(), fn)
}

func (f *fixture) company(t *testing.T, supply uint64) *account.Company {
	t.Helper()
	var c *account.Company
	f.update(t, func(tx *store.Tx) error {
		var err error
		c, err = f.r.RegisterCompany(tx, RegisterCompanyRequest{
			Authority:   f.issuer,
			Name:        "Acme Robotics",
			Symbol:      "ACME",
			Description: "industrial arms",
			TotalSupply: supply,
			Now:         1_000,
		})
		return err
	})
	return c
}

func TestInitializePlatformOnce(t *testing.T) {
	f := setup(t)

	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.InitializePlatform(tx, f.admin)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrAlreadyExists))

	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		p, err := f.r.Platform(tx)
		require.NoError(t, err)
		assert.Equal(t, f.admin, p.Authority)
		assert.Equal(t, uint16(100), p.FeeBps)
		assert.Equal(t, f.d.PaymentMint().Key, p.PaymentMint)
		return nil
	}))
}

func TestUpdatePlatformFee(t *testing.T) {
	f := setup(t)

	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.UpdatePlatformFee(tx, f.issuer, 50)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	err = f.try(func(tx *store.Tx) error {
		_, err := f.r.UpdatePlatformFee(tx, f.admin, 1001)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	f.update(t, func(tx *store.Tx) error {
		p, err := f.r.UpdatePlatformFee(tx, f.admin, 25)
		require.NoError(t, err)
		assert.Equal(t, uint16(25), p.FeeBps)
		return nil
	})
}

func TestPauseBlocksRegistration(t *testing.T) {
	f := setup(t)
	f.update(t, func(tx *store.Tx) error {
		_, err := f.r.SetPaused(tx, f.admin, true)
		return err
	})

	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.RegisterCompany(tx, RegisterCompanyRequest{
			Authority: f.issuer, Name: "A", Symbol: "A", TotalSupply: 1,
		})
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrPaused))
}

func TestRegisterCompanyValidation(t *testing.T) {
	f := setup(t)
	cases := map[string]RegisterCompanyRequest{
		"empty name":   {Name: "", Symbol: "A", TotalSupply: 1},
		"long name":    {Name: strings.Repeat("n", 65), Symbol: "A", TotalSupply: 1},
		"long symbol":  {Name: "A", Symbol: strings.Repeat("s", 17), TotalSupply: 1},
		"long desc":    {Name: "A", Symbol: "A", Description: strings.Repeat("d", 257), TotalSupply: 1},
		"no supply":    {Name: "A", Symbol: "A"},
		"empty symbol": {Name: "A", Symbol: "", TotalSupply: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			err := f.try(func(tx *store.Tx) error {
				_, err := f.r.RegisterCompany(tx, req)
				return err
			})
			assert.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)
		})
	}
}

func TestRegisterCompanyCreatesMintAndBook(t *testing.T) {
	f := setup(t)
	first := f.company(t, 1_000_000)
	second := f.company(t, 10)

	assert.Equal(t, uint64(0), first.ID)
	assert.Equal(t, uint64(1), second.ID)
	assert.Equal(t, f.d.CompanyMint(0).Key, first.Mint)

	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		ob, err := account.Load[*account.Orderbook](tx, f.d.Orderbook(1).Key)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), ob.NextOrderID)

		_, err = account.Load[*account.Mint](tx, second.Mint)
		require.NoError(t, err)

		p, err := f.r.Platform(tx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), p.TotalCompanies)
		return nil
	}))
}

func TestVerifyCompanyRequiresAdmin(t *testing.T) {
	f := setup(t)
	c := f.company(t, 100)

	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.VerifyCompany(tx, f.issuer, c.ID)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	f.update(t, func(tx *store.Tx) error {
		got, err := f.r.VerifyCompany(tx, f.admin, c.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		return nil
	})
}

func TestCreateOfferingChecks(t *testing.T) {
	f := setup(t)
	c := f.company(t, 1_000)

	base := CreateOfferingRequest{
		Requester: f.issuer, CompanyID: c.ID, TotalSupply: 600, Price: 10,
		Start: 2_000, End: 3_000, Now: 1_500,
	}
	cases := []struct {
		name string
		mod  func(*CreateOfferingRequest)
		want error
	}{
		{"not authority", func(r *CreateOfferingRequest) { r.Requester = f.admin }, errs.ErrUnauthorized},
		{"starts in past", func(r *CreateOfferingRequest) { r.Start = 1_000 }, errs.ErrValidation},
		{"ends before start", func(r *CreateOfferingRequest) { r.End = r.Start }, errs.ErrValidation},
		{"zero price", func(r *CreateOfferingRequest) { r.Price = 0 }, errs.ErrValidation},
		{"over supply", func(r *CreateOfferingRequest) { r.TotalSupply = 1_001 }, errs.ErrValidation},
		{"unknown company", func(r *CreateOfferingRequest) { r.CompanyID = 9 }, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mod(&req)
			err := f.try(func(tx *store.Tx) error {
				_, err := f.r.CreateOffering(tx, req)
				return err
			})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	f.update(t, func(tx *store.Tx) error {
		_, err := f.r.CreateOffering(tx, base)
		return err
	})
	// Only 400 left unoffered.
	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.CreateOffering(tx, base)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestParticipateInOffering(t *testing.T) {
	f := setup(t)
	c := f.company(t, 1_000)
	investor := solana.NewWallet().PublicKey()

	var off *account.Offering
	f.update(t, func(tx *store.Tx) error {
		var err error
		off, err = f.r.CreateOffering(tx, CreateOfferingRequest{
			Requester: f.issuer, CompanyID: c.ID, TotalSupply: 100, Price: 25,
			Start: 2_000, End: 3_000, Now: 1_500,
		})
		if err != nil {
			return err
		}
		if _, err := f.portfolio.Create(tx, investor, 1_500); err != nil {
			return err
		}
		return f.r.Deposit(tx, f.admin, investor, 5_000)
	})

	participate := func(inv uint64, now int64) (*Participation, error) {
		var p *Participation
		err := f.try(func(tx *store.Tx) error {
			var err error
			p, err = f.r.Participate(tx, ParticipateRequest{Investor: investor, OfferingID: off.ID, Investment: inv, Now: now})
			return err
		})
		return p, err
	}

	_, err := participate(1_000, 1_999)
	assert.True(t, errors.Is(err, errs.ErrOfferingClosed))
	_, err = participate(1_000, 3_000)
	assert.True(t, errors.Is(err, errs.ErrOfferingClosed))
	_, err = participate(24, 2_500)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	got, err := participate(1_010, 2_500)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), got.Tokens)
	assert.Equal(t, uint64(1_000), got.Cost)
	assert.Equal(t, account.OfferingActive, got.Offering.Status)

	_, err = participate(2_500, 2_500)
	assert.True(t, errors.Is(err, errs.ErrInsufficientLiquidity))

	got, err = participate(1_500, 2_600)
	require.NoError(t, err)
	assert.Equal(t, account.OfferingCompleted, got.Offering.Status)

	_, err = participate(25, 2_700)
	assert.True(t, errors.Is(err, errs.ErrOfferingClosed))

	require.NoError(t, f.st.View(func(tx *store.Tx) error {
		bal, err := f.tokens.Balance(tx, c.Mint, investor)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)

		pay, err := f.tokens.Balance(tx, f.d.PaymentMint().Key, investor)
		require.NoError(t, err)
		assert.Equal(t, uint64(2_500), pay)

		raised, err := f.tokens.Balance(tx, f.d.PaymentMint().Key, f.issuer)
		require.NoError(t, err)
		assert.Equal(t, uint64(2_500), raised)

		h, err := f.portfolio.Holding(tx, investor, c.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), h.Amount)
		assert.Equal(t, uint64(2_500), h.Invested)

		co, err := f.r.Company(tx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), co.CirculatingSupply)

		o, err := f.r.Offering(tx, off.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), o.Participants)
		assert.Equal(t, uint64(2_500), o.Raised)
		return nil
	}))
}

func TestParticipateWithoutFunds(t *testing.T) {
	f := setup(t)
	c := f.company(t, 1_000)
	investor := solana.NewWallet().PublicKey()
	f.update(t, func(tx *store.Tx) error {
		if _, err := f.r.CreateOffering(tx, CreateOfferingRequest{
			Requester: f.issuer, CompanyID: c.ID, TotalSupply: 100, Price: 10,
			Start: 10, End: 20, Now: 5,
		}); err != nil {
			return err
		}
		_, err := f.portfolio.Create(tx, investor, 5)
		return err
	})

	err := f.try(func(tx *store.Tx) error {
		_, err := f.r.Participate(tx, ParticipateRequest{Investor: investor, Investment: 100, Now: 15})
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
}

func TestDepositRequiresAdmin(t *testing.T) {
	f := setup(t)
	err := f.try(func(tx *store.Tx) error {
		return f.r.Deposit(tx, f.issuer, f.issuer, 10)
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}
