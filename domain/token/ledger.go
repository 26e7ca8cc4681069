package token

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
)

// Ledger is a minimal fungible-token standard: mints with a supply and
// one token account per (mint, owner).
type Ledger struct {
	addr account.Deriver
}

func NewLedger(d account.Deriver) Ledger {
	return Ledger{addr: d}
}

// CreateMint initializes a mint at a derived address.
func (l Ledger) CreateMint(s account.Store, at account.Address, authority solana.PublicKey) error {
	return account.Init(s, at.Key, &account.Mint{
		Authority: authority,
		Bump:      at.Bump,
	})
}

// MintTo issues new supply into owner's account.
func (l Ledger) MintTo(s account.Store, mint, owner solana.PublicKey, qty uint64) error {
	m, err := account.LoadOr[*account.Mint](s, mint, "mint")
	if err != nil {
		return err
	}
	if m.Supply, err = amount.Add(m.Supply, qty); err != nil {
		return err
	}
	if err := account.Save(s, mint, m); err != nil {
		return err
	}
	return l.Credit(s, mint, owner, qty)
}

func (l Ledger) Balance(s account.Store, mint, owner solana.PublicKey) (uint64, error) {
	acc, err := account.Load[*account.TokenAccount](s, l.addr.TokenAccount(mint, owner).Key)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Credit adds qty to owner's account, opening it on first use.
func (l Ledger) Credit(s account.Store, mint, owner solana.PublicKey, qty uint64) error {
	if qty == 0 {
		return nil
	}
	at := l.addr.TokenAccount(mint, owner)
	acc, err := account.Load[*account.TokenAccount](s, at.Key)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		acc = &account.TokenAccount{Mint: mint, Owner: owner, Bump: at.Bump}
	case err != nil:
		return err
	}
	if acc.Amount, err = amount.Add(acc.Amount, qty); err != nil {
		return err
	}
	return account.Save(s, at.Key, acc)
}

// Debit removes qty from owner's account.
func (l Ledger) Debit(s account.Store, mint, owner solana.PublicKey, qty uint64) error {
	if qty == 0 {
		return nil
	}
	at := l.addr.TokenAccount(mint, owner)
	acc, err := account.Load[*account.TokenAccount](s, at.Key)
	if errors.Is(err, errs.ErrNotFound) {
		acc = &account.TokenAccount{}
	} else if err != nil {
		return err
	}
	if acc.Amount < qty {
		return errs.InsufficientBalance("%s holds %d of %s, needs %d", owner, acc.Amount, mint, qty)
	}
	acc.Amount -= qty
	return account.Save(s, at.Key, acc)
}

func (l Ledger) Transfer(s account.Store, mint, from, to solana.PublicKey, qty uint64) error {
	if err := l.Debit(s, mint, from, qty); err != nil {
		return err
	}
	return l.Credit(s, mint, to, qty)
}
