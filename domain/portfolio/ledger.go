package portfolio

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
)

// Ledger tracks what each user holds per company and at what cost.
// Totals across all holdings are mirrored on the owner's Portfolio.
type Ledger struct {
	addr account.Deriver
}

func NewLedger(d account.Deriver) Ledger {
	return Ledger{addr: d}
}

// Create opens a zeroed portfolio for owner.
func (l Ledger) Create(s account.Store, owner solana.PublicKey, now int64) (*account.Portfolio, error) {
	at := l.addr.Portfolio(owner)
	p := &account.Portfolio{
		Owner:     owner,
		Bump:      at.Bump,
		UpdatedAt: now,
	}
	if err := account.Init(s, at.Key, p); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, errs.AlreadyExists("portfolio for %s already exists", owner)
		}
		return nil, err
	}
	return p, nil
}

func (l Ledger) Get(s account.Store, owner solana.PublicKey) (*account.Portfolio, error) {
	return account.LoadOr[*account.Portfolio](s, l.addr.Portfolio(owner).Key, "portfolio")
}

// Holding returns owner's position in a company; a missing one reads as zero.
func (l Ledger) Holding(s account.Store, owner solana.PublicKey, companyID uint64) (*account.Holding, error) {
	at := l.addr.Holding(owner, companyID)
	h, err := account.Load[*account.Holding](s, at.Key)
	if errors.Is(err, errs.ErrNotFound) {
		return &account.Holding{Owner: owner, CompanyID: companyID, Bump: at.Bump}, nil
	}
	return h, err
}

// Credit adds qty acquired for cost to owner's position.
func (l Ledger) Credit(
	s account.Store,
	owner solana.PublicKey,
	companyID uint64,
	mint solana.PublicKey,
	qty, cost uint64,
	now int64,
) error {
	p, err := l.Get(s, owner)
	if err != nil {
		return err
	}

	at := l.addr.Holding(owner, companyID)
	h, err := account.Load[*account.Holding](s, at.Key)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		h = &account.Holding{Owner: owner, CompanyID: companyID, Mint: mint, Bump: at.Bump}
		p.HoldingsCount++
	case err != nil:
		return err
	}

	if h.Amount, err = amount.Add(h.Amount, qty); err != nil {
		return err
	}
	if h.Invested, err = amount.Add(h.Invested, cost); err != nil {
		return err
	}
	if p.Holdings, err = amount.Add(p.Holdings, qty); err != nil {
		return err
	}
	if p.Value, err = amount.Add(p.Value, cost); err != nil {
		return err
	}
	h.UpdatedAt, p.UpdatedAt = now, now

	if err := account.Save(s, at.Key, h); err != nil {
		return err
	}
	return account.Save(s, l.addr.Portfolio(owner).Key, p)
}

// Debit removes qty from owner's position and returns the cost basis that
// left with it, taken at the average price and rounded down.
func (l Ledger) Debit(
	s account.Store,
	owner solana.PublicKey,
	companyID uint64,
	qty uint64,
	now int64,
) (uint64, error) {
	p, err := l.Get(s, owner)
	if err != nil {
		return 0, err
	}
	h, err := l.Holding(s, owner, companyID)
	if err != nil {
		return 0, err
	}
	if qty > h.Amount {
		return 0, errs.InsufficientHoldings("%s holds %d of company %d, needs %d", owner, h.Amount, companyID, qty)
	}

	basis := h.Invested
	if qty < h.Amount {
		if basis, err = amount.MulDiv(h.Invested, qty, h.Amount); err != nil {
			return 0, err
		}
	}

	h.Amount -= qty
	h.Invested -= basis
	h.UpdatedAt = now
	if p.Holdings, err = amount.Sub(p.Holdings, qty); err != nil {
		return 0, err
	}
	if p.Value, err = amount.Sub(p.Value, basis); err != nil {
		return 0, err
	}
	p.UpdatedAt = now

	if err := account.Save(s, l.addr.Holding(owner, companyID).Key, h); err != nil {
		return 0, err
	}
	if err := account.Save(s, l.addr.Portfolio(owner).Key, p); err != nil {
		return 0, err
	}
	return basis, nil
}

// Realize books proceeds against the basis of tokens that were sold.
func (l Ledger) Realize(
	s account.Store,
	owner solana.PublicKey,
	companyID uint64,
	proceeds, basis uint64,
	now int64,
) error {
	if proceeds > math.MaxInt64 || basis > math.MaxInt64 {
		return errs.Overflow("realized pnl out of range")
	}
	h, err := l.Holding(s, owner, companyID)
	if err != nil {
		return err
	}
	// Both operands fit in int64, so only the running total can overflow.
	if h.Realized, err = amount.AddSigned(h.Realized, int64(proceeds)-int64(basis)); err != nil {
		return errors.Wrapf(err, "realized pnl for company %d", companyID)
	}
	h.UpdatedAt = now
	return account.Save(s, l.addr.Holding(owner, companyID).Key, h)
}
