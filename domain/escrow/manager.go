package escrow

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
	"tokex/domain/token"
)

// Manager custodies the asset an order offers for as long as the order
// lives. Each order owns exactly one escrow, derived from the order's
// (company, id) pair.
type Manager struct {
	addr   account.Deriver
	tokens token.Ledger
}

func NewManager(d account.Deriver, tokens token.Ledger) Manager {
	return Manager{addr: d, tokens: tokens}
}

// Lock moves qty of mint from the order owner into a new escrow. basis is
// the cost basis travelling with escrowed tokens (zero for payment).
func (m Manager) Lock(
	s account.Store,
	o *account.Order,
	mint solana.PublicKey,
	qty, basis uint64,
) (*account.Escrow, error) {
	if err := m.tokens.Debit(s, mint, o.Owner, qty); err != nil {
		return nil, err
	}

	at := m.addr.Escrow(o.CompanyID, o.ID)
	e := &account.Escrow{
		Order:     m.addr.Order(o.CompanyID, o.ID).Key,
		CompanyID: o.CompanyID,
		OrderID:   o.ID,
		Owner:     o.Owner,
		Mint:      mint,
		Amount:    qty,
		Basis:     basis,
		Bump:      at.Bump,
	}
	if err := account.Init(s, at.Key, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (m Manager) Get(s account.Store, companyID, orderID uint64) (*account.Escrow, error) {
	return account.LoadOr[*account.Escrow](s, m.addr.Escrow(companyID, orderID).Key, "escrow")
}

// ReleasePartial pays qty out of the escrow to dest and returns the share
// of cost basis that left with it.
func (m Manager) ReleasePartial(
	s account.Store,
	o *account.Order,
	qty uint64,
	dest solana.PublicKey,
) (uint64, error) {
	e, err := m.Get(s, o.CompanyID, o.ID)
	if err != nil {
		return 0, err
	}
	if e.Closed {
		return 0, errs.AlreadyTerminal("escrow for order %d is closed", o.ID)
	}
	if qty > e.Amount {
		return 0, errs.EscrowUnderflow("escrow for order %d holds %d, release of %d", o.ID, e.Amount, qty)
	}

	basis := e.Basis
	if qty < e.Amount {
		if basis, err = amount.MulDiv(e.Basis, qty, e.Amount); err != nil {
			return 0, err
		}
	}
	e.Amount -= qty
	e.Basis -= basis

	if err := account.Save(s, m.addr.Escrow(o.CompanyID, o.ID).Key, e); err != nil {
		return 0, err
	}
	return basis, m.tokens.Credit(s, e.Mint, dest, qty)
}

// CloseAndRefundRemainder returns whatever is left to the owner and marks
// the escrow consumed. It reports the refunded quantity and basis.
func (m Manager) CloseAndRefundRemainder(s account.Store, o *account.Order) (uint64, uint64, error) {
	e, err := m.Get(s, o.CompanyID, o.ID)
	if err != nil {
		return 0, 0, err
	}
	if e.Closed {
		return 0, 0, errs.AlreadyTerminal("escrow for order %d is closed", o.ID)
	}

	refund, basis := e.Amount, e.Basis
	e.Amount, e.Basis, e.Closed = 0, 0, true
	if err := account.Save(s, m.addr.Escrow(o.CompanyID, o.ID).Key, e); err != nil {
		return 0, 0, err
	}
	return refund, basis, m.tokens.Credit(s, e.Mint, e.Owner, refund)
}

// Commitment is what an open order must have in escrow: remaining × price
// for limit buys, remaining for sells.
func Commitment(o *account.Order) (uint64, error) {
	if o.Side == account.Sell {
		return o.Remaining, nil
	}
	return amount.Mul(o.Remaining, o.Price)
}

// Verify checks the escrow against its order. Drift is an invariant
// violation, never a user error.
func (m Manager) Verify(s account.Store, o *account.Order) error {
	e, err := m.Get(s, o.CompanyID, o.ID)
	if err != nil {
		return err
	}

	if o.Status.Terminal() {
		if !e.Closed || e.Amount != 0 {
			return errs.InvariantViolation(
				"order %d/%d is %s but escrow holds %d (closed=%t)",
				o.CompanyID, o.ID, o.Status, e.Amount, e.Closed)
		}
		return nil
	}

	if o.Type == account.Market {
		return errs.InvariantViolation("market order %d/%d left open", o.CompanyID, o.ID)
	}
	want, err := Commitment(o)
	if err != nil {
		return err
	}
	if e.Amount != want {
		return errs.InvariantViolation(
			"order %d/%d escrow holds %d, remaining %d commits %d",
			o.CompanyID, o.ID, e.Amount, o.Remaining, want)
	}
	return nil
}
