package escrow

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
	"tokex/domain/portfolio"
	"tokex/domain/token"
)

// Transfers runs escrows between two parties outside the order book: the
// payer locks an amount that is later released to the recipient or
// cancelled back.
type Transfers struct {
	addr      account.Deriver
	tokens    token.Ledger
	portfolio portfolio.Ledger
}

func NewTransfers(d account.Deriver, tokens token.Ledger, p portfolio.Ledger) Transfers {
	return Transfers{addr: d, tokens: tokens, portfolio: p}
}

type TransferRequest struct {
	Payer     solana.PublicKey
	Recipient solana.PublicKey
	Shares    bool   // company tokens instead of the payment asset
	CompanyID uint64 // with Shares
	Amount    uint64
	Reference uint64
	Now       int64
}

// Create locks req.Amount from the payer. Shares leave the payer's holding
// with their cost basis, and need a recipient portfolio to land in.
func (t Transfers) Create(s account.Store, req TransferRequest) (*account.TransferEscrow, error) {
	switch {
	case req.Amount == 0:
		return nil, errs.Validation("escrow amount must be positive")
	case req.Payer == req.Recipient:
		return nil, errs.Validation("escrow payer and recipient are both %s", req.Payer)
	}
	platformAt := t.addr.Platform()
	p, err := account.LoadOr[*account.Platform](s, platformAt.Key, "platform")
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, errs.Paused()
	}

	e := &account.TransferEscrow{
		Reference: req.Reference,
		Payer:     req.Payer,
		Recipient: req.Recipient,
		Mint:      p.PaymentMint,
		Shares:    req.Shares,
		Amount:    req.Amount,
		Status:    account.EscrowActive,
		CreatedAt: req.Now,
	}
	if req.Shares {
		c, err := account.LoadOr[*account.Company](s, t.addr.Company(req.CompanyID).Key, "company")
		if err != nil {
			return nil, err
		}
		if _, err := t.portfolio.Get(s, req.Recipient); err != nil {
			return nil, err
		}
		e.Mint, e.CompanyID = c.Mint, c.ID
		if e.Basis, err = t.portfolio.Debit(s, req.Payer, c.ID, req.Amount, req.Now); err != nil {
			return nil, err
		}
	}
	if err := t.tokens.Debit(s, e.Mint, req.Payer, req.Amount); err != nil {
		if !req.Shares && errors.Is(err, errs.ErrInsufficientBalance) {
			return nil, errs.InsufficientFunds("payer %s cannot escrow %d", req.Payer, req.Amount)
		}
		return nil, err
	}

	e.ID = p.TotalEscrows
	if p.TotalEscrows, err = amount.Add(p.TotalEscrows, 1); err != nil {
		return nil, err
	}
	if err := account.Save(s, platformAt.Key, p); err != nil {
		return nil, err
	}
	at := t.addr.TransferEscrow(e.ID)
	e.Bump = at.Bump
	return e, account.Init(s, at.Key, e)
}

func (t Transfers) Get(s account.Store, id uint64) (*account.TransferEscrow, error) {
	return account.LoadOr[*account.TransferEscrow](s, t.addr.TransferEscrow(id).Key, "escrow")
}

// Release pays the escrow out to the recipient. Either party may release.
func (t Transfers) Release(s account.Store, id uint64, requester solana.PublicKey, now int64) (*account.TransferEscrow, error) {
	e, err := t.active(s, id)
	if err != nil {
		return nil, err
	}
	if requester != e.Payer && requester != e.Recipient {
		return nil, errs.Unauthorized("%s is not a party to escrow %d", requester, id)
	}
	return e, t.settle(s, e, e.Recipient, account.EscrowReleased, now)
}

// Cancel returns the escrow to the payer. Only the payer may cancel.
func (t Transfers) Cancel(s account.Store, id uint64, requester solana.PublicKey, now int64) (*account.TransferEscrow, error) {
	e, err := t.active(s, id)
	if err != nil {
		return nil, err
	}
	if requester != e.Payer {
		return nil, errs.Unauthorized("only payer %s may cancel escrow %d", e.Payer, id)
	}
	return e, t.settle(s, e, e.Payer, account.EscrowCancelled, now)
}

func (t Transfers) active(s account.Store, id uint64) (*account.TransferEscrow, error) {
	e, err := t.Get(s, id)
	if err != nil {
		return nil, err
	}
	if e.Status != account.EscrowActive {
		return nil, errs.AlreadyTerminal("escrow %d is %s", id, e.Status)
	}
	return e, nil
}

func (t Transfers) settle(
	s account.Store,
	e *account.TransferEscrow,
	to solana.PublicKey,
	status account.EscrowStatus,
	now int64,
) error {
	if err := t.tokens.Credit(s, e.Mint, to, e.Amount); err != nil {
		return err
	}
	if e.Shares {
		if err := t.portfolio.Credit(s, to, e.CompanyID, e.Mint, e.Amount, e.Basis, now); err != nil {
			return err
		}
	}
	e.Status, e.SettledAt = status, now
	return account.Save(s, t.addr.TransferEscrow(e.ID).Key, e)
}
