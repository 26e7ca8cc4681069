package registry

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
)

// MaxRecipients bounds one distribution.
const MaxRecipients = 10

type DistributeRequest struct {
	Requester    solana.PublicKey
	CompanyID    uint64
	Recipients   []solana.PublicKey
	PerRecipient uint64
	Now          int64
}

func (req DistributeRequest) validate() error {
	switch {
	case len(req.Recipients) == 0:
		return errs.Validation("distribution needs at least one recipient")
	case len(req.Recipients) > MaxRecipients:
		return errs.Validation("too many recipients: %d, at most %d", len(req.Recipients), MaxRecipients)
	case req.PerRecipient == 0:
		return errs.Validation("amount per recipient must be positive")
	}
	seen := make(map[solana.PublicKey]struct{}, len(req.Recipients))
	for _, to := range req.Recipients {
		if to == req.Requester {
			return errs.Validation("admin %s cannot be a recipient", to)
		}
		if _, dup := seen[to]; dup {
			return errs.Validation("recipient %s listed twice", to)
		}
		seen[to] = struct{}{}
	}
	return nil
}

// Distribute hands PerRecipient company tokens from the admin to each
// recipient. Every recipient needs a portfolio; the cost basis leaving the
// admin's holding moves with the tokens.
func (r *Registry) Distribute(s account.Store, req DistributeRequest) (*account.Distribution, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p, err := r.admin(s, req.Requester)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, errs.Paused()
	}
	c, err := r.Company(s, req.CompanyID)
	if err != nil {
		return nil, err
	}

	total, err := amount.Mul(req.PerRecipient, uint64(len(req.Recipients)))
	if err != nil {
		return nil, err
	}
	h, err := r.portfolio.Holding(s, req.Requester, c.ID)
	if err != nil {
		return nil, err
	}
	if h.Amount < total {
		return nil, errs.InsufficientHoldings("admin holds %d of company %d, distribution needs %d", h.Amount, c.ID, total)
	}

	for _, to := range req.Recipients {
		if _, err := r.portfolio.Get(s, to); err != nil {
			return nil, err
		}
		basis, err := r.portfolio.Debit(s, req.Requester, c.ID, req.PerRecipient, req.Now)
		if err != nil {
			return nil, err
		}
		if err := r.tokens.Transfer(s, c.Mint, req.Requester, to, req.PerRecipient); err != nil {
			return nil, err
		}
		if err := r.portfolio.Credit(s, to, c.ID, c.Mint, req.PerRecipient, basis, req.Now); err != nil {
			return nil, err
		}
	}

	id := p.TotalDistributions
	if p.TotalDistributions, err = amount.Add(p.TotalDistributions, 1); err != nil {
		return nil, err
	}
	if err := account.Save(s, r.addr.Platform().Key, p); err != nil {
		return nil, err
	}

	at := r.addr.Distribution(id)
	d := &account.Distribution{
		ID:           id,
		CompanyID:    c.ID,
		Admin:        req.Requester,
		Mint:         c.Mint,
		PerRecipient: req.PerRecipient,
		Total:        total,
		Recipients:   req.Recipients,
		CreatedAt:    req.Now,
		Bump:         at.Bump,
	}
	return d, account.Init(s, at.Key, d)
}

func (r *Registry) Distribution(s account.Store, id uint64) (*account.Distribution, error) {
	return account.LoadOr[*account.Distribution](s, r.addr.Distribution(id).Key, "distribution")
}
