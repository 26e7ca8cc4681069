package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
)

type CreateOfferingRequest struct {
	Requester   solana.PublicKey
	CompanyID   uint64
	TotalSupply uint64
	Price       uint64
	Start       int64
	End         int64
	Now         int64
}

// CreateOffering opens a primary sale of company tokens over [Start, End).
func (r *Registry) CreateOffering(s account.Store, req CreateOfferingRequest) (*account.Offering, error) {
	switch {
	case req.TotalSupply == 0:
		return nil, errs.Validation("offering supply must be positive")
	case req.Price == 0:
		return nil, errs.Validation("offering price must be positive")
	case req.Start < req.Now:
		return nil, errs.Validation("offering cannot start in the past")
	case req.End <= req.Start:
		return nil, errs.Validation("offering must end after it starts")
	}

	p, err := r.Platform(s)
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
	if req.Requester != c.Authority {
		return nil, errs.Unauthorized("%s is not the authority of company %d", req.Requester, c.ID)
	}

	offered, err := amount.Add(c.OfferedSupply, req.TotalSupply)
	if err != nil {
		return nil, err
	}
	if offered > c.TotalSupply {
		return nil, errs.Validation("company %d has %d unoffered tokens, asked for %d",
			c.ID, c.TotalSupply-c.OfferedSupply, req.TotalSupply)
	}
	c.OfferedSupply = offered
	if err := account.Save(s, r.addr.Company(c.ID).Key, c); err != nil {
		return nil, err
	}

	id := p.TotalOfferings
	if p.TotalOfferings, err = amount.Add(p.TotalOfferings, 1); err != nil {
		return nil, err
	}
	if err := account.Save(s, r.addr.Platform().Key, p); err != nil {
		return nil, err
	}

	at := r.addr.Offering(id)
	o := &account.Offering{
		ID:          id,
		CompanyID:   c.ID,
		Authority:   c.Authority,
		Mint:        c.Mint,
		TotalSupply: req.TotalSupply,
		Price:       req.Price,
		Start:       req.Start,
		End:         req.End,
		Status:      account.OfferingPending,
		CreatedAt:   req.Now,
		Bump:        at.Bump,
	}
	return o, account.Init(s, at.Key, o)
}

func (r *Registry) Offering(s account.Store, id uint64) (*account.Offering, error) {
	return account.LoadOr[*account.Offering](s, r.addr.Offering(id).Key, "offering")
}

type ParticipateRequest struct {
	Investor   solana.PublicKey
	OfferingID uint64
	Investment uint64 // payment units offered
	Now        int64
}

type Participation struct {
	Offering *account.Offering
	Tokens   uint64
	Cost     uint64
}

// Participate buys floor(Investment / price) tokens from an open offering.
// Only the whole-token cost is charged.
func (r *Registry) Participate(s account.Store, req ParticipateRequest) (*Participation, error) {
	p, err := r.Platform(s)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, errs.Paused()
	}
	o, err := r.Offering(s, req.OfferingID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Status == account.OfferingCompleted || o.Status == account.OfferingCancelled:
		return nil, errs.OfferingClosed("offering %d is %s", o.ID, o.Status)
	case req.Now < o.Start:
		return nil, errs.OfferingClosed("offering %d has not started", o.ID)
	case req.Now >= o.End:
		return nil, errs.OfferingClosed("offering %d has ended", o.ID)
	}

	tokens := req.Investment / o.Price
	if tokens == 0 {
		return nil, errs.Validation("investment %d buys no tokens at %d", req.Investment, o.Price)
	}
	if tokens > o.Remaining() {
		return nil, errs.InsufficientLiquidity("offering %d has %d tokens left, asked for %d", o.ID, o.Remaining(), tokens)
	}
	cost := tokens * o.Price // bounded by Investment

	if err := r.tokens.Transfer(s, p.PaymentMint, req.Investor, o.Authority, cost); err != nil {
		if errors.Is(err, errs.ErrInsufficientBalance) {
			return nil, errs.InsufficientFunds("investor %s cannot pay %d", req.Investor, cost)
		}
		return nil, err
	}
	if err := r.tokens.MintTo(s, o.Mint, req.Investor, tokens); err != nil {
		return nil, err
	}
	if err := r.portfolio.Credit(s, req.Investor, o.CompanyID, o.Mint, tokens, cost, req.Now); err != nil {
		return nil, err
	}

	c, err := r.Company(s, o.CompanyID)
	if err != nil {
		return nil, err
	}
	if c.CirculatingSupply, err = amount.Add(c.CirculatingSupply, tokens); err != nil {
		return nil, err
	}
	if err := account.Save(s, r.addr.Company(c.ID).Key, c); err != nil {
		return nil, err
	}

	o.Sold += tokens
	o.Raised += cost
	o.Participants++
	o.Status = account.OfferingActive
	if o.Remaining() == 0 {
		o.Status = account.OfferingCompleted
	}
	if err := account.Save(s, r.addr.Offering(o.ID).Key, o); err != nil {
		return nil, err
	}
	return &Participation{Offering: o, Tokens: tokens, Cost: cost}, nil
}
