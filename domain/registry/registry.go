package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
	"tokex/domain/portfolio"
	"tokex/domain/token"
)

const (
	maxNameLen        = 64
	maxSymbolLen      = 16
	maxDescriptionLen = 256
)

type Limits struct {
	DefaultFeeBps uint16
	MaxFeeBps     uint16
}

// Registry administers the platform singleton, issuing companies and
// their token offerings.
type Registry struct {
	addr      account.Deriver
	tokens    token.Ledger
	portfolio portfolio.Ledger
	limits    Limits
}

func New(d account.Deriver, tokens token.Ledger, p portfolio.Ledger, limits Limits) *Registry {
	return &Registry{addr: d, tokens: tokens, portfolio: p, limits: limits}
}

// ---- platform ----

// InitializePlatform creates the platform singleton and the payment mint.
func (r *Registry) InitializePlatform(s account.Store, authority solana.PublicKey) (*account.Platform, error) {
	if r.limits.DefaultFeeBps > r.limits.MaxFeeBps {
		return nil, errs.Validation("default fee %d exceeds maximum %d", r.limits.DefaultFeeBps, r.limits.MaxFeeBps)
	}
	at := r.addr.Platform()
	mint := r.addr.PaymentMint()
	p := &account.Platform{
		Authority:   authority,
		FeeBps:      r.limits.DefaultFeeBps,
		Bump:        at.Bump,
		PaymentMint: mint.Key,
	}
	if err := account.Init(s, at.Key, p); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, errs.AlreadyExists("platform already initialized")
		}
		return nil, err
	}
	if err := r.tokens.CreateMint(s, mint, at.Key); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry) Platform(s account.Store) (*account.Platform, error) {
	return account.LoadOr[*account.Platform](s, r.addr.Platform().Key, "platform")
}

func (r *Registry) admin(s account.Store, requester solana.PublicKey) (*account.Platform, error) {
	p, err := r.Platform(s)
	if err != nil {
		return nil, err
	}
	if requester != p.Authority {
		return nil, errs.Unauthorized("%s is not the platform authority", requester)
	}
	return p, nil
}

func (r *Registry) UpdatePlatformFee(s account.Store, requester solana.PublicKey, bps uint16) (*account.Platform, error) {
	p, err := r.admin(s, requester)
	if err != nil {
		return nil, err
	}
	if bps > r.limits.MaxFeeBps || bps > amount.BasisPoints {
		return nil, errs.Validation("fee %d bps exceeds maximum %d", bps, r.limits.MaxFeeBps)
	}
	p.FeeBps = bps
	return p, account.Save(s, r.addr.Platform().Key, p)
}

func (r *Registry) SetPaused(s account.Store, requester solana.PublicKey, paused bool) (*account.Platform, error) {
	p, err := r.admin(s, requester)
	if err != nil {
		return nil, err
	}
	p.Paused = paused
	return p, account.Save(s, r.addr.Platform().Key, p)
}

// Deposit mints payment asset to owner. It stands in for funding from
// outside the platform.
func (r *Registry) Deposit(s account.Store, requester, owner solana.PublicKey, qty uint64) error {
	p, err := r.admin(s, requester)
	if err != nil {
		return err
	}
	if qty == 0 {
		return errs.Validation("deposit must be positive")
	}
	return r.tokens.MintTo(s, p.PaymentMint, owner, qty)
}

// ---- companies ----

type RegisterCompanyRequest struct {
	Authority   solana.PublicKey
	Name        string
	Symbol      string
	Description string
	TotalSupply uint64
	Now         int64
}

func (req RegisterCompanyRequest) validate() error {
	switch {
	case req.Name == "" || len(req.Name) > maxNameLen:
		return errs.Validation("company name must be 1..%d bytes", maxNameLen)
	case req.Symbol == "" || len(req.Symbol) > maxSymbolLen:
		return errs.Validation("company symbol must be 1..%d bytes", maxSymbolLen)
	case len(req.Description) > maxDescriptionLen:
		return errs.Validation("company description exceeds %d bytes", maxDescriptionLen)
	case req.TotalSupply == 0:
		return errs.Validation("company total supply must be positive")
	}
	return nil
}

// RegisterCompany creates the company, its token mint and its order book.
func (r *Registry) RegisterCompany(s account.Store, req RegisterCompanyRequest) (*account.Company, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p, err := r.Platform(s)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, errs.Paused()
	}
	return r.createCompany(s, p, req)
}

// createCompany takes the next company id from p and lays down the
// company, its mint and its orderbook record.
func (r *Registry) createCompany(s account.Store, p *account.Platform, req RegisterCompanyRequest) (*account.Company, error) {
	id := p.TotalCompanies
	var err error
	if p.TotalCompanies, err = amount.Add(p.TotalCompanies, 1); err != nil {
		return nil, err
	}
	if err := account.Save(s, r.addr.Platform().Key, p); err != nil {
		return nil, err
	}

	at := r.addr.Company(id)
	mint := r.addr.CompanyMint(id)
	c := &account.Company{
		ID:          id,
		Authority:   req.Authority,
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		Mint:        mint.Key,
		TotalSupply: req.TotalSupply,
		CreatedAt:   req.Now,
		Bump:        at.Bump,
	}
	if err := account.Init(s, at.Key, c); err != nil {
		return nil, err
	}
	if err := r.tokens.CreateMint(s, mint, r.addr.Platform().Key); err != nil {
		return nil, err
	}

	ob := r.addr.Orderbook(id)
	if err := account.Init(s, ob.Key, &account.Orderbook{
		CompanyID:   id,
		NextOrderID: 1,
		Bump:        ob.Bump,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

type AdminCreateCompanyRequest struct {
	Requester     solana.PublicKey
	Name          string
	Symbol        string
	Description   string
	InitialSupply uint64
	InitialPrice  uint64
	Now           int64
}

// AdminCreateCompany issues a verified company whose whole supply is
// minted to the admin up front, for later distribution. The admin needs a
// portfolio to hold it. InitialPrice seeds the book's last price.
func (r *Registry) AdminCreateCompany(s account.Store, req AdminCreateCompanyRequest) (*account.Company, error) {
	reg := RegisterCompanyRequest{
		Authority:   req.Requester,
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		TotalSupply: req.InitialSupply,
		Now:         req.Now,
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	if req.InitialPrice == 0 {
		return nil, errs.Validation("initial price must be positive")
	}
	if _, err := amount.Mul(req.InitialSupply, req.InitialPrice); err != nil {
		return nil, errors.Wrap(err, "market cap")
	}

	p, err := r.admin(s, req.Requester)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, errs.Paused()
	}
	if _, err := r.portfolio.Get(s, req.Requester); err != nil {
		return nil, err
	}

	c, err := r.createCompany(s, p, reg)
	if err != nil {
		return nil, err
	}
	// Everything is issued at once, so nothing is left to offer.
	c.Verified = true
	c.OfferedSupply = c.TotalSupply
	c.CirculatingSupply = c.TotalSupply
	if err := account.Save(s, r.addr.Company(c.ID).Key, c); err != nil {
		return nil, err
	}
	if err := r.tokens.MintTo(s, c.Mint, req.Requester, c.TotalSupply); err != nil {
		return nil, err
	}
	if err := r.portfolio.Credit(s, req.Requester, c.ID, c.Mint, c.TotalSupply, 0, req.Now); err != nil {
		return nil, err
	}

	obAt := r.addr.Orderbook(c.ID)
	ob, err := account.LoadOr[*account.Orderbook](s, obAt.Key, "orderbook")
	if err != nil {
		return nil, err
	}
	ob.LastPrice = req.InitialPrice
	return c, account.Save(s, obAt.Key, ob)
}

func (r *Registry) Company(s account.Store, id uint64) (*account.Company, error) {
	return account.LoadOr[*account.Company](s, r.addr.Company(id).Key, "company")
}

func (r *Registry) VerifyCompany(s account.Store, requester solana.PublicKey, id uint64) (*account.Company, error) {
	if _, err := r.admin(s, requester); err != nil {
		return nil, err
	}
	c, err := r.Company(s, id)
	if err != nil {
		return nil, err
	}
	c.Verified = true
	return c, account.Save(s, r.addr.Company(id).Key, c)
}
