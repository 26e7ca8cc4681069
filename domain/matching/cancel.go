package matching

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/errs"
)

type CancelRequest struct {
	CompanyID uint64
	OrderID   uint64
	Requester solana.PublicKey
	Now       int64
}

// Cancel refunds an order's remaining escrow and retires it. Only the
// owner or the platform authority may cancel; pausing does not block it.
func (e *Engine) Cancel(s account.Store, req CancelRequest) (*Result, error) {
	at := e.addr.Order(req.CompanyID, req.OrderID)
	o, err := account.LoadOr[*account.Order](s, at.Key, "order")
	if err != nil {
		return nil, err
	}
	platform, err := e.loadPlatform(s)
	if err != nil {
		return nil, err
	}
	if req.Requester != o.Owner && req.Requester != platform.Authority {
		return nil, errs.Unauthorized("%s may not cancel order %d/%d", req.Requester, req.CompanyID, req.OrderID)
	}
	if o.Status.Terminal() {
		return nil, errs.AlreadyTerminal("order %d/%d is %s", req.CompanyID, req.OrderID, o.Status)
	}
	company, err := account.LoadOr[*account.Company](s, e.addr.Company(req.CompanyID).Key, "company")
	if err != nil {
		return nil, err
	}
	if err := e.escrow.Verify(s, o); err != nil {
		return nil, err
	}

	refund, err := e.cancelRemainder(s, company, o, req.Now)
	if err != nil {
		return nil, err
	}
	if err := account.Save(s, at.Key, o); err != nil {
		return nil, err
	}

	res := &Result{Order: o, Refunded: refund}
	res.delta.remove = append(res.delta.remove, o.ID)
	return res, nil
}
