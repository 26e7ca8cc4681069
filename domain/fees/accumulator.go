package fees

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/escrow"
)

// Accumulator owns the platform-wide trade counters and the fee account.
// It fails only when the underlying transfer or arithmetic fails.
type Accumulator struct {
	addr   account.Deriver
	escrow escrow.Manager
}

func NewAccumulator(d account.Deriver, m escrow.Manager) Accumulator {
	return Accumulator{addr: d, escrow: m}
}

// Account is the owner of the platform's payment token account.
func (a Accumulator) Account() solana.PublicKey {
	return a.addr.Platform().Key
}

// Quote splits notional into the platform fee and the seller's proceeds.
func (a Accumulator) Quote(p *account.Platform, notional uint64) (fee, proceeds uint64, err error) {
	if fee, err = amount.Fee(notional, p.FeeBps); err != nil {
		return 0, 0, err
	}
	return fee, notional - fee, nil
}

// Collect moves fee out of the buy-side escrow into the fee account.
func (a Accumulator) Collect(s account.Store, buy *account.Order, fee uint64) error {
	if fee == 0 {
		return nil
	}
	_, err := a.escrow.ReleasePartial(s, buy, fee, a.Account())
	return err
}

// Record books one executed match and returns its trade id.
func (a Accumulator) Record(s account.Store, companyID, qty, price, notional, fee uint64) (uint64, error) {
	pa := a.addr.Platform()
	p, err := account.LoadOr[*account.Platform](s, pa.Key, "platform")
	if err != nil {
		return 0, err
	}
	if p.TotalTrades, err = amount.Add(p.TotalTrades, 1); err != nil {
		return 0, err
	}
	if p.TotalVolume, err = amount.Add(p.TotalVolume, notional); err != nil {
		return 0, err
	}
	if p.TotalFees, err = amount.Add(p.TotalFees, fee); err != nil {
		return 0, err
	}
	if err := account.Save(s, pa.Key, p); err != nil {
		return 0, err
	}

	oa := a.addr.Orderbook(companyID)
	ob, err := account.LoadOr[*account.Orderbook](s, oa.Key, "orderbook")
	if err != nil {
		return 0, err
	}
	if ob.Volume, err = amount.Add(ob.Volume, qty); err != nil {
		return 0, err
	}
	if ob.Notional, err = amount.Add(ob.Notional, notional); err != nil {
		return 0, err
	}
	ob.LastPrice = price
	if err := account.Save(s, oa.Key, ob); err != nil {
		return 0, err
	}
	return p.TotalTrades, nil
}
