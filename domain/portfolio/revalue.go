package portfolio

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/amount"
	"tokex/domain/errs"
)

// Revalue marks every holding of owner at its company's last trade price
// and rolls the results up onto the portfolio. A company that has never
// traded is carried at cost.
func (l Ledger) Revalue(s account.Store, owner solana.PublicKey, now int64) (*account.Portfolio, error) {
	p, err := l.Get(s, owner)
	if err != nil {
		return nil, err
	}
	platform, err := account.LoadOr[*account.Platform](s, l.addr.Platform().Key, "platform")
	if err != nil {
		return nil, err
	}

	var (
		value                uint64
		invested             uint64
		realized, unrealized int64
	)
	for id := uint64(0); id < platform.TotalCompanies; id++ {
		at := l.addr.Holding(owner, id)
		h, err := account.Load[*account.Holding](s, at.Key)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ob, err := account.LoadOr[*account.Orderbook](s, l.addr.Orderbook(id).Key, "orderbook")
		if err != nil {
			return nil, err
		}

		h.Mark, h.Value = ob.LastPrice, h.Invested
		if h.Mark > 0 {
			if h.Value, err = amount.Mul(h.Amount, h.Mark); err != nil {
				return nil, errors.Wrapf(err, "value holding in company %d", id)
			}
		}
		if err := account.Save(s, at.Key, h); err != nil {
			return nil, err
		}

		if value, err = amount.Add(value, h.Value); err != nil {
			return nil, err
		}
		if invested, err = amount.Add(invested, h.Invested); err != nil {
			return nil, err
		}
		if realized, err = amount.AddSigned(realized, h.Realized); err != nil {
			return nil, err
		}
	}
	if value > math.MaxInt64 || invested > math.MaxInt64 {
		return nil, errs.Overflow("portfolio of %s is too large to value", owner)
	}
	unrealized = int64(value) - int64(invested)

	p.MarketValue = value
	p.Unrealized = unrealized
	p.Realized = realized
	p.RevaluedAt = now
	return p, account.Save(s, l.addr.Portfolio(owner).Key, p)
}
