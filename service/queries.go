package service

import (
	"github.com/gagliardetto/solana-go"

	"tokex/domain/account"
	"tokex/domain/orderbook"
	"tokex/infra/store"
)

// view runs fn over a read snapshot of the ledger.
func view[T any](s *ExchangeService, fn func(tx *store.Tx) (T, error)) (T, error) {
	var out T
	err := s.store.View(func(tx *store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func (s *ExchangeService) GetPlatform() (*account.Platform, error) {
	return view(s, func(tx *store.Tx) (*account.Platform, error) {
		return s.registry.Platform(tx)
	})
}

func (s *ExchangeService) GetCompany(id uint64) (*account.Company, error) {
	return view(s, func(tx *store.Tx) (*account.Company, error) {
		return s.registry.Company(tx, id)
	})
}

func (s *ExchangeService) GetOffering(id uint64) (*account.Offering, error) {
	return view(s, func(tx *store.Tx) (*account.Offering, error) {
		return s.registry.Offering(tx, id)
	})
}

func (s *ExchangeService) GetPortfolio(owner solana.PublicKey) (*account.Portfolio, error) {
	return view(s, func(tx *store.Tx) (*account.Portfolio, error) {
		return s.portfolio.Get(tx, owner)
	})
}

// GetHolding returns owner's position in a company. No position reads as zero.
func (s *ExchangeService) GetHolding(owner solana.PublicKey, companyID uint64) (*account.Holding, error) {
	return view(s, func(tx *store.Tx) (*account.Holding, error) {
		return s.portfolio.Holding(tx, owner, companyID)
	})
}

func (s *ExchangeService) GetOrder(companyID, orderID uint64) (*account.Order, error) {
	return view(s, func(tx *store.Tx) (*account.Order, error) {
		return account.LoadOr[*account.Order](tx, s.addr.Order(companyID, orderID).Key, "order")
	})
}

func (s *ExchangeService) GetEscrow(companyID, orderID uint64) (*account.Escrow, error) {
	return view(s, func(tx *store.Tx) (*account.Escrow, error) {
		return s.escrow.Get(tx, companyID, orderID)
	})
}

func (s *ExchangeService) GetTransferEscrow(id uint64) (*account.TransferEscrow, error) {
	return view(s, func(tx *store.Tx) (*account.TransferEscrow, error) {
		return s.transfers.Get(tx, id)
	})
}

func (s *ExchangeService) GetDistribution(id uint64) (*account.Distribution, error) {
	return view(s, func(tx *store.Tx) (*account.Distribution, error) {
		return s.registry.Distribution(tx, id)
	})
}

func (s *ExchangeService) GetOrderbook(companyID uint64) (*account.Orderbook, error) {
	return view(s, func(tx *store.Tx) (*account.Orderbook, error) {
		return account.LoadOr[*account.Orderbook](tx, s.addr.Orderbook(companyID).Key, "orderbook")
	})
}

func (s *ExchangeService) GetTrade(id uint64) (*account.Trade, error) {
	return view(s, func(tx *store.Tx) (*account.Trade, error) {
		return account.LoadOr[*account.Trade](tx, s.addr.Trade(id).Key, "trade")
	})
}

// Balance reads owner's token balance of mint. A missing account is zero.
func (s *ExchangeService) Balance(owner, mint solana.PublicKey) (uint64, error) {
	return view(s, func(tx *store.Tx) (uint64, error) {
		return s.tokens.Balance(tx, mint, owner)
	})
}

// CashBalance reads owner's payment asset balance.
func (s *ExchangeService) CashBalance(owner solana.PublicKey) (uint64, error) {
	return s.Balance(owner, s.addr.PaymentMint().Key)
}

// MarketDepth aggregates the top levels of a company's book. levels <= 0
// returns every level.
func (s *ExchangeService) MarketDepth(companyID uint64, levels int) (orderbook.Depth, error) {
	if _, err := s.GetCompany(companyID); err != nil {
		return orderbook.Depth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books.Lookup(companyID)
	if !ok {
		return orderbook.Depth{CompanyID: companyID}, nil
	}
	return b.Depth(levels), nil
}

// BestPrices reports the best bid and ask; ok is false for an empty side.
func (s *ExchangeService) BestPrices(companyID uint64) (bid uint64, bidOK bool, ask uint64, askOK bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books.Lookup(companyID)
	if !ok {
		return 0, false, 0, false
	}
	bid, bidOK = b.BestBid()
	ask, askOK = b.BestAsk()
	return bid, bidOK, ask, askOK
}
