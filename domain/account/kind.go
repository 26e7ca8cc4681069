package account

type Kind uint8

const (
	KindUnknown Kind = iota
	KindPlatform
	KindCompany
	KindMint
	KindTokenAccount
	KindOffering
	KindPortfolio
	KindHolding
	KindOrder
	KindEscrow
	KindOrderbook
	KindTrade
	KindDistribution
	KindTransferEscrow
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindCompany:
		return "company"
	case KindMint:
		return "mint"
	case KindTokenAccount:
		return "token_account"
	case KindOffering:
		return "offering"
	case KindPortfolio:
		return "portfolio"
	case KindHolding:
		return "holding"
	case KindOrder:
		return "order"
	case KindEscrow:
		return "escrow"
	case KindOrderbook:
		return "orderbook"
	case KindTrade:
		return "trade"
	case KindDistribution:
		return "distribution"
	case KindTransferEscrow:
		return "transfer_escrow"
	default:
		return "unknown"
	}
}
