package account

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID namespaces every derived address.
const DefaultProgramID = "FATJAGZjRCzP6uYLCpUdbgE5fUZxjrzPCU6dagp6iH7z"

// Address is a derived account key plus the bump that made it fall off the curve.
type Address struct {
	Key  solana.PublicKey
	Bump uint8
}

func (a Address) String() string { return a.Key.String() }

// Deriver computes program-derived addresses. Every address is a pure
// function of a namespace tag and the identifying fields.
type Deriver struct {
	program solana.PublicKey
}

func NewDeriver(program solana.PublicKey) Deriver {
	return Deriver{program: program}
}

func (d Deriver) Program() solana.PublicKey { return d.program }

func (d Deriver) Platform() Address {
	return d.derive([]byte("platform"))
}

func (d Deriver) PaymentMint() Address {
	return d.derive([]byte("payment_mint"))
}

func (d Deriver) Company(companyID uint64) Address {
	return d.derive([]byte("company"), le(companyID))
}

func (d Deriver) CompanyMint(companyID uint64) Address {
	return d.derive([]byte("token_mint"), le(companyID))
}

func (d Deriver) Offering(offeringID uint64) Address {
	return d.derive([]byte("offering"), le(offeringID))
}

func (d Deriver) Portfolio(owner solana.PublicKey) Address {
	return d.derive([]byte("portfolio"), owner.Bytes())
}

func (d Deriver) Holding(owner solana.PublicKey, companyID uint64) Address {
	return d.derive([]byte("holding"), owner.Bytes(), le(companyID))
}

// Order ids are assigned per company, so the company id is part of the seed.
func (d Deriver) Order(companyID, orderID uint64) Address {
	return d.derive([]byte("order"), le(companyID), le(orderID))
}

func (d Deriver) Escrow(companyID, orderID uint64) Address {
	return d.derive([]byte("order_escrow"), le(companyID), le(orderID))
}

func (d Deriver) Orderbook(companyID uint64) Address {
	return d.derive([]byte("orderbook"), le(companyID))
}

func (d Deriver) Trade(tradeID uint64) Address {
	return d.derive([]byte("trade"), le(tradeID))
}

func (d Deriver) Distribution(id uint64) Address {
	return d.derive([]byte("distribution"), le(id))
}

// TransferEscrow addresses a payer-to-recipient escrow, apart from the
// per-order escrows.
func (d Deriver) TransferEscrow(id uint64) Address {
	return d.derive([]byte("escrow"), le(id))
}

func (d Deriver) TokenAccount(mint, owner solana.PublicKey) Address {
	return d.derive([]byte("token_account"), mint.Bytes(), owner.Bytes())
}

func (d Deriver) derive(seeds ...[]byte) Address {
	key, bump, err := solana.FindProgramAddress(seeds, d.program)
	if err != nil {
		// Only reachable if all 256 bumps land on the curve.
		panic(fmt.Sprintf("account: derive %q: %v", seeds[0], err))
	}
	return Address{Key: key, Bump: bump}
}

func le(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
