package account

import (
	"github.com/cockroachdb/errors"
	bin "github.com/gagliardetto/binary"
)

const (
	// Header: [kind:1][version:1]
	headerLen = 2
	version   = 1
)

// Record is any account body that can live in the store.
type Record interface {
	Kind() Kind
}

func Encode(r Record) ([]byte, error) {
	body, err := bin.MarshalBorsh(r)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", r.Kind())
	}
	buf := make([]byte, headerLen, headerLen+len(body))
	buf[0] = byte(r.Kind())
	buf[1] = version
	return append(buf, body...), nil
}

// Decode dispatches on the header tag; record size is never consulted.
func Decode(b []byte) (Record, error) {
	if len(b) < headerLen {
		return nil, errors.Newf("account: short record (%d bytes)", len(b))
	}
	if b[1] != version {
		return nil, errors.Newf("account: unsupported version %d", b[1])
	}

	r := newRecord(Kind(b[0]))
	if r == nil {
		return nil, errors.Newf("account: unknown kind %d", b[0])
	}
	if err := bin.UnmarshalBorsh(r, b[headerLen:]); err != nil {
		return nil, errors.Wrapf(err, "decode %s", r.Kind())
	}
	return r, nil
}

// PeekKind returns the tag without decoding the body.
func PeekKind(b []byte) Kind {
	if len(b) < headerLen {
		return KindUnknown
	}
	return Kind(b[0])
}

func newRecord(k Kind) Record {
	switch k {
	case KindPlatform:
		return &Platform{}
	case KindCompany:
		return &Company{}
	case KindMint:
		return &Mint{}
	case KindTokenAccount:
		return &TokenAccount{}
	case KindOffering:
		return &Offering{}
	case KindPortfolio:
		return &Portfolio{}
	case KindHolding:
		return &Holding{}
	case KindOrder:
		return &Order{}
	case KindEscrow:
		return &Escrow{}
	case KindOrderbook:
		return &Orderbook{}
	case KindTrade:
		return &Trade{}
	case KindDistribution:
		return &Distribution{}
	case KindTransferEscrow:
		return &TransferEscrow{}
	default:
		return nil
	}
}
