package entry

import "time"

// RecordType names the instruction a journal record carries.
type RecordType uint8

const (
	RecordInitializePlatform RecordType = iota + 1
	RecordUpdatePlatformFee
	RecordSetPaused
	RecordRegisterCompany
	RecordVerifyCompany
	RecordCreateOffering
	RecordParticipateInOffering
	RecordCreatePortfolio
	RecordDeposit
	RecordPlaceOrder
	RecordCancelOrder
	RecordExecuteTrade
	RecordAdminCreateCompany
	RecordDistributeTokens
	RecordCreateEscrow
	RecordReleaseEscrow
	RecordCancelEscrow
	RecordUpdatePortfolio
)

var recordNames = map[RecordType]string{
	RecordInitializePlatform:    "initialize_platform",
	RecordUpdatePlatformFee:     "update_platform_fee",
	RecordSetPaused:             "set_paused",
	RecordRegisterCompany:       "register_company",
	RecordVerifyCompany:         "verify_company",
	RecordCreateOffering:        "create_token_offering",
	RecordParticipateInOffering: "participate_in_offering",
	RecordCreatePortfolio:       "create_portfolio",
	RecordDeposit:               "deposit",
	RecordPlaceOrder:            "place_order",
	RecordCancelOrder:           "cancel_order",
	RecordExecuteTrade:          "execute_trade",
	RecordAdminCreateCompany:    "admin_create_company",
	RecordDistributeTokens:      "distribute_tokens",
	RecordCreateEscrow:          "create_escrow",
	RecordReleaseEscrow:         "release_escrow",
	RecordCancelEscrow:          "cancel_escrow",
	RecordUpdatePortfolio:       "update_portfolio",
}

func (t RecordType) String() string {
	if n, ok := recordNames[t]; ok {
		return n
	}
	return "unknown"
}

// Record is one accepted instruction. Data is its msgpack encoding.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
