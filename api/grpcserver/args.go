package grpcserver

import (
	"math"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/types/known/structpb"

	"tokex/domain/account"
	"tokex/domain/errs"
)

// args reads typed fields out of a request struct. The first failure is
// kept in err and later reads return zero values.
type args struct {
	fields map[string]*structpb.Value
	err    error
}

func newArgs(in *structpb.Struct) *args {
	return &args{fields: in.GetFields()}
}

// done reports the first decoding failure. Handlers check it before
// touching the exchange.
func (a *args) done() error {
	return a.err
}

func (a *args) fail(format string, v ...any) {
	if a.err == nil {
		a.err = errs.Validation(format, v...)
	}
}

func (a *args) get(name string) (*structpb.Value, bool) {
	v, ok := a.fields[name]
	if !ok || v == nil {
		a.fail("missing field %q", name)
		return nil, false
	}
	return v, true
}

func (a *args) str(name string) string {
	v, ok := a.get(name)
	if !ok {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		a.fail("field %q must be a string", name)
		return ""
	}
	return s.StringValue
}

// optStr reads a string that may be absent.
func (a *args) optStr(name string) string {
	if _, ok := a.fields[name]; !ok {
		return ""
	}
	return a.str(name)
}

func (a *args) key(name string) solana.PublicKey {
	s := a.str(name)
	if a.err != nil {
		return solana.PublicKey{}
	}
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		a.fail("field %q is not a base58 key: %v", name, err)
	}
	return k
}

// keys reads a list of base58 keys.
func (a *args) keys(name string) []solana.PublicKey {
	v, ok := a.get(name)
	if !ok {
		return nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		a.fail("field %q must be a list of keys", name)
		return nil
	}
	out := make([]solana.PublicKey, 0, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			a.fail("field %q[%d] must be a string", name, i)
			return nil
		}
		k, err := solana.PublicKeyFromBase58(s.StringValue)
		if err != nil {
			a.fail("field %q[%d] is not a base58 key: %v", name, i, err)
			return nil
		}
		out = append(out, k)
	}
	return out
}

// uint accepts a whole non-negative number or its decimal string, the
// latter for values beyond float64 precision.
func (a *args) uint(name string) uint64 {
	v, ok := a.get(name)
	if !ok {
		return 0
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n != math.Trunc(n) || n > 1<<53 {
			a.fail("field %q must be a whole number in [0, 2^53]", name)
			return 0
		}
		return uint64(n)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			a.fail("field %q: %v", name, err)
		}
		return n
	default:
		a.fail("field %q must be a number", name)
		return 0
	}
}

func (a *args) optUint(name string, def uint64) uint64 {
	if _, ok := a.fields[name]; !ok {
		return def
	}
	return a.uint(name)
}

func (a *args) int(name string) int64 {
	v, ok := a.get(name)
	if !ok {
		return 0
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		a.fail("field %q must be a whole number", name)
		return 0
	}
	return int64(n.NumberValue)
}

func (a *args) side(name string) account.Side {
	switch strings.ToLower(a.str(name)) {
	case "buy":
		return account.Buy
	case "sell":
		return account.Sell
	}
	a.fail("field %q must be buy or sell", name)
	return 0
}

func (a *args) kind(name string) account.OrderKind {
	switch strings.ToLower(a.str(name)) {
	case "limit":
		return account.Limit
	case "market":
		return account.Market
	}
	a.fail("field %q must be limit or market", name)
	return 0
}
