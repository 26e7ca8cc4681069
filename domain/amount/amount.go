package amount

import (
	"math/bits"

	"tokex/domain/errs"
)

// BasisPoints is the fee denominator.
const BasisPoints = 10_000

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errs.Overflow("%d + %d overflows", a, b)
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errs.Overflow("%d - %d underflows", a, b)
	}
	return diff, nil
}

// AddSigned is Add for signed totals such as realized pnl.
func AddSigned(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, errs.Overflow("%d + %d overflows", a, b)
	}
	return sum, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errs.Overflow("%d * %d overflows", a, b)
	}
	return lo, nil
}

// MulDiv returns floor(a*b/c) with a 128-bit intermediate.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, errs.Overflow("division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, errs.Overflow("%d * %d / %d overflows", a, b, c)
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// Fee is the platform cut of notional at rate bps, rounded down.
func Fee(notional uint64, bps uint16) (uint64, error) {
	return MulDiv(notional, uint64(bps), BasisPoints)
}
