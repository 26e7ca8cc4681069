package errs

import "github.com/cockroachdb/errors"

// Sentinels. Concrete errors wrap one of these, so both the stdlib and the
// cockroachdb errors.Is classify them through any further wrapping.
var (
	ErrValidation            = errors.New("validation error")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientHoldings  = errors.New("insufficient holdings")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrEscrowUnderflow       = errors.New("escrow underflow")
	ErrAlreadyExists         = errors.New("already exists")
	ErrAlreadyTerminal       = errors.New("already terminal")
	ErrNotFound              = errors.New("not found")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrSelfTrade             = errors.New("self trade")
	ErrPaused                = errors.New("platform paused")
	ErrOfferingClosed        = errors.New("offering closed")
)

func Validation(format string, args ...any) error {
	return classed(ErrValidation, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return classed(ErrUnauthorized, format, args...)
}

func InsufficientFunds(format string, args ...any) error {
	return classed(ErrInsufficientFunds, format, args...)
}

func InsufficientHoldings(format string, args ...any) error {
	return classed(ErrInsufficientHoldings, format, args...)
}

func InsufficientBalance(format string, args ...any) error {
	return classed(ErrInsufficientBalance, format, args...)
}

func InsufficientLiquidity(format string, args ...any) error {
	return classed(ErrInsufficientLiquidity, format, args...)
}

func EscrowUnderflow(format string, args ...any) error {
	return classed(ErrEscrowUnderflow, format, args...)
}

func AlreadyExists(format string, args ...any) error {
	return classed(ErrAlreadyExists, format, args...)
}

func AlreadyTerminal(format string, args ...any) error {
	return classed(ErrAlreadyTerminal, format, args...)
}

func NotFound(format string, args ...any) error {
	return classed(ErrNotFound, format, args...)
}

func Overflow(format string, args ...any) error {
	return classed(ErrArithmeticOverflow, format, args...)
}

func SelfTrade(format string, args ...any) error {
	return classed(ErrSelfTrade, format, args...)
}

func Paused() error {
	return errors.WithStack(ErrPaused)
}

func OfferingClosed(format string, args ...any) error {
	return classed(ErrOfferingClosed, format, args...)
}

// classed prefixes sentinel with a formatted message. The sentinel stays on
// the Unwrap chain.
func classed(sentinel error, format string, args ...any) error {
	return errors.Wrapf(sentinel, format, args...)
}

// InvariantViolation reports escrow/order drift. It is never recoverable.
func InvariantViolation(format string, args ...any) error {
	return errors.AssertionFailedf(format, args...)
}

// WrapInvariant reclassifies err, raised while settling, as a violation.
func WrapInvariant(err error, format string, args ...any) error {
	return errors.NewAssertionErrorWithWrappedErrf(err, format, args...)
}

func IsInvariantViolation(err error) bool {
	return errors.HasAssertionFailure(err)
}

// Class returns a stable label for err, used by metrics and transports.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsInvariantViolation(err):
		return "escrow_invariant_violation"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrEscrowUnderflow):
		return "escrow_underflow"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrSelfTrade):
		return "self_trade"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrOfferingClosed):
		return "offering_closed"
	default:
		return "internal"
	}
}
