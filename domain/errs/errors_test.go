package errs

import (
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		class    string
	}{
		{Validation("qty %d", 0), ErrValidation, "validation"},
		{Unauthorized("nope"), ErrUnauthorized, "unauthorized"},
		{InsufficientFunds("short"), ErrInsufficientFunds, "insufficient_funds"},
		{InsufficientHoldings("short"), ErrInsufficientHoldings, "insufficient_holdings"},
		{InsufficientBalance("short"), ErrInsufficientBalance, "insufficient_balance"},
		{InsufficientLiquidity("thin"), ErrInsufficientLiquidity, "insufficient_liquidity"},
		{EscrowUnderflow("under"), ErrEscrowUnderflow, "escrow_underflow"},
		{AlreadyExists("dup"), ErrAlreadyExists, "already_exists"},
		{AlreadyTerminal("done"), ErrAlreadyTerminal, "already_terminal"},
		{NotFound("company %d not found", 9), ErrNotFound, "not_found"},
		{Overflow("big"), ErrArithmeticOverflow, "arithmetic_overflow"},
		{SelfTrade("me"), ErrSelfTrade, "self_trade"},
		{Paused(), ErrPaused, "paused"},
		{OfferingClosed("late"), ErrOfferingClosed, "offering_closed"},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			wrapped := errors.Wrap(tt.err, "place order")
			assert.True(t, stderrors.Is(wrapped, tt.sentinel), "stdlib errors.Is")
			assert.True(t, errors.Is(wrapped, tt.sentinel), "cockroachdb errors.Is")
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.class, Class(wrapped))
		})
	}
}

func TestMessageLeadsWithDetail(t *testing.T) {
	err := NotFound("company %d not found", 9)
	assert.Equal(t, "company 9 not found: not found", err.Error())
	assert.Equal(t, "platform paused", Paused().Error())
}

func TestInvariantViolationOutranksCause(t *testing.T) {
	err := WrapInvariant(EscrowUnderflow("escrow 3 short by 1"), "settle order %d", 3)
	assert.True(t, IsInvariantViolation(err))
	assert.Equal(t, "escrow_invariant_violation", Class(err))
	assert.False(t, IsInvariantViolation(Validation("x")))
}
