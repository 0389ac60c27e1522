package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(ErrInvalidSize, "size must be positive")
	assert.Equal(t, ErrInvalidSize, err.Code)
	assert.Contains(t, err.Error(), "size must be positive")
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(ErrInvalidPrice, "price %d is not positive", -5)
	assert.Contains(t, err.Error(), "price -5 is not positive")
}

func TestWrapPreservesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrPersistence, "write trade log")
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrPersistence, "should not happen"))
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	base := New(ErrUserNotFound, "unknown username")
	wrapped := fmt.Errorf("login: %w", base)

	assert.True(t, Is(wrapped, ErrUserNotFound))
	assert.False(t, Is(wrapped, ErrBadCredentials))
}

func TestIsFalseForNonCrossError(t *testing.T) {
	assert.False(t, Is(errors.New("plain error"), ErrUserNotFound))
}

func TestCodeExtractsErrorCode(t *testing.T) {
	err := New(ErrRateLimited, "too many orders")
	assert.Equal(t, ErrRateLimited, Code(err))
	assert.Equal(t, ErrorCode(""), Code(errors.New("plain")))
}

func TestIsRetryableClassifiesInfrastructureErrors(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrPersistence, "db down")))
	assert.True(t, IsRetryable(New(ErrUnavailable, "nats down")))
	assert.False(t, IsRetryable(New(ErrInvalidSize, "bad input")))
}
