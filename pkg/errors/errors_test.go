package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("approve: %w", InvalidTransition("transfer", "COMPLETED", "DECLINED"))

	assert.True(t, errors.Is(err, InvalidTransitionErr))
	assert.False(t, errors.Is(err, BedUnavailableErr))
	assert.Equal(t, ErrInvalidTransition, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(errors.New("boom")))
}

func TestValidationWrapsCause(t *testing.T) {
	cause := errors.New("reason is required")
	err := Validation("invalid decline", cause)

	assert.True(t, errors.Is(err, ValidationErr))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "invalid decline: reason is required", err.Error())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "BED_UNAVAILABLE", ErrBedUnavailable.String())
	assert.Equal(t, "INTERNAL", ErrorCode(42).String())
}
