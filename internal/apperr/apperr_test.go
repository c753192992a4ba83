package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("apply delta: %w", New(CodeDuplicate, "reason already consumed"))

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, CodeDuplicate, CodeOf(err))
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Wrap(CodeInvalidAction, "bad payload", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, "bad payload: boom", err.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
