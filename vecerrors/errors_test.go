package vecerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDimensionMismatchMessageAndFields(t *testing.T) {
	err := NewDimensionMismatch(128, 64)
	assert.Equal(t, "dimension mismatch: expected 128, got 64", err.Error())
	assert.Equal(t, 128, err.Expected)
	assert.Equal(t, 64, err.Actual)
}

func TestBadInputMessage(t *testing.T) {
	err := NewBadInput("non-finite element")
	assert.Equal(t, "bad input: non-finite element", err.Error())
}

func TestOverflowMessage(t *testing.T) {
	err := NewOverflow("add")
	assert.Equal(t, "overflow in add", err.Error())
}

func TestUnsupportedMessage(t *testing.T) {
	err := NewUnsupported("L1 distance does not support indexing")
	assert.Equal(t, "unsupported: L1 distance does not support indexing", err.Error())
}

func TestInterruptedTakesNoArgumentsAndUnwrapsToNil(t *testing.T) {
	err := NewInterrupted()
	assert.Equal(t, "interrupted", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestResourceMessage(t *testing.T) {
	err := NewResource("maintenance_work_mem exceeded")
	assert.Equal(t, "resource exhausted: maintenance_work_mem exceeded", err.Error())
}

func TestErrorsAreDistinguishableViaAs(t *testing.T) {
	var target *DimensionMismatch
	err := error(NewDimensionMismatch(3, 4))
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, 3, target.Expected)
}
