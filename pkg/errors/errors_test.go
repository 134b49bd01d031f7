package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewInternalError("failed to update task", fmt.Errorf("connection reset"))
	assert.Equal(t, "INTERNAL: failed to update task: connection reset", err.Error())

	assert.Equal(t, "NOT_FOUND: task missing", NewNotFoundError("task missing").Error())
}

func TestTypeOf_WrappedChain(t *testing.T) {
	base := NewCapabilityError("resource is not wheelchair capable")
	wrapped := fmt.Errorf("manual assign: %w", base)

	assert.Equal(t, ErrorTypeCapability, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeCapability))
	assert.False(t, IsNotFound(wrapped))
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("boom")))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}
