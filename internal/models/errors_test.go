package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalClassification(t *testing.T) {
	base := errors.New("unsupported input format")

	assert.False(t, IsFatal(base))
	assert.True(t, IsFatal(Fatal(base)))
	assert.Nil(t, Fatal(nil))

	// Fatal-ness survives wrapping with context.
	wrapped := fmt.Errorf("chunk 2: %w", Fatal(base))
	assert.True(t, IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, base)
}
