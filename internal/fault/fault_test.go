package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("DirectFault", func(t *testing.T) {
		err := New(KindValidation, "cart is empty")
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("WrappedFault", func(t *testing.T) {
		inner := Wrap(KindGatewayUnavailable, "gateway timeout", errors.New("context deadline exceeded"))
		outer := fmt.Errorf("checkout: %w", inner)
		assert.Equal(t, KindGatewayUnavailable, KindOf(outer))
		assert.True(t, Retryable(outer))
	})

	t.Run("PlainError", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
		assert.False(t, Retryable(errors.New("boom")))
	})
}

func TestFault_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	f := Wrap(KindStorage, "insert order", cause)

	assert.True(t, errors.Is(f, cause))
	assert.Contains(t, f.Error(), "insert order")
	assert.Contains(t, f.Error(), "connection refused")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "signature_invalid", KindSignatureInvalid.String())
	assert.Equal(t, "payment_failed", KindPaymentFailed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
