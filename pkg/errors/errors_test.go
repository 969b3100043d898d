package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeNotFound, "datasource missing")

	assert.Equal(t, ErrorTypeNotFound, err.Type)
	assert.Equal(t, "not_found: datasource missing", err.Error())
	assert.NotEmpty(t, err.Stack)
	assert.Nil(t, err.Cause)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeStoreConfig, "store %q has no configuration", "events")
	assert.Equal(t, `store_config: store "events" has no configuration`, err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wraps plain error", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Wrap(cause, ErrorTypeDatasourceInit, "datasource failed to initialize")

		require.NotNil(t, err)
		assert.Equal(t, ErrorTypeDatasourceInit, err.Type)
		assert.Equal(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("nil error wraps to nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
	})

	t.Run("preserves stack of structured cause", func(t *testing.T) {
		inner := New(ErrorTypeUnregisteredKind, "kind not registered")
		outer := Wrap(inner, ErrorTypeDatasourceInit, "datasource failed to initialize")

		assert.Equal(t, inner.Stack, outer.Stack)
		assert.Equal(t, inner, outer.Unwrap())
	})
}

func TestIsType(t *testing.T) {
	err := Wrap(New(ErrorTypeUnregisteredKind, "unknown kind"), ErrorTypeDatasourceInit, "init failed")

	// IsType matches the outermost structured error.
	assert.True(t, IsType(err, ErrorTypeDatasourceInit))
	assert.False(t, IsType(err, ErrorTypeUnregisteredKind))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestRootType(t *testing.T) {
	inner := New(ErrorTypeUnregisteredKind, "unknown kind")
	outer := Wrap(inner, ErrorTypeDatasourceInit, "init failed")

	assert.Equal(t, ErrorTypeUnregisteredKind, RootType(outer))
	assert.Equal(t, ErrorTypeDatasourceInit, RootType(New(ErrorTypeDatasourceInit, "direct")))
	assert.Equal(t, ErrorType(""), RootType(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeDatasourceInit, "init failed").
		WithDetail("datasource", "warehouse").
		WithDetail("attempt", 1)

	assert.Equal(t, "warehouse", err.Details["datasource"])
	assert.Equal(t, 1, err.Details["attempt"])
}

func TestErrorsAsThroughChain(t *testing.T) {
	inner := New(ErrorTypeNotFound, "no persisted config")
	wrapped := fmt.Errorf("delete failed: %w", inner)

	var e *Error
	require.True(t, stderrors.As(wrapped, &e))
	assert.Equal(t, ErrorTypeNotFound, e.Type)
}
