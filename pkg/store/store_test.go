package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
)

func TestRegistryBuildDefaultsToMemoryBackend(t *testing.T) {
	s, err := DefaultRegistry().Build("expectations_store", config.StoreConfig{
		Kind: config.StoreKindExpectations,
	}, RuntimeEnvironment{})
	require.NoError(t, err)

	assert.Equal(t, "expectations_store", s.Name())
	assert.Equal(t, config.StoreKindExpectations, s.Kind())
	assert.Equal(t, config.BackendKindMemory, s.Backend().Kind())
}

func TestRegistryUnregisteredKind(t *testing.T) {
	_, err := DefaultRegistry().Build("bad_store", config.StoreConfig{
		Kind:    config.StoreKindExpectations,
		Backend: map[string]interface{}{"kind": "blob_storage"},
	}, RuntimeEnvironment{})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredKind))
	assert.Contains(t, err.Error(), "blob_storage")
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	r := NewRegistry()
	factory := func(string, map[string]interface{}, RuntimeEnvironment) (Backend, error) {
		return NewMemoryBackend(), nil
	}

	require.NoError(t, r.Register("custom", factory))
	assert.Error(t, r.Register("custom", factory))
}

func TestMemoryBackendCRUD(t *testing.T) {
	b := NewMemoryBackend()

	require.NoError(t, b.Set("alpha", []byte("a")))
	require.NoError(t, b.Set("beta", []byte("b")))

	value, err := b.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), value)

	keys, err := b.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, keys)

	has, err := b.Has("beta")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, b.Delete("alpha"))
	_, err = b.Get("alpha")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.True(t, errors.IsType(b.Delete("alpha"), errors.ErrorTypeNotFound))
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	b := NewMemoryBackend()

	original := []byte("secret")
	require.NoError(t, b.Set("k", original))
	original[0] = 'X'

	value, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), value)
}
