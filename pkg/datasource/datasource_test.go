package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/verity/pkg/errors"
)

func TestRegistryLookupUnregisteredKind(t *testing.T) {
	_, err := DefaultRegistry().Lookup("warehouse")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredKind))
	assert.Contains(t, err.Error(), "warehouse")
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Definition{Kind: "no_constructor"}))
	assert.Error(t, r.Register(Definition{New: newRuntimeDatasource}))
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	r := NewRegistry()
	def := Definition{Kind: "custom", New: newRuntimeDatasource}

	require.NoError(t, r.Register(def))
	assert.Error(t, r.Register(def))
}

func TestBuiltinKindsRegistered(t *testing.T) {
	kinds := DefaultRegistry().Kinds()
	assert.Contains(t, kinds, KindFilesystem)
	assert.Contains(t, kinds, KindRuntime)
}

func TestRuntimeDatasourceBatches(t *testing.T) {
	ds, err := DefaultRegistry().New(KindRuntime, "adhoc", map[string]interface{}{
		"batches": map[string]interface{}{"seed": []interface{}{1, 2, 3}},
	}, Environment{})
	require.NoError(t, err)

	rds := ds.(*RuntimeDatasource)
	assert.Equal(t, "adhoc", rds.Name())
	assert.Equal(t, KindRuntime, rds.Kind())

	batch, ok := rds.Batch("seed")
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, 2, 3}, batch)

	rds.AddBatch("extra", "rows")
	batch, ok = rds.Batch("extra")
	require.True(t, ok)
	assert.Equal(t, "rows", batch)

	_, ok = rds.Batch("missing")
	assert.False(t, ok)
}
