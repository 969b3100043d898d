package datacontext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/secrets"
	"github.com/verityhq/verity/pkg/store"
	"github.com/verityhq/verity/pkg/testutil"
)

func TestGetStoreUnconfiguredName(t *testing.T) {
	ctx := newTestContext(t, memoryStores(), t.TempDir())

	_, err := ctx.GetStore("no_such_store")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStoreConfig))
}

func TestGetStoreCachesInstances(t *testing.T) {
	ctx := newTestContext(t, memoryStores(), t.TempDir())

	first, err := ctx.GetStore("expectations_store")
	require.NoError(t, err)
	second, err := ctx.GetStore("expectations_store")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRoleStoreAccessors(t *testing.T) {
	ctx := newTestContext(t, memoryStores(), t.TempDir())

	s, err := ctx.ExpectationsStore()
	require.NoError(t, err)
	assert.Equal(t, "expectations_store", s.Name())

	s, err = ctx.ValidationsStore()
	require.NoError(t, err)
	assert.Equal(t, "validations_store", s.Name())

	s, err = ctx.EvaluationParameterStore()
	require.NoError(t, err)
	assert.Equal(t, "evaluation_parameter_store", s.Name())
}

func TestRoleStoreMissingPointer(t *testing.T) {
	cfg := memoryStores()
	cfg.ValidationsStoreName = ""

	ctx := newTestContext(t, cfg, t.TempDir())

	_, err := ctx.ValidationsStore()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfigKey))
	assert.Contains(t, err.Error(), "validations_store_name")
}

func TestCheckpointStoreNameFallback(t *testing.T) {
	t.Run("configured pointer wins", func(t *testing.T) {
		cfg := memoryStores()
		cfg.CheckpointStoreName = "my_checkpoints"

		ctx := newTestContext(t, cfg, t.TempDir())
		name, err := ctx.CheckpointStoreName()
		require.NoError(t, err)
		assert.Equal(t, "my_checkpoints", name)
	})

	t.Run("conventional directory implies the default name", func(t *testing.T) {
		root := t.TempDir()
		testutil.MkdirAll(t, root, config.DefaultCheckpointsDirectory)

		ctx := newTestContext(t, memoryStores(), root)
		name, err := ctx.CheckpointStoreName()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultCheckpointStoreName, name)
	})

	t.Run("missing pointer and directory fails with remediation", func(t *testing.T) {
		ctx := newTestContext(t, memoryStores(), t.TempDir())

		_, err := ctx.CheckpointStoreName()
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfigKey))
		assert.Contains(t, err.Error(), "checkpoint_store_name")
		assert.Contains(t, err.Error(), config.DefaultCheckpointsDirectory)
		assert.Contains(t, err.Error(), "config_version")
	})
}

func TestCheckpointStoreBuiltOnTheFly(t *testing.T) {
	root := t.TempDir()
	testutil.MkdirAll(t, root, config.DefaultCheckpointsDirectory)

	ctx := newTestContext(t, memoryStores(), root)

	s, err := ctx.CheckpointStore()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCheckpointStoreName, s.Name())
	assert.Equal(t, config.StoreKindCheckpoint, s.Kind())

	require.NoError(t, s.Set("nightly", []byte(`{}`)))
	keys, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly"}, keys)
}

func TestProfilerStoreNameFallback(t *testing.T) {
	root := t.TempDir()
	testutil.MkdirAll(t, root, config.DefaultProfilersDirectory)

	ctx := newTestContext(t, memoryStores(), root)
	name, err := ctx.ProfilerStoreName()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProfilerStoreName, name)
}

func TestListStoresMasksSecretsUnconditionally(t *testing.T) {
	cfg := memoryStores()
	// An inactive store with credentials; masking must not depend on the
	// store being referenced by a role pointer.
	cfg.Stores["warehouse_store"] = config.StoreConfig{
		Kind: config.StoreKindValidations,
		Backend: map[string]interface{}{
			"kind":     config.BackendKindMemory,
			"password": "hunter2",
			"host":     "db.internal",
		},
	}

	ctx := newTestContext(t, cfg, t.TempDir())

	var warehouse map[string]interface{}
	for _, snapshot := range ctx.ListStores() {
		if snapshot["name"] == "warehouse_store" {
			warehouse = snapshot
		}
	}
	require.NotNil(t, warehouse)

	backend := warehouse["backend"].(map[string]interface{})
	assert.Equal(t, secrets.Mask, backend["password"])
	assert.Equal(t, "db.internal", backend["host"])

	// The snapshot is a copy; the owned config still has the raw secret.
	assert.Equal(t, "hunter2", ctx.Config().Stores["warehouse_store"].Backend["password"])
}

func TestListActiveStores(t *testing.T) {
	cfg := &config.ProjectConfig{
		ConfigVersion: config.CurrentConfigVersion,
		Stores: map[string]config.StoreConfig{
			"expectations_store": {Kind: config.StoreKindExpectations},
			"spare_store":        {Kind: config.StoreKindValidations},
		},
		ExpectationsStoreName: "expectations_store",
	}

	ctx := newTestContext(t, cfg, t.TempDir())

	assert.Len(t, ctx.ListStores(), 2)

	active := ctx.ListActiveStores()
	require.Len(t, active, 1)
	assert.Equal(t, "expectations_store", active[0]["name"])
}

func TestInactiveStoreBackendIDSuppressed(t *testing.T) {
	root := t.TempDir()
	cfg := memoryStores()
	cfg.Stores["spare_store"] = config.StoreConfig{
		Kind: config.StoreKindValidations,
		Backend: map[string]interface{}{
			"kind":           config.BackendKindFilesystem,
			"base_directory": "spare",
		},
	}

	ctx := newTestContext(t, cfg, root)

	s, err := ctx.GetStore("spare_store")
	require.NoError(t, err)
	backend := s.Backend().(store.PersistentBackend)
	assert.Empty(t, backend.BackendID(false))

	_, err = os.Stat(filepath.Join(root, "spare", ".verity_backend_id"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreConfigSubstitutedBeforeBuild(t *testing.T) {
	root := t.TempDir()
	cfg := memoryStores()
	cfg.Stores["expectations_store"] = config.StoreConfig{
		Kind: config.StoreKindExpectations,
		Backend: map[string]interface{}{
			"kind":           config.BackendKindFilesystem,
			"base_directory": "${exp_dir}",
		},
	}

	opts := testOptions(t, root)
	opts.RuntimeOverrides = map[string]string{"exp_dir": "resolved_expectations"}
	ctx, err := New(cfg, opts)
	require.NoError(t, err)

	s, err := ctx.ExpectationsStore()
	require.NoError(t, err)
	fs := s.Backend().(*store.FilesystemBackend)
	assert.Equal(t, filepath.Join(root, "resolved_expectations"), fs.BaseDirectory())
}
