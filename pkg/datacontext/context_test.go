package datacontext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/testutil"
)

// memoryStores returns a minimal project config with memory-backed role
// stores for the three always-present roles.
func memoryStores() *config.ProjectConfig {
	return &config.ProjectConfig{
		ConfigVersion: config.CurrentConfigVersion,
		Stores: map[string]config.StoreConfig{
			"expectations_store":         {Kind: config.StoreKindExpectations},
			"validations_store":          {Kind: config.StoreKindValidations},
			"evaluation_parameter_store": {Kind: config.StoreKindEvaluationParameter},
		},
		ExpectationsStoreName:        "expectations_store",
		ValidationsStoreName:         "validations_store",
		EvaluationParameterStoreName: "evaluation_parameter_store",
	}
}

// testOptions isolates a context from the machine's global config files.
func testOptions(t *testing.T, root string) Options {
	t.Helper()
	return Options{
		RootDirectory:     root,
		Logger:            testutil.Logger(t),
		GlobalConfigPaths: []string{filepath.Join(root, "nonexistent.conf")},
	}
}

func newTestContext(t *testing.T, cfg *config.ProjectConfig, root string) *Context {
	t.Helper()
	ctx, err := New(cfg, testOptions(t, root))
	require.NoError(t, err)
	return ctx
}

func TestNewRequiresValidConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	_, err = New(&config.ProjectConfig{}, testOptions(t, t.TempDir()))
	assert.Error(t, err)
}

func TestNewDoesNotMutateCallerConfig(t *testing.T) {
	t.Setenv(EnvUsageStats, "false")

	cfg := memoryStores()
	ctx := newTestContext(t, cfg, t.TempDir())

	// The opt-out landed on the context's copy, not the caller's object.
	assert.True(t, cfg.UsageStatistics.IsEnabled())
	assert.Empty(t, cfg.UsageStatistics.ContextID)
	assert.False(t, ctx.Config().UsageStatistics.IsEnabled())
}

func TestContextIDGeneratedWhenNothingConfigured(t *testing.T) {
	ctx := newTestContext(t, memoryStores(), t.TempDir())

	require.NotEmpty(t, ctx.ContextID())
	assert.NoError(t, config.ValidateContextID(ctx.ContextID()))

	// The derived id is written back so later consumers see it.
	assert.Equal(t, ctx.ContextID(), ctx.Config().UsageStatistics.ContextID)
}

func TestContextIDStableAcrossRestarts(t *testing.T) {
	root := t.TempDir()
	cfg := memoryStores()
	cfg.Stores["expectations_store"] = config.StoreConfig{
		Kind: config.StoreKindExpectations,
		Backend: map[string]interface{}{
			"kind":           config.BackendKindFilesystem,
			"base_directory": "expectations",
		},
	}

	first := newTestContext(t, cfg.Clone(), root)
	second := newTestContext(t, cfg.Clone(), root)

	require.NotEmpty(t, first.ContextID())
	assert.Equal(t, first.ContextID(), second.ContextID())
}

func TestContextIDSeededFromConfiguredID(t *testing.T) {
	seed := "3f2c9a44-91c0-4c1e-9e60-1535a0a04f3c"
	root := t.TempDir()
	cfg := memoryStores()
	cfg.Stores["expectations_store"] = config.StoreConfig{
		Kind: config.StoreKindExpectations,
		Backend: map[string]interface{}{
			"kind":           config.BackendKindFilesystem,
			"base_directory": "expectations",
		},
	}
	cfg.UsageStatistics.ContextID = seed

	// A fresh persistent backend seeds its id from the configured one, so
	// the two sources of identity agree from the start.
	ctx := newTestContext(t, cfg, root)
	assert.Equal(t, seed, ctx.ContextID())
}

func TestUsageStatisticsHandlerLifecycle(t *testing.T) {
	t.Run("enabled by default", func(t *testing.T) {
		ctx := newTestContext(t, memoryStores(), t.TempDir())
		require.NotNil(t, ctx.UsageStatistics())
		assert.Equal(t, ctx.ContextID(), ctx.UsageStatistics().ContextID())
	})

	t.Run("disabled yields nil handler", func(t *testing.T) {
		disabled := false
		cfg := memoryStores()
		cfg.UsageStatistics.Enabled = &disabled

		ctx := newTestContext(t, cfg, t.TempDir())
		assert.Nil(t, ctx.UsageStatistics())
	})
}

func TestInstanceID(t *testing.T) {
	t.Run("generated per context", func(t *testing.T) {
		ctx := newTestContext(t, memoryStores(), t.TempDir())
		assert.NoError(t, config.ValidateContextID(ctx.InstanceID()))
	})

	t.Run("pinned by config variable", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteFile(t, root, "uncommitted/config_variables.yml", "instance_id: pinned-instance\n")

		cfg := memoryStores()
		cfg.ConfigVariablesFilePath = config.DefaultConfigVariablesFilePath

		ctx := newTestContext(t, cfg, root)
		assert.Equal(t, "pinned-instance", ctx.InstanceID())
	})
}

func TestPluginsDirectory(t *testing.T) {
	root := t.TempDir()

	cfg := memoryStores()
	ctx := newTestContext(t, cfg, root)
	assert.Equal(t, filepath.Join(root, config.DefaultPluginsDirectory), ctx.PluginsDirectory())

	cfg = memoryStores()
	cfg.PluginsDirectory = "/abs/plugins"
	ctx = newTestContext(t, cfg, root)
	assert.Equal(t, "/abs/plugins", ctx.PluginsDirectory())
}
