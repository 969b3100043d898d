package datacontext

import (
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/secrets"
	"github.com/verityhq/verity/pkg/store"
)

// GetStore returns the store configured under name, building and caching it
// on first use. Names with no matching configuration fail with a
// store-configuration error.
func (c *Context) GetStore(name string) (*store.Store, error) {
	if cached, ok := c.stores[name]; ok {
		return cached, nil
	}

	cfg, ok := c.cfg.Stores[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeStoreConfig,
			"store %q is not configured in this project", name)
	}
	return c.buildStore(name, cfg)
}

// buildStore constructs a store from its declarative config and caches it.
// The backend sub-config is substituted and then annotated before building:
// the expectations-role store receives the configured context id as a backend
// initialization hint so a fresh persistent backend seeds its id consistently
// with the context, and stores not referenced by any role pointer have
// backend id warnings suppressed.
func (c *Context) buildStore(name string, cfg config.StoreConfig) (*store.Store, error) {
	substituted, _ := c.SubstituteConfig(cfg.Backend).(map[string]interface{})

	backendCfg := make(map[string]interface{}, len(substituted)+2)
	for key, value := range substituted {
		backendCfg[key] = value
	}

	if name == c.cfg.ExpectationsStoreName {
		if hint := c.configuredContextID(); hint != "" {
			backendCfg["manually_initialize_store_backend_id"] = hint
		}
	}
	if !c.activeStoreNames()[name] {
		backendCfg["suppress_store_backend_id"] = true
	}

	built, err := c.storeRegistry.Build(name, config.StoreConfig{Kind: cfg.Kind, Backend: backendCfg}, store.RuntimeEnvironment{
		RootDirectory: c.rootDir,
		Concurrency:   c.cfg.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	c.stores[name] = built
	return built, nil
}

// configuredContextID returns the substituted context id from the usage
// statistics section, which may be empty before identity derivation runs.
func (c *Context) configuredContextID() string {
	return c.substituteString(c.cfg.UsageStatistics.ContextID)
}

// activeStoreNames returns the set of store names referenced by a role
// pointer. Checkpoint and profiler roles participate only when they resolve;
// an unconfigured role with no conventional directory is simply not active.
func (c *Context) activeStoreNames() map[string]bool {
	active := make(map[string]bool, 5)
	for _, name := range []string{
		c.cfg.ExpectationsStoreName,
		c.cfg.ValidationsStoreName,
		c.cfg.EvaluationParameterStoreName,
	} {
		if name != "" {
			active[name] = true
		}
	}
	if name, err := c.CheckpointStoreName(); err == nil {
		active[name] = true
	}
	if name, err := c.ProfilerStoreName(); err == nil {
		active[name] = true
	}
	return active
}

// ExpectationsStore returns the store backing the expectations role.
func (c *Context) ExpectationsStore() (*store.Store, error) {
	return c.roleStore(c.cfg.ExpectationsStoreName, "expectations_store_name")
}

// ValidationsStore returns the store backing the validations role.
func (c *Context) ValidationsStore() (*store.Store, error) {
	return c.roleStore(c.cfg.ValidationsStoreName, "validations_store_name")
}

// EvaluationParameterStore returns the store backing the evaluation
// parameters role.
func (c *Context) EvaluationParameterStore() (*store.Store, error) {
	return c.roleStore(c.cfg.EvaluationParameterStoreName, "evaluation_parameter_store_name")
}

func (c *Context) roleStore(name, pointer string) (*store.Store, error) {
	if name == "" {
		return nil, errors.Newf(errors.ErrorTypeInvalidConfigKey,
			"the project config is missing the %q key; add it and point it at a configured store", pointer)
	}
	return c.GetStore(name)
}

// CheckpointStoreName resolves the checkpoint role to a store name. When the
// role pointer is absent the conventional checkpoints directory is probed:
// if it exists the default store name is assumed with a migration warning,
// otherwise resolution fails with remediation text.
func (c *Context) CheckpointStoreName() (string, error) {
	return c.fallbackStoreName(
		c.cfg.CheckpointStoreName,
		"checkpoint_store_name",
		c.checkpointsDirectory(),
		config.DefaultCheckpointStoreName,
	)
}

// ProfilerStoreName resolves the profiler role to a store name, with the same
// conventional-directory fallback as CheckpointStoreName.
func (c *Context) ProfilerStoreName() (string, error) {
	return c.fallbackStoreName(
		c.cfg.ProfilerStoreName,
		"profiler_store_name",
		c.profilersDirectory(),
		config.DefaultProfilerStoreName,
	)
}

func (c *Context) fallbackStoreName(configured, pointer, conventionalDir, defaultName string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	probe := filepath.Join(c.rootDir, conventionalDir)
	if info, err := os.Stat(probe); err == nil && info.IsDir() {
		c.logger.Warn("project config predates the role pointer; assuming the default store name. "+
			"Add the key to your project config to silence this warning",
			zap.String("key", pointer),
			zap.String("store", defaultName),
			zap.String("directory", conventionalDir))
		return defaultName, nil
	}

	return "", errors.Newf(errors.ErrorTypeInvalidConfigKey,
		"the project config is missing the %q key and no %q directory exists; "+
			"add the key (requires config_version >= %.1f) or create the directory",
		pointer, conventionalDir, config.CurrentConfigVersion)
}

// CheckpointStore returns the store backing the checkpoint role. If the
// resolved name has no configuration but the conventional directory exists,
// the default checkpoint store config is built on the fly with a warning.
func (c *Context) CheckpointStore() (*store.Store, error) {
	name, err := c.CheckpointStoreName()
	if err != nil {
		return nil, err
	}
	return c.roleStoreWithDefault(name, config.StoreKindCheckpoint, c.checkpointsDirectory())
}

// ProfilerStore returns the store backing the profiler role, with the same
// on-the-fly default as CheckpointStore.
func (c *Context) ProfilerStore() (*store.Store, error) {
	name, err := c.ProfilerStoreName()
	if err != nil {
		return nil, err
	}
	return c.roleStoreWithDefault(name, config.StoreKindProfiler, c.profilersDirectory())
}

func (c *Context) roleStoreWithDefault(name, kind, conventionalDir string) (*store.Store, error) {
	if _, ok := c.cfg.Stores[name]; ok {
		return c.GetStore(name)
	}
	if cached, ok := c.stores[name]; ok {
		return cached, nil
	}

	probe := filepath.Join(c.rootDir, conventionalDir)
	if info, err := os.Stat(probe); err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeStoreConfig,
			"store %q is not configured and no %q directory exists", name, conventionalDir)
	}

	c.logger.Warn("building a default store for an unconfigured role; add the store to your project config",
		zap.String("store", name), zap.String("kind", kind))

	cfg := config.DefaultRoleStoreConfig(kind)
	cfg.Backend["base_directory"] = conventionalDir
	return c.buildStore(name, cfg)
}

func (c *Context) checkpointsDirectory() string {
	if c.cfg.CheckpointsDirectory != "" {
		return c.cfg.CheckpointsDirectory
	}
	return config.DefaultCheckpointsDirectory
}

func (c *Context) profilersDirectory() string {
	if c.cfg.ProfilersDirectory != "" {
		return c.cfg.ProfilersDirectory
	}
	return config.DefaultProfilersDirectory
}

// ListStores returns a masked snapshot of every configured store. Every
// entry passes through the secrets sanitizer, regardless of whether the
// store looks like it holds credentials.
func (c *Context) ListStores() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(c.cfg.Stores))
	for _, name := range sortedStoreNames(c.cfg.Stores) {
		out = append(out, c.storeSnapshot(name, c.cfg.Stores[name]))
	}
	return out
}

// ListActiveStores returns the masked snapshots of the stores referenced by
// a role pointer. Unresolvable checkpoint or profiler roles are omitted with
// an informational log, never an error.
func (c *Context) ListActiveStores() []map[string]interface{} {
	active := c.activeStoreNames()

	out := make([]map[string]interface{}, 0, len(active))
	for _, name := range sortedStoreNames(c.cfg.Stores) {
		if active[name] {
			out = append(out, c.storeSnapshot(name, c.cfg.Stores[name]))
		}
	}
	if len(out) < len(active) {
		c.logger.Info("some active store names have no configuration and were omitted")
	}
	return out
}

func (c *Context) storeSnapshot(name string, cfg config.StoreConfig) map[string]interface{} {
	snapshot := map[string]interface{}{
		"name": name,
		"kind": cfg.Kind,
	}
	if cfg.Backend != nil {
		snapshot["backend"] = cfg.Backend
	}
	return secrets.Sanitize(snapshot)
}

func sortedStoreNames(stores map[string]config.StoreConfig) []string {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
