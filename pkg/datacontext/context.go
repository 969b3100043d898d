// Package datacontext implements the Verity runtime context: the object that
// resolves a declarative project configuration against layered override
// sources and materializes the named stores and datasources the rest of the
// platform works with.
//
// A Context owns its configuration. Global overrides are applied to a copy at
// construction, all configured stores are built eagerly, a stable context id
// is derived, and every persisted datasource is initialized fault-tolerantly.
// Registry mutations after construction go through AddDatasource and
// DeleteDatasource; nothing else writes to the caches.
package datacontext

import (
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/datasource"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/logger"
	"github.com/verityhq/verity/pkg/store"
	"github.com/verityhq/verity/pkg/substitution"
	"github.com/verityhq/verity/pkg/usagestats"
)

// Name and kind of the internal store that persists datasource configs.
const (
	datasourceConfigStoreName = "datasource_config_store"
	datasourceConfigStoreKind = "datasource_config"
)

// Options configures context construction. The zero value is usable: the
// current directory becomes the project root and the package-level store and
// datasource registries are used.
type Options struct {
	// RootDirectory is the project root; relative paths in the config are
	// resolved against it.
	RootDirectory string

	// RuntimeOverrides is the highest-precedence substitution overlay.
	RuntimeOverrides map[string]string

	// Logger defaults to the global logger.
	Logger *zap.Logger

	// StoreRegistry and DatasourceRegistry default to the package-level
	// registries the built-in kinds register with.
	StoreRegistry      *store.Registry
	DatasourceRegistry *datasource.Registry

	// GlobalConfigPaths overrides the machine-global config file locations.
	// Meant for tests; nil selects DefaultGlobalConfigPaths.
	GlobalConfigPaths []string

	// UsageStatisticsSink receives usage events when statistics are
	// enabled; nil drops them.
	UsageStatisticsSink usagestats.Sink
}

// Context is the runtime context of one Verity project.
type Context struct {
	cfg              *config.ProjectConfig
	rootDir          string
	runtimeOverrides map[string]string
	logger           *zap.Logger

	storeRegistry *store.Registry
	dsRegistry    *datasource.Registry

	stores        map[string]*store.Store
	dsConfigStore *store.Store
	dsCache       map[string]datasource.Datasource

	configVars map[string]string

	contextID  string
	instanceID string
	usageStats *usagestats.Handler
}

// New constructs a runtime context over cfg. The caller's config is cloned
// before global overrides are applied and is never mutated.
func New(cfg *config.ProjectConfig, opts Options) (*Context, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "project config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid project config")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("component", "data_context"))

	storeRegistry := opts.StoreRegistry
	if storeRegistry == nil {
		storeRegistry = store.DefaultRegistry()
	}
	dsRegistry := opts.DatasourceRegistry
	if dsRegistry == nil {
		dsRegistry = datasource.DefaultRegistry()
	}

	rootDir := opts.RootDirectory
	if rootDir == "" {
		rootDir = "."
	}

	resolver := newGlobalOverrideResolver(opts.GlobalConfigPaths, log)

	c := &Context{
		cfg:              applyGlobalOverrides(cfg, resolver),
		rootDir:          rootDir,
		runtimeOverrides: opts.RuntimeOverrides,
		logger:           log,
		storeRegistry:    storeRegistry,
		dsRegistry:       dsRegistry,
		stores:           make(map[string]*store.Store),
		dsCache:          make(map[string]datasource.Datasource),
	}

	c.instanceID = c.deriveInstanceID()

	for _, name := range sortedStoreNames(c.cfg.Stores) {
		if _, err := c.GetStore(name); err != nil {
			return nil, err
		}
	}

	c.dsConfigStore = store.NewStore(
		datasourceConfigStoreName,
		datasourceConfigStoreKind,
		store.NewInlineBackend(c.cfg),
	)

	c.contextID = c.deriveContextID()
	c.cfg.UsageStatistics.ContextID = c.contextID

	if c.cfg.UsageStatistics.IsEnabled() {
		url := c.substituteString(c.cfg.UsageStatistics.URL)
		c.usageStats = usagestats.NewHandler(c.contextID, url, opts.UsageStatisticsSink)
	} else {
		c.logger.Info("usage statistics are disabled for this context")
	}

	c.initializeDatasources()

	c.usageStats.Emit(usagestats.EventContextInit, map[string]interface{}{
		"store_count":      len(c.cfg.Stores),
		"datasource_count": len(c.cfg.Datasources),
	})
	return c, nil
}

// deriveInstanceID prefers the instance_id config variable so embedding
// applications can pin an instance identity; otherwise one is generated for
// the life of this context.
func (c *Context) deriveInstanceID() string {
	if vars, err := c.ConfigVariables(); err == nil {
		if id, ok := vars["instance_id"]; ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// Config returns a deep copy of the context's configuration. The context
// retains exclusive ownership of the original; mutate the registry through
// AddDatasource and DeleteDatasource instead.
func (c *Context) Config() *config.ProjectConfig {
	return c.cfg.Clone()
}

// RootDirectory returns the project root.
func (c *Context) RootDirectory() string { return c.rootDir }

// PluginsDirectory returns the configured plugins directory, resolved against
// the project root when relative.
func (c *Context) PluginsDirectory() string {
	dir := c.cfg.PluginsDirectory
	if dir == "" {
		dir = config.DefaultPluginsDirectory
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.rootDir, dir)
	}
	return dir
}

// UsageStatistics returns the usage statistics handler, or nil when the
// subsystem is disabled. The nil handler is safe to emit on.
func (c *Context) UsageStatistics() *usagestats.Handler { return c.usageStats }

func (c *Context) substituteString(s string) string {
	if s == "" {
		return ""
	}
	return substitution.ResolveString(s, c.BuildSubstitutionMap(), substitution.DefaultEscape)
}
