package datacontext

import (
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/datasource"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/metrics"
	"github.com/verityhq/verity/pkg/secrets"
	"github.com/verityhq/verity/pkg/usagestats"
)

// AddDatasource registers a datasource under name. The kind is taken from
// kwargs["kind"] and resolved against the datasource kind registry; kinds
// with a configuration hook derive the persisted options from kwargs,
// otherwise kwargs are persisted as-is, raw placeholders included.
//
// The configuration is persisted before instantiation is attempted. With
// initialize false that is all that happens, supporting a register-now,
// connect-later workflow; the returned datasource is nil. With initialize
// true a failed instantiation rolls the persisted config back and returns
// the initialization error, so the registry never retains a config for a
// datasource that failed to initialize.
func (c *Context) AddDatasource(name string, kwargs map[string]interface{}, initialize bool) (datasource.Datasource, error) {
	kind, _ := kwargs["kind"].(string)
	if kind == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"datasource %q requires a \"kind\" option", name)
	}

	def, err := c.dsRegistry.Lookup(kind)
	if err != nil {
		return nil, err
	}

	options := kwargs
	if def.BuildConfiguration != nil {
		options, err = def.BuildConfiguration(kwargs)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
				"failed to build configuration for datasource %q", name)
		}
	}

	dc := config.DatasourceConfig{Kind: kind, Options: optionsWithoutKind(options)}

	ds, err := c.persistThenBuild(name, dc, initialize)
	if err != nil {
		return nil, err
	}

	c.usageStats.Emit(usagestats.EventAddDatasource, map[string]interface{}{"kind": kind})
	return ds, nil
}

// persistThenBuild is the two-phase helper behind AddDatasource: persist the
// config, then attempt the build, undoing the persist if the build fails.
// Keeping both phases in one place makes the no-orphaned-config invariant
// mechanically enforceable.
func (c *Context) persistThenBuild(name string, dc config.DatasourceConfig, build bool) (datasource.Datasource, error) {
	raw, err := gojson.Marshal(dc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal,
			"failed to encode datasource config %q", name)
	}
	if err := c.dsConfigStore.Set(name, raw); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStoreConfig,
			"failed to persist datasource config %q", name)
	}

	if !build {
		c.logger.Debug("datasource registered without initialization", zap.String("datasource", name))
		return nil, nil
	}

	ds, err := c.instantiateDatasource(name, dc)
	if err != nil {
		if delErr := c.dsConfigStore.Delete(name); delErr != nil {
			c.logger.Warn("failed to roll back persisted config of broken datasource",
				zap.String("datasource", name), zap.Error(delErr))
		}
		delete(c.dsCache, name)
		return nil, err
	}

	c.dsCache[name] = ds
	return ds, nil
}

// GetDatasource returns the live datasource registered under name,
// instantiating it from its persisted config on first use. Names with no
// persisted config fail with a not-found error; instantiation failures
// surface as datasource-initialization errors carrying the name.
func (c *Context) GetDatasource(name string) (datasource.Datasource, error) {
	if ds, ok := c.dsCache[name]; ok {
		metrics.DatasourceCacheHits.Inc()
		return ds, nil
	}
	metrics.DatasourceCacheMisses.Inc()

	dc, err := c.persistedDatasourceConfig(name)
	if err != nil {
		return nil, err
	}

	ds, err := c.instantiateDatasource(name, dc)
	if err != nil {
		return nil, err
	}

	c.dsCache[name] = ds
	return ds, nil
}

// instantiateDatasource substitutes the persisted options and builds a live
// instance; implementations never see raw placeholders.
func (c *Context) instantiateDatasource(name string, dc config.DatasourceConfig) (datasource.Datasource, error) {
	substituted, _ := c.SubstituteConfig(dc.Options).(map[string]interface{})

	ds, err := c.dsRegistry.New(dc.Kind, name, substituted, datasource.Environment{
		RootDirectory: c.rootDir,
		Concurrency:   c.cfg.Concurrency,
	})
	if err != nil {
		metrics.DatasourcesInitialized.WithLabelValues(dc.Kind, "failure").Inc()
		return nil, errors.Wrapf(err, errors.ErrorTypeDatasourceInit,
			"failed to initialize datasource %q", name).WithDetail("datasource", name)
	}

	metrics.DatasourcesInitialized.WithLabelValues(dc.Kind, "success").Inc()
	return ds, nil
}

// persistedDatasourceConfig reads the config stored under name.
func (c *Context) persistedDatasourceConfig(name string) (config.DatasourceConfig, error) {
	raw, err := c.dsConfigStore.Get(name)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return config.DatasourceConfig{}, errors.Newf(errors.ErrorTypeNotFound,
				"datasource %q not found", name)
		}
		return config.DatasourceConfig{}, err
	}

	var dc config.DatasourceConfig
	if err := gojson.Unmarshal(raw, &dc); err != nil {
		return config.DatasourceConfig{}, errors.Wrapf(err, errors.ErrorTypeInternal,
			"failed to decode persisted datasource config %q", name)
	}
	return dc, nil
}

// ListDatasources returns a masked, substituted snapshot per persisted
// datasource config. No live instances are built, so listing works even for
// datasources that currently fail to initialize.
func (c *Context) ListDatasources() ([]map[string]interface{}, error) {
	names, err := c.dsConfigStore.List()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		dc, err := c.persistedDatasourceConfig(name)
		if err != nil {
			return nil, err
		}

		substituted, _ := c.SubstituteConfig(dc.Options).(map[string]interface{})
		snapshot := map[string]interface{}{
			"name": name,
			"kind": dc.Kind,
		}
		if substituted != nil {
			snapshot["options"] = substituted
		}
		out = append(out, secrets.Sanitize(snapshot))
	}
	return out, nil
}

// DeleteDatasource removes the datasource registered under name. The
// datasource must currently resolve: a missing config fails with a not-found
// error and a broken one surfaces its initialization error. The persisted
// config and the cache entry are removed together before the call returns,
// so a subsequent GetDatasource observes the deletion.
func (c *Context) DeleteDatasource(name string) error {
	if _, err := c.GetDatasource(name); err != nil {
		return err
	}

	if err := c.dsConfigStore.Delete(name); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStoreConfig,
			"failed to delete persisted config of datasource %q", name)
	}
	delete(c.dsCache, name)

	c.usageStats.Emit(usagestats.EventDeleteDatasource, nil)
	return nil
}

// initializeDatasources eagerly instantiates every persisted datasource at
// context startup. Failures are logged per datasource and skipped: a broken
// datasource must not prevent the context from starting.
func (c *Context) initializeDatasources() {
	names, err := c.dsConfigStore.List()
	if err != nil {
		c.logger.Warn("failed to enumerate persisted datasources", zap.Error(err))
		return
	}

	for _, name := range names {
		if _, err := c.GetDatasource(name); err != nil {
			c.logger.Warn("datasource failed to initialize at startup, continuing without it",
				zap.String("datasource", name), zap.Error(err))
		}
	}
}

// optionsWithoutKind strips the kind selector from the persisted options; the
// kind lives in its own field of the persisted config.
func optionsWithoutKind(options map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(options))
	for key, value := range options {
		if key == "kind" {
			continue
		}
		out[key] = value
	}
	return out
}
