package store

import (
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
)

// InlineBackend persists datasource configurations directly inside the owning
// ProjectConfig's datasources section, so mutations through the backend are
// visible in the project configuration and vice versa. Values are the JSON
// serialization of a config.DatasourceConfig; configs round-trip losslessly,
// including unresolved ${variable} placeholders.
//
// Unlike the other backends it needs a live ProjectConfig, so it is built
// with NewInlineBackend by the runtime context rather than through the kind
// registry.
type InlineBackend struct {
	cfg *config.ProjectConfig
}

// NewInlineBackend creates a backend over cfg's datasources section. The map
// is created if nil.
func NewInlineBackend(cfg *config.ProjectConfig) *InlineBackend {
	if cfg.Datasources == nil {
		cfg.Datasources = make(map[string]config.DatasourceConfig)
	}
	return &InlineBackend{cfg: cfg}
}

// NewStore wraps an already-constructed backend in a Store. Used for internal
// stores that are not part of the project's declarative store section.
func NewStore(name, kind string, backend Backend) *Store {
	return &Store{
		name:    name,
		kind:    kind,
		backend: backend,
		config:  config.StoreConfig{Kind: kind, Backend: map[string]interface{}{"kind": backend.Kind()}},
	}
}

// Kind returns the backend kind name.
func (b *InlineBackend) Kind() string { return config.BackendKindInline }

// Get returns the JSON serialization of the datasource config stored under key.
func (b *InlineBackend) Get(key string) ([]byte, error) {
	dc, ok := b.cfg.Datasources[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	value, err := gojson.Marshal(dc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to encode datasource config %q", key)
	}
	return value, nil
}

// Set decodes value as a datasource config and stores it under key.
func (b *InlineBackend) Set(key string, value []byte) error {
	var dc config.DatasourceConfig
	if err := gojson.Unmarshal(value, &dc); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeValidation, "failed to decode datasource config %q", key)
	}
	b.cfg.Datasources[key] = dc
	return nil
}

// Delete removes the datasource config stored under key.
func (b *InlineBackend) Delete(key string) error {
	if _, ok := b.cfg.Datasources[key]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	delete(b.cfg.Datasources, key)
	return nil
}

// List returns the names of all stored datasource configs, sorted.
func (b *InlineBackend) List() ([]string, error) {
	keys := make([]string, 0, len(b.cfg.Datasources))
	for key := range b.cfg.Datasources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key is present.
func (b *InlineBackend) Has(key string) (bool, error) {
	_, ok := b.cfg.Datasources[key]
	return ok, nil
}
