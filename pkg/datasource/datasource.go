// Package datasource defines the Datasource contract and the kind-keyed
// registry that turns persisted datasource configurations into live
// instances.
//
// Datasource kinds are registered at compile time as Definitions; the runtime
// context resolves the "kind" field of a configuration against this registry
// instead of loading implementations dynamically. Data fetching and batch
// execution are out of scope here: the built-in kinds hold validated
// configuration and expose it through the narrow Datasource interface.
package datasource

import (
	"sync"

	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/logger"
)

// Environment carries context-level settings into datasource constructors.
type Environment struct {
	RootDirectory string
	Concurrency   config.ConcurrencyConfig
}

// Datasource is a live, initialized datasource instance.
type Datasource interface {
	// Name returns the name the datasource is registered under.
	Name() string
	// Kind returns the registered kind that produced this instance.
	Kind() string
	// Config returns the fully substituted options the instance was built
	// from. Callers must not mutate the returned map.
	Config() map[string]interface{}
}

// Constructor builds a datasource instance from fully substituted options.
type Constructor func(name string, options map[string]interface{}, env Environment) (Datasource, error)

// ConfigurationHook derives a complete persisted configuration from the raw
// keyword arguments handed to AddDatasource. Kinds without a hook persist the
// arguments as-is.
type ConfigurationHook func(kwargs map[string]interface{}) (map[string]interface{}, error)

// Definition describes a registered datasource kind.
type Definition struct {
	Kind string

	// BuildConfiguration is optional; see ConfigurationHook.
	BuildConfiguration ConfigurationHook

	// New constructs a live instance. Options passed in are already
	// substituted; implementations never see raw placeholders.
	New Constructor
}

// Registry maps kind names to Definitions.
type Registry struct {
	definitions map[string]Definition
	mu          sync.RWMutex
	logger      *zap.Logger
}

// Global registry instance; built-in kinds register here via init.
var globalRegistry = NewRegistry()

// NewRegistry creates an empty datasource kind registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]Definition),
		logger:      logger.Get().With(zap.String("component", "datasource_registry")),
	}
}

// DefaultRegistry returns the registry the built-in kinds register with.
func DefaultRegistry() *Registry {
	return globalRegistry
}

// Register registers a datasource kind definition.
func (r *Registry) Register(def Definition) error {
	if def.Kind == "" || def.New == nil {
		return errors.New(errors.ErrorTypeValidation, "datasource definition requires a kind and a constructor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "datasource kind %q already registered", def.Kind)
	}

	r.definitions[def.Kind] = def
	r.logger.Debug("datasource kind registered", zap.String("kind", def.Kind))
	return nil
}

// MustRegister registers a definition and panics on conflict. Intended for
// init-time registration of built-in kinds.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition registered under kind. Unknown kinds fail
// with an unregistered-kind error.
func (r *Registry) Lookup(kind string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[kind]
	if !exists {
		return Definition{}, errors.Newf(errors.ErrorTypeUnregisteredKind,
			"datasource kind %q is not registered", kind)
	}
	return def, nil
}

// Kinds returns the registered kind names.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.definitions))
	for kind := range r.definitions {
		kinds = append(kinds, kind)
	}
	return kinds
}

// New instantiates a datasource of the given kind from already-substituted
// options.
func (r *Registry) New(kind, name string, options map[string]interface{}, env Environment) (Datasource, error) {
	def, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return def.New(name, options, env)
}
