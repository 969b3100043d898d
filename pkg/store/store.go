// Package store implements the named key-value stores that back the Verity
// runtime context: the Store type, the Backend persistence interface and a
// kind-keyed backend factory registry.
//
// Stores are declarative: a StoreConfig names a backend kind plus
// backend-specific options, and Build turns it into a live Store through the
// registry. Backends shipped with the platform are "memory" (ephemeral),
// "filesystem" (persistent, path-addressable) and "inline" (backed by the
// owning project configuration).
package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/logger"
	"github.com/verityhq/verity/pkg/metrics"
)

// RuntimeEnvironment carries context-level settings into backend factories.
// Backends resolve relative paths against RootDirectory.
type RuntimeEnvironment struct {
	RootDirectory string
	Concurrency   config.ConcurrencyConfig
}

// Backend is the persistence contract a store delegates to. Values are opaque
// byte slices; serialization is the caller's concern.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	List() ([]string, error)
	Has(key string) (bool, error)
	Kind() string
}

// PersistentBackend is implemented by path/key-addressable backends that keep
// a stable identifier across process restarts. The runtime context prefers
// this identifier when deriving its own identity.
type PersistentBackend interface {
	Backend

	// BackendID returns the backend's stable identifier, creating it on
	// first use. With suppressWarnings set, read or write problems are not
	// logged; a warning would already have been emitted when the store was
	// built from an invalid configuration.
	BackendID(suppressWarnings bool) string
}

// BackendFactory creates a backend from its declarative options.
type BackendFactory func(storeName string, options map[string]interface{}, env RuntimeEnvironment) (Backend, error)

// Registry maps backend kind names to factories.
type Registry struct {
	factories map[string]BackendFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance; built-in backends register here via init.
var globalRegistry = NewRegistry()

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]BackendFactory),
		logger:    logger.Get().With(zap.String("component", "store_registry")),
	}
}

// DefaultRegistry returns the registry the built-in backends register with.
func DefaultRegistry() *Registry {
	return globalRegistry
}

// Register registers a backend factory under a kind name.
func (r *Registry) Register(kind string, factory BackendFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "store backend kind %q already registered", kind)
	}

	r.factories[kind] = factory
	r.logger.Debug("store backend kind registered", zap.String("kind", kind))
	return nil
}

// MustRegister registers a backend factory and panics on conflict. Intended
// for init-time registration of built-in kinds.
func (r *Registry) MustRegister(kind string, factory BackendFactory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

// Kinds returns the registered backend kind names.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

// NewBackend creates a backend of the given kind. Unknown kinds fail with an
// unregistered-kind error rather than attempting any dynamic loading.
func (r *Registry) NewBackend(kind, storeName string, options map[string]interface{}, env RuntimeEnvironment) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeUnregisteredKind,
			"store backend kind %q is not registered", kind).WithDetail("store", storeName)
	}

	backend, err := factory(storeName, options, env)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStoreConfig,
			"failed to build %q backend for store %q", kind, storeName)
	}
	return backend, nil
}

// Store is a named key-value store bound to a live backend. It keeps the
// declarative config it was built from so the registry can return masked
// snapshots without reaching into the backend.
type Store struct {
	name    string
	kind    string
	backend Backend
	config  config.StoreConfig
}

// Build constructs a store from its declarative configuration using the given
// registry. An empty backend block defaults to the memory backend.
func (r *Registry) Build(name string, cfg config.StoreConfig, env RuntimeEnvironment) (*Store, error) {
	timer := metrics.NewTimer()

	backendCfg := cfg.Backend
	backendKind := config.BackendKindMemory
	if backendCfg != nil {
		if kind, ok := backendCfg["kind"].(string); ok && kind != "" {
			backendKind = kind
		}
	}

	backend, err := r.NewBackend(backendKind, name, backendCfg, env)
	if err != nil {
		return nil, err
	}

	metrics.ObserveStoreBuild(cfg.Kind, timer.Stop())
	r.logger.Debug("store built",
		zap.String("store", name),
		zap.String("kind", cfg.Kind),
		zap.String("backend", backendKind))

	return &Store{name: name, kind: cfg.Kind, backend: backend, config: cfg}, nil
}

// Name returns the store's configured name.
func (s *Store) Name() string { return s.name }

// Kind returns the store's kind (its platform role, e.g. "expectations").
func (s *Store) Kind() string { return s.kind }

// Backend returns the live backend the store delegates to.
func (s *Store) Backend() Backend { return s.backend }

// Config returns the declarative configuration the store was built from.
func (s *Store) Config() config.StoreConfig { return s.config }

// Get reads a value by key.
func (s *Store) Get(key string) ([]byte, error) { return s.backend.Get(key) }

// Set writes a value under key.
func (s *Store) Set(key string, value []byte) error { return s.backend.Set(key, value) }

// Delete removes the value under key.
func (s *Store) Delete(key string) error { return s.backend.Delete(key) }

// List returns all keys present in the backend.
func (s *Store) List() ([]string, error) { return s.backend.List() }

// Has reports whether key is present.
func (s *Store) Has(key string) (bool, error) { return s.backend.Has(key) }
