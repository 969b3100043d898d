package store

import (
	"sort"
	"sync"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
)

// MemoryBackend is an ephemeral in-process backend. Contents and identity are
// lost when the process exits, so it never participates in context identity
// derivation.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func init() {
	globalRegistry.MustRegister(config.BackendKindMemory, func(string, map[string]interface{}, RuntimeEnvironment) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Kind returns the backend kind name.
func (b *MemoryBackend) Kind() string { return config.BackendKindMemory }

// Get reads a value by key.
func (b *MemoryBackend) Get(key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.data[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set writes a value under key.
func (b *MemoryBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	b.data[key] = stored
	return nil
}

// Delete removes the value under key. Deleting a missing key fails with a
// not-found error.
func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data[key]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	delete(b.data, key)
	return nil
}

// List returns all keys, sorted.
func (b *MemoryBackend) List() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key is present.
func (b *MemoryBackend) Has(key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.data[key]
	return ok, nil
}
