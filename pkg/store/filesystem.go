package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
	"github.com/verityhq/verity/pkg/logger"
)

// backendIDFile holds the filesystem backend's stable identifier inside its
// base directory.
const backendIDFile = ".verity_backend_id"

// FilesystemOptions are the declarative options of the filesystem backend.
// ManuallyInitializeStoreBackendID seeds a freshly created backend with a
// caller-chosen identifier instead of a generated one; SuppressStoreBackendID
// disables identity handling entirely, so no id file is read or written.
type FilesystemOptions struct {
	BaseDirectory                    string `mapstructure:"base_directory"`
	Suffix                           string `mapstructure:"suffix"`
	ManuallyInitializeStoreBackendID string `mapstructure:"manually_initialize_store_backend_id"`
	SuppressStoreBackendID           bool   `mapstructure:"suppress_store_backend_id"`
}

// FilesystemBackend persists one file per key under a base directory. It is
// path-addressable and keeps a stable backend id across process restarts.
type FilesystemBackend struct {
	baseDir string
	suffix  string
	opts    FilesystemOptions
	logger  *zap.Logger

	mu        sync.Mutex
	backendID string
}

func init() {
	globalRegistry.MustRegister(config.BackendKindFilesystem, func(storeName string, options map[string]interface{}, env RuntimeEnvironment) (Backend, error) {
		return NewFilesystemBackend(storeName, options, env)
	})
}

// NewFilesystemBackend creates a filesystem backend from declarative options.
// A relative base directory is resolved against the runtime environment's
// root directory; the base directory is created if missing.
func NewFilesystemBackend(storeName string, options map[string]interface{}, env RuntimeEnvironment) (*FilesystemBackend, error) {
	var opts FilesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStoreConfig,
			"invalid filesystem backend options for store %q", storeName)
	}
	if opts.BaseDirectory == "" {
		return nil, errors.Newf(errors.ErrorTypeStoreConfig,
			"filesystem backend for store %q requires base_directory", storeName)
	}

	baseDir := opts.BaseDirectory
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(env.RootDirectory, baseDir)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile,
			"failed to create base directory for store %q", storeName)
	}

	suffix := opts.Suffix
	if suffix == "" {
		suffix = ".json"
	}

	return &FilesystemBackend{
		baseDir: baseDir,
		suffix:  suffix,
		opts:    opts,
		logger: logger.Get().With(
			zap.String("component", "filesystem_backend"),
			zap.String("store", storeName)),
	}, nil
}

// Kind returns the backend kind name.
func (b *FilesystemBackend) Kind() string { return config.BackendKindFilesystem }

// BaseDirectory returns the resolved base directory.
func (b *FilesystemBackend) BaseDirectory() string { return b.baseDir }

// BackendID returns the backend's stable identifier, initializing it on first
// use. Initialization prefers, in order: an id file already present in the
// base directory, the manually-initialized id from the options, a freshly
// generated UUID. With the suppress option set no id is read or written and
// the empty string is returned.
func (b *FilesystemBackend) BackendID(suppressWarnings bool) string {
	if b.opts.SuppressStoreBackendID {
		return ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.backendID != "" {
		return b.backendID
	}

	idPath := filepath.Join(b.baseDir, backendIDFile)
	if raw, err := os.ReadFile(idPath); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			b.backendID = id
			return id
		}
	} else if !os.IsNotExist(err) && !suppressWarnings {
		b.logger.Warn("failed to read store backend id file", zap.Error(err))
	}

	id := b.opts.ManuallyInitializeStoreBackendID
	if id == "" {
		id = uuid.NewString()
	}
	if err := os.WriteFile(idPath, []byte(id+"\n"), 0o644); err != nil && !suppressWarnings {
		b.logger.Warn("failed to persist store backend id", zap.Error(err))
	}
	b.backendID = id
	return id
}

func (b *FilesystemBackend) pathFor(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(key)+b.suffix)
}

// Get reads the value stored under key.
func (b *FilesystemBackend) Get(key string) ([]byte, error) {
	value, err := os.ReadFile(b.pathFor(key))
	if os.IsNotExist(err) {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile, "failed to read key %q", key)
	}
	return value, nil
}

// Set writes value under key, creating parent directories as needed.
func (b *FilesystemBackend) Set(key string, value []byte) error {
	path := b.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to create directory for key %q", key)
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write key %q", key)
	}
	return nil
}

// Delete removes the file backing key. Deleting a missing key fails with a
// not-found error.
func (b *FilesystemBackend) Delete(key string) error {
	err := os.Remove(b.pathFor(key))
	if os.IsNotExist(err) {
		return errors.Newf(errors.ErrorTypeNotFound, "key %q not found", key)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to delete key %q", key)
	}
	return nil
}

// List walks the base directory and returns all keys, sorted. The backend id
// file and files without the configured suffix are skipped.
func (b *FilesystemBackend) List() ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == backendIDFile || !strings.HasSuffix(path, b.suffix) {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		keys = append(keys, strings.TrimSuffix(filepath.ToSlash(rel), b.suffix))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list store contents")
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key is present.
func (b *FilesystemBackend) Has(key string) (bool, error) {
	_, err := os.Stat(b.pathFor(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeFile, "failed to stat key %q", key)
	}
	return true, nil
}
