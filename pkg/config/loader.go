package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a project configuration from a YAML file, filling
// in defaults for anything the file leaves unset.
func Load(path string) (*ProjectConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML, creating parent directories as
// needed.
func Save(cfg *ProjectConfig, path string) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode project config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}

// Defaults returns a fully populated default project configuration: the three
// always-present role stores with their conventional pointers, conventional
// directories and usage statistics enabled. Checkpoint and profiler stores
// are deliberately absent; the runtime context falls back to probing their
// conventional directories.
func Defaults() *ProjectConfig {
	return &ProjectConfig{
		ConfigVersion:           CurrentConfigVersion,
		ConfigVariablesFilePath: DefaultConfigVariablesFilePath,
		PluginsDirectory:        DefaultPluginsDirectory,
		Stores: map[string]StoreConfig{
			DefaultExpectationsStoreName:        DefaultRoleStoreConfig(StoreKindExpectations),
			DefaultValidationsStoreName:         DefaultRoleStoreConfig(StoreKindValidations),
			DefaultEvaluationParameterStoreName: DefaultRoleStoreConfig(StoreKindEvaluationParameter),
		},
		ExpectationsStoreName:        DefaultExpectationsStoreName,
		ValidationsStoreName:         DefaultValidationsStoreName,
		EvaluationParameterStoreName: DefaultEvaluationParameterStoreName,
		CheckpointsDirectory:         DefaultCheckpointsDirectory,
		ProfilersDirectory:           DefaultProfilersDirectory,
	}
}

// ApplyDefaults merges Defaults into cfg without overriding anything cfg
// already sets. Maps are merged per key; explicit zero values in non-pointer
// fields are preserved by merging only into unset fields.
func ApplyDefaults(cfg *ProjectConfig) error {
	if err := mergo.Merge(cfg, *Defaults()); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return nil
}

// DefaultRoleStoreConfig returns the conventional store configuration for a
// platform role. Expectations, validations, checkpoints and profilers persist
// to the filesystem under their conventional directories; evaluation
// parameters are ephemeral.
func DefaultRoleStoreConfig(kind string) StoreConfig {
	switch kind {
	case StoreKindExpectations:
		return filesystemStoreConfig(kind, DefaultExpectationsDirectory)
	case StoreKindValidations:
		return filesystemStoreConfig(kind, DefaultValidationsDirectory)
	case StoreKindCheckpoint:
		return filesystemStoreConfig(kind, DefaultCheckpointsDirectory)
	case StoreKindProfiler:
		return filesystemStoreConfig(kind, DefaultProfilersDirectory)
	default:
		return StoreConfig{
			Kind:    kind,
			Backend: map[string]interface{}{"kind": BackendKindMemory},
		}
	}
}

func filesystemStoreConfig(kind, baseDirectory string) StoreConfig {
	return StoreConfig{
		Kind: kind,
		Backend: map[string]interface{}{
			"kind":           BackendKindFilesystem,
			"base_directory": baseDirectory,
		},
	}
}

// Clone returns a deep copy of the configuration. The runtime context clones
// before applying global overrides so the caller's object is never mutated.
func (c *ProjectConfig) Clone() *ProjectConfig {
	if c == nil {
		return nil
	}

	out := *c
	if c.Stores != nil {
		out.Stores = make(map[string]StoreConfig, len(c.Stores))
		for name, sc := range c.Stores {
			out.Stores[name] = StoreConfig{Kind: sc.Kind, Backend: copyMap(sc.Backend)}
		}
	}
	if c.Datasources != nil {
		out.Datasources = make(map[string]DatasourceConfig, len(c.Datasources))
		for name, dc := range c.Datasources {
			out.Datasources[name] = DatasourceConfig{Kind: dc.Kind, Options: copyMap(dc.Options)}
		}
	}
	if c.UsageStatistics.Enabled != nil {
		enabled := *c.UsageStatistics.Enabled
		out.UsageStatistics.Enabled = &enabled
	}
	return &out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return copyMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return value
	}
}

// LoadConfigVariables reads a config-variables file: a flat YAML mapping of
// variable name to value. Scalar values are stringified; a missing file
// yields an empty map so projects without one work unchanged.
func LoadConfigVariables(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config variables file: %w", err)
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse config variables file: %w", err)
	}

	vars := make(map[string]string, len(parsed))
	for name, value := range parsed {
		switch v := value.(type) {
		case string:
			vars[name] = v
		case nil:
			vars[name] = ""
		default:
			vars[name] = fmt.Sprintf("%v", v)
		}
	}
	return vars, nil
}
