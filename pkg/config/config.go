// Package config defines the declarative project configuration for the
// Verity runtime context: store definitions, store role pointers, datasource
// definitions, usage statistics settings and concurrency settings.
//
// A ProjectConfig is usually loaded from a verity.yml file at the project
// root. Values may contain ${variable} placeholders that the runtime context
// substitutes from the config variables file, the process environment and
// runtime overrides; this package treats those placeholders as opaque
// strings.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// CurrentConfigVersion is the configuration schema version written by this
// release. Checkpoint and profiler stores require at least version 3.0.
const CurrentConfigVersion = 3.0

// Default names for the role-pointer stores.
const (
	DefaultExpectationsStoreName        = "expectations_store"
	DefaultValidationsStoreName         = "validations_store"
	DefaultEvaluationParameterStoreName = "evaluation_parameter_store"
	DefaultCheckpointStoreName          = "checkpoint_store"
	DefaultProfilerStoreName            = "profiler_store"
)

// Conventional project directories. The checkpoints and profilers directories
// double as the probe locations for the legacy-config fallback in the runtime
// context and can be overridden per project.
const (
	DefaultExpectationsDirectory   = "expectations"
	DefaultValidationsDirectory    = "uncommitted/validations"
	DefaultCheckpointsDirectory    = "checkpoints"
	DefaultProfilersDirectory      = "profilers"
	DefaultPluginsDirectory        = "plugins"
	DefaultConfigVariablesFilePath = "uncommitted/config_variables.yml"
)

// Store kinds shipped with the platform.
const (
	StoreKindExpectations        = "expectations"
	StoreKindValidations         = "validations"
	StoreKindEvaluationParameter = "evaluation_parameter"
	StoreKindCheckpoint          = "checkpoint"
	StoreKindProfiler            = "profiler"
)

// Store backend kinds shipped with the platform.
const (
	BackendKindMemory     = "memory"
	BackendKindFilesystem = "filesystem"
	BackendKindInline     = "inline"
)

// ProjectConfig is the declarative configuration of a Verity project. It is
// owned by the runtime context once a context is constructed; other
// components receive copies or substituted snapshots.
type ProjectConfig struct {
	// ConfigVersion is the configuration schema version of this project.
	ConfigVersion float64 `yaml:"config_version" json:"config_version"`

	// ConfigVariablesFilePath points at the YAML file holding substitution
	// variables. Relative paths are resolved against the project root. The
	// path itself may reference environment variables.
	ConfigVariablesFilePath string `yaml:"config_variables_file_path,omitempty" json:"config_variables_file_path,omitempty"`

	// PluginsDirectory holds custom plugin modules. Relative paths are
	// resolved against the project root.
	PluginsDirectory string `yaml:"plugins_directory,omitempty" json:"plugins_directory,omitempty"`

	// Stores maps store names to their declarative configurations.
	Stores map[string]StoreConfig `yaml:"stores" json:"stores"`

	// Role pointers naming the store that backs each platform role.
	ExpectationsStoreName        string `yaml:"expectations_store_name,omitempty" json:"expectations_store_name,omitempty"`
	ValidationsStoreName         string `yaml:"validations_store_name,omitempty" json:"validations_store_name,omitempty"`
	EvaluationParameterStoreName string `yaml:"evaluation_parameter_store_name,omitempty" json:"evaluation_parameter_store_name,omitempty"`
	CheckpointStoreName          string `yaml:"checkpoint_store_name,omitempty" json:"checkpoint_store_name,omitempty"`
	ProfilerStoreName            string `yaml:"profiler_store_name,omitempty" json:"profiler_store_name,omitempty"`

	// CheckpointsDirectory and ProfilersDirectory name the conventional
	// directories probed when the corresponding role pointer is absent.
	CheckpointsDirectory string `yaml:"checkpoints_directory,omitempty" json:"checkpoints_directory,omitempty"`
	ProfilersDirectory   string `yaml:"profilers_directory,omitempty" json:"profilers_directory,omitempty"`

	// Datasources maps datasource names to their persisted configurations.
	// The runtime context's datasource registry reads and writes this map
	// through its internal config store.
	Datasources map[string]DatasourceConfig `yaml:"datasources,omitempty" json:"datasources,omitempty"`

	// UsageStatistics controls anonymous usage statistics collection.
	UsageStatistics UsageStatisticsConfig `yaml:"usage_statistics" json:"usage_statistics"`

	// Concurrency is passed through to datasource implementations.
	Concurrency ConcurrencyConfig `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// StoreConfig declares a single named store: its kind and the configuration
// of the backend it persists to. Backend options are kind-specific; the
// "kind" key selects the backend implementation and defaults to "memory"
// when the backend block is empty.
type StoreConfig struct {
	Kind    string                 `yaml:"kind" json:"kind"`
	Backend map[string]interface{} `yaml:"backend,omitempty" json:"backend,omitempty"`
}

// DatasourceConfig declares a single named datasource. Options are persisted
// verbatim, including unresolved ${variable} placeholders; substitution
// happens when a live datasource is instantiated, never at rest.
type DatasourceConfig struct {
	Kind    string                 `yaml:"kind" json:"kind"`
	Options map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
}

// UsageStatisticsConfig controls the anonymous usage statistics subsystem.
// Enabled is a pointer so that an explicit "enabled: false" survives default
// merging.
type UsageStatisticsConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ContextID string `yaml:"context_id,omitempty" json:"context_id,omitempty"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
}

// IsEnabled reports whether usage statistics collection is on. Unset means
// enabled.
func (u UsageStatisticsConfig) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

// ConcurrencyConfig enables concurrent batch execution inside datasource
// implementations that support it.
type ConcurrencyConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Validate checks the configuration for structural correctness. Placeholder
// values inside store and datasource options are not inspected.
func (c *ProjectConfig) Validate() error {
	if c.ConfigVersion <= 0 {
		return fmt.Errorf("config_version must be positive")
	}
	for name, sc := range c.Stores {
		if sc.Kind == "" {
			return fmt.Errorf("store %q: kind is required", name)
		}
	}
	for name, dc := range c.Datasources {
		if dc.Kind == "" {
			return fmt.Errorf("datasource %q: kind is required", name)
		}
	}
	if err := c.UsageStatistics.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the usage statistics section. It applies the same rules
// used for globally-defined overrides: context ids must be UUIDs and the
// statistics endpoint must be an absolute http(s) URL. Values still holding
// substitution placeholders are skipped; they are validated once resolved.
func (u UsageStatisticsConfig) Validate() error {
	if u.ContextID != "" && !strings.Contains(u.ContextID, "$") {
		if err := ValidateContextID(u.ContextID); err != nil {
			return err
		}
	}
	if u.URL != "" && !strings.Contains(u.URL, "$") {
		if err := ValidateUsageStatisticsURL(u.URL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateContextID checks that id is a well-formed UUID.
func ValidateContextID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("context_id must be a valid UUID: %w", err)
	}
	return nil
}

// ValidateUsageStatisticsURL checks that raw is an absolute http(s) URL.
func ValidateUsageStatisticsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("usage statistics url is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("usage statistics url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}
