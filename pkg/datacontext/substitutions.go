package datacontext

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/substitution"
)

// BuildSubstitutionMap merges the override sources into one flat map, lowest
// precedence first: config-variables file contents (themselves substituted
// against the environment), the process environment, then the runtime
// overrides supplied at construction. It is rebuilt on every call because the
// environment can change between calls; only the raw file contents are
// cached.
func (c *Context) BuildSubstitutionMap() map[string]string {
	env := environMap()

	fileVars, err := c.ConfigVariables()
	if err != nil {
		c.logger.Warn("failed to load config variables file, continuing without it",
			zap.Error(err))
		fileVars = nil
	}

	resolvedFileVars := make(map[string]string, len(fileVars))
	for name, value := range fileVars {
		resolvedFileVars[name] = substitution.ResolveString(value, env, substitution.DefaultEscape)
	}

	return substitution.Merge(resolvedFileVars, env, c.runtimeOverrides)
}

// SubstituteConfig rewrites every ${variable} and $(variable) placeholder in
// value from the current substitution map. The input is never mutated;
// unknown placeholders are left in place.
func (c *Context) SubstituteConfig(value interface{}) interface{} {
	return substitution.Resolve(value, c.BuildSubstitutionMap(), substitution.DefaultEscape)
}

// ConfigVariables returns the raw contents of the config-variables file,
// loading it on first use. The path itself may reference environment
// variables and is resolved against the project root when relative. Projects
// without a config-variables file get an empty map.
func (c *Context) ConfigVariables() (map[string]string, error) {
	if c.configVars != nil {
		return c.configVars, nil
	}

	path := c.cfg.ConfigVariablesFilePath
	if path == "" {
		c.configVars = map[string]string{}
		return c.configVars, nil
	}

	path = substitution.ResolveString(path, environMap(), substitution.DefaultEscape)
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.rootDir, path)
	}

	vars, err := config.LoadConfigVariables(path)
	if err != nil {
		return nil, err
	}
	c.configVars = vars
	return vars, nil
}

// RefreshConfigVariables drops the cached config-variables file contents so
// the next resolution re-reads the file. Call after mutating the file.
func (c *Context) RefreshConfigVariables() {
	c.configVars = nil
}

// environMap snapshots the process environment as a substitution overlay.
func environMap() map[string]string {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}
