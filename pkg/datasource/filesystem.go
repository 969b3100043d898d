package datasource

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/verityhq/verity/pkg/errors"
)

// KindFilesystem reads data assets from files under a base directory.
const KindFilesystem = "filesystem"

// filesystemOptions are the persisted options of the filesystem kind.
type filesystemOptions struct {
	Kind          string `mapstructure:"kind"`
	BaseDirectory string `mapstructure:"base_directory"`
	Glob          string `mapstructure:"glob"`
}

// FilesystemDatasource points the platform at data files under a directory.
// Reading the files is the execution engine's job; this type validates and
// holds the configuration.
type FilesystemDatasource struct {
	name    string
	baseDir string
	glob    string
	config  map[string]interface{}
}

func init() {
	globalRegistry.MustRegister(Definition{
		Kind:               KindFilesystem,
		BuildConfiguration: buildFilesystemConfiguration,
		New:                newFilesystemDatasource,
	})
}

// buildFilesystemConfiguration fills in the defaults the filesystem kind
// expects. The base directory default stays relative so it is resolved
// against the project root at instantiation time, not at persistence time.
func buildFilesystemConfiguration(kwargs map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(kwargs)+1)
	for key, value := range kwargs {
		out[key] = value
	}
	if _, ok := out["base_directory"]; !ok {
		out["base_directory"] = "data"
	}
	if _, ok := out["glob"]; !ok {
		out["glob"] = "*"
	}
	return out, nil
}

func newFilesystemDatasource(name string, options map[string]interface{}, env Environment) (Datasource, error) {
	var opts filesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
			"invalid filesystem datasource options for %q", name)
	}
	if opts.BaseDirectory == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"filesystem datasource %q requires base_directory", name)
	}

	baseDir := opts.BaseDirectory
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(env.RootDirectory, baseDir)
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile,
			"base directory of filesystem datasource %q is not accessible", name)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"base directory of filesystem datasource %q is not a directory", name)
	}

	return &FilesystemDatasource{
		name:    name,
		baseDir: baseDir,
		glob:    opts.Glob,
		config:  options,
	}, nil
}

// Name returns the datasource name.
func (d *FilesystemDatasource) Name() string { return d.name }

// Kind returns "filesystem".
func (d *FilesystemDatasource) Kind() string { return KindFilesystem }

// Config returns the substituted options the instance was built from.
func (d *FilesystemDatasource) Config() map[string]interface{} { return d.config }

// BaseDirectory returns the resolved absolute base directory.
func (d *FilesystemDatasource) BaseDirectory() string { return d.baseDir }

// Assets lists the files matching the configured glob, relative to the base
// directory.
func (d *FilesystemDatasource) Assets() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.baseDir, d.glob))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
			"invalid glob for filesystem datasource %q", d.name)
	}
	assets := make([]string, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(d.baseDir, match)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFile,
				"failed to relativize asset path for datasource %q", d.name)
		}
		assets = append(assets, filepath.ToSlash(rel))
	}
	return assets, nil
}
