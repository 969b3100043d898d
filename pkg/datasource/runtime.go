package datasource

import (
	"github.com/mitchellh/mapstructure"

	"github.com/verityhq/verity/pkg/errors"
)

// KindRuntime accepts batches handed in by the calling process. It needs no
// external connectivity, which makes it the kind of choice for tests and
// debugging sessions.
const KindRuntime = "runtime"

type runtimeOptions struct {
	Kind string `mapstructure:"kind"`
	// Batches pre-declared in the configuration, keyed by batch name.
	Batches map[string]interface{} `mapstructure:"batches"`
}

// RuntimeDatasource holds in-process batches keyed by name.
type RuntimeDatasource struct {
	name    string
	config  map[string]interface{}
	batches map[string]interface{}
}

func init() {
	globalRegistry.MustRegister(Definition{
		Kind: KindRuntime,
		New:  newRuntimeDatasource,
	})
}

func newRuntimeDatasource(name string, options map[string]interface{}, _ Environment) (Datasource, error) {
	var opts runtimeOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
			"invalid runtime datasource options for %q", name)
	}

	batches := opts.Batches
	if batches == nil {
		batches = make(map[string]interface{})
	}
	return &RuntimeDatasource{name: name, config: options, batches: batches}, nil
}

// Name returns the datasource name.
func (d *RuntimeDatasource) Name() string { return d.name }

// Kind returns "runtime".
func (d *RuntimeDatasource) Kind() string { return KindRuntime }

// Config returns the substituted options the instance was built from.
func (d *RuntimeDatasource) Config() map[string]interface{} { return d.config }

// AddBatch registers an in-process batch under the given name, replacing any
// existing batch with that name.
func (d *RuntimeDatasource) AddBatch(name string, batch interface{}) {
	d.batches[name] = batch
}

// Batch returns the batch registered under name.
func (d *RuntimeDatasource) Batch(name string) (interface{}, bool) {
	batch, ok := d.batches[name]
	return batch, ok
}
