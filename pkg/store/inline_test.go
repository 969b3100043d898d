package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/errors"
)

func TestInlineBackendRoundTripsDatasourceConfigs(t *testing.T) {
	cfg := &config.ProjectConfig{ConfigVersion: config.CurrentConfigVersion}
	b := NewInlineBackend(cfg)

	require.NoError(t, b.Set("events", []byte(`{"kind":"filesystem","options":{"base_directory":"data","password":"${db_pw}"}}`)))

	// Mutations through the backend are visible in the owning config,
	// placeholders intact.
	dc, ok := cfg.Datasources["events"]
	require.True(t, ok)
	assert.Equal(t, "filesystem", dc.Kind)
	assert.Equal(t, "${db_pw}", dc.Options["password"])

	value, err := b.Get("events")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"filesystem","options":{"base_directory":"data","password":"${db_pw}"}}`, string(value))
}

func TestInlineBackendSeesConfigMutations(t *testing.T) {
	cfg := &config.ProjectConfig{
		ConfigVersion: config.CurrentConfigVersion,
		Datasources: map[string]config.DatasourceConfig{
			"preexisting": {Kind: "runtime"},
		},
	}
	b := NewInlineBackend(cfg)

	keys, err := b.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"preexisting"}, keys)

	cfg.Datasources["added_directly"] = config.DatasourceConfig{Kind: "runtime"}
	has, err := b.Has("added_directly")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestInlineBackendDelete(t *testing.T) {
	cfg := &config.ProjectConfig{
		ConfigVersion: config.CurrentConfigVersion,
		Datasources: map[string]config.DatasourceConfig{
			"events": {Kind: "runtime"},
		},
	}
	b := NewInlineBackend(cfg)

	require.NoError(t, b.Delete("events"))
	assert.NotContains(t, cfg.Datasources, "events")
	assert.True(t, errors.IsType(b.Delete("events"), errors.ErrorTypeNotFound))
}
