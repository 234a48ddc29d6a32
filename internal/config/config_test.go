package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tableflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleConfig = `
host {
  url         = "http://localhost:8080"
  plugin_name = "tableflow"
}

transformer "partition" "split_sales" {
  input = "ctx-sales"

  arguments {
    attribute = "Region"
  }
}

transformer "flatten" "flat_sales" {
  input      = "ctx-sales"
  depends_on = ["split_sales"]
}
`

func TestLoad(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, sampleConfig)

	model, err := config.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", model.Host.URL)
	assert.Equal(t, "tableflow", model.Host.Plugin)

	require.Len(t, model.Transformers, 2)
	first := model.Transformers[0]
	assert.Equal(t, "partition", first.Kind)
	assert.Equal(t, "split_sales", first.Name)
	assert.Equal(t, "ctx-sales", first.Input)

	second := model.Transformers[1]
	assert.Equal(t, "flatten", second.Kind)
	assert.Equal(t, []string{"split_sales"}, second.DependsOn)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `transformer "partition" {`)
	_, err := config.Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoadDuplicateInstanceName(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
transformer "flatten" "twice" {
  input = "ctx-a"
}
transformer "flatten" "twice" {
  input = "ctx-b"
}
`)
	_, err := config.Load(context.Background(), path)
	require.ErrorContains(t, err, "duplicate transformer instance name")
}

func partitionSpecs() map[string]config.ArgSpec {
	return map[string]config.ArgSpec{
		"attribute": {Type: cty.String},
	}
}

func selectSpecs() map[string]config.ArgSpec {
	allBut := cty.False
	return map[string]config.ArgSpec{
		"attributes": {Type: cty.List(cty.String)},
		"all_but":    {Type: cty.Bool, Default: &allBut},
	}
}

func loadOne(t *testing.T, content string) *config.Transformer {
	t.Helper()
	model, err := config.Load(context.Background(), writeConfig(t, content))
	require.NoError(t, err)
	require.Len(t, model.Transformers, 1)
	return model.Transformers[0]
}

func TestDecodeArgs(t *testing.T) {
	t.Parallel()
	tr := loadOne(t, `
transformer "partition" "p" {
  input = "ctx-a"
  arguments {
    attribute = "Region"
  }
}
`)
	args, err := tr.DecodeArgs(partitionSpecs())
	require.NoError(t, err)
	assert.True(t, args["attribute"].RawEquals(cty.StringVal("Region")))
}

func TestDecodeArgsAppliesDefaults(t *testing.T) {
	t.Parallel()
	tr := loadOne(t, `
transformer "select_attributes" "s" {
  input = "ctx-a"
  arguments {
    attributes = ["Region", "Sales"]
  }
}
`)
	args, err := tr.DecodeArgs(selectSpecs())
	require.NoError(t, err)
	assert.True(t, args["all_but"].RawEquals(cty.False))
	assert.True(t, args["attributes"].RawEquals(
		cty.ListVal([]cty.Value{cty.StringVal("Region"), cty.StringVal("Sales")})))
}

func TestDecodeArgsMissingRequired(t *testing.T) {
	t.Parallel()
	tr := loadOne(t, `
transformer "partition" "p" {
  input = "ctx-a"
}
`)
	_, err := tr.DecodeArgs(partitionSpecs())
	require.ErrorContains(t, err, `missing required argument "attribute"`)
}

func TestDecodeArgsUnknownArgument(t *testing.T) {
	t.Parallel()
	tr := loadOne(t, `
transformer "partition" "p" {
  input = "ctx-a"
  arguments {
    attribute = "Region"
    verbose   = true
  }
}
`)
	_, err := tr.DecodeArgs(partitionSpecs())
	require.ErrorContains(t, err, `unknown argument "verbose"`)
}

func TestDecodeArgsConvertsTypes(t *testing.T) {
	t.Parallel()
	// HCL number literals convert to the declared string type.
	tr := loadOne(t, `
transformer "partition" "p" {
  input = "ctx-a"
  arguments {
    attribute = 7
  }
}
`)
	args, err := tr.DecodeArgs(partitionSpecs())
	require.NoError(t, err)
	assert.True(t, args["attribute"].RawEquals(cty.StringVal("7")))
}

func TestDecodeArgsNoBlockNoSpecs(t *testing.T) {
	t.Parallel()
	tr := loadOne(t, `
transformer "flatten" "f" {
  input = "ctx-a"
}
`)
	args, err := tr.DecodeArgs(map[string]config.ArgSpec{})
	require.NoError(t, err)
	assert.Empty(t, args)
}
