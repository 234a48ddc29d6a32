// Package config loads the declarative tableflow configuration: one host
// block naming the analysis application to connect to, and any number of
// transformer blocks, each binding a transformer kind to an input context
// with typed arguments.
package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/tableflow/internal/ctxlog"
)

// HostConfig is the `host` block: where to reach the analysis application.
type HostConfig struct {
	URL    string `hcl:"url"`
	Plugin string `hcl:"plugin_name,optional"`
}

// argsBlock defers decoding of a transformer's `arguments` block until the
// registered argument schema for its kind is known.
type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// transformerBlock mirrors one `transformer "<kind>" "<name>"` block.
type transformerBlock struct {
	Kind      string     `hcl:"kind,label"`
	Name      string     `hcl:"instance_name,label"`
	Input     string     `hcl:"input"`
	DependsOn []string   `hcl:"depends_on,optional"`
	Arguments *argsBlock `hcl:"arguments,block"`
}

// fileSchema is the top-level structure of a tableflow config file.
type fileSchema struct {
	Host         *HostConfig         `hcl:"host,block"`
	Transformers []*transformerBlock `hcl:"transformer,block"`
}

// Transformer is one configured transformer instance. Arguments stay as an
// undecoded HCL body until DecodeArgs is called with the kind's schema.
type Transformer struct {
	Kind      string
	Name      string
	Input     string
	DependsOn []string

	args hcl.Body
}

// Model is the format-agnostic result of loading a config file.
type Model struct {
	Host         HostConfig
	Transformers []*Transformer
}

// ArgSpec declares one argument a transformer kind accepts. A nil Default
// makes the argument required.
type ArgSpec struct {
	Type        cty.Type
	Description string
	Default     *cty.Value
}

// Load parses the HCL file at path into a Model.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading configuration file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var raw fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	model := &Model{}
	if raw.Host != nil {
		model.Host = *raw.Host
	}
	seen := make(map[string]bool, len(raw.Transformers))
	for _, block := range raw.Transformers {
		if seen[block.Name] {
			return nil, fmt.Errorf("duplicate transformer instance name: %s", block.Name)
		}
		seen[block.Name] = true

		t := &Transformer{
			Kind:      block.Kind,
			Name:      block.Name,
			Input:     block.Input,
			DependsOn: block.DependsOn,
		}
		if block.Arguments != nil {
			t.args = block.Arguments.Body
		}
		model.Transformers = append(model.Transformers, t)
	}
	logger.Debug("Configuration loaded.", "transformers", len(model.Transformers))
	return model, nil
}

// DecodeArgs evaluates the instance's argument block against the kind's
// schema: unknown arguments are rejected, required arguments enforced,
// defaults applied, and every value converted to its declared type.
func (t *Transformer) DecodeArgs(specs map[string]ArgSpec) (map[string]cty.Value, error) {
	attrs := hcl.Attributes{}
	if t.args != nil {
		var diags hcl.Diagnostics
		attrs, diags = t.args.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("arguments of %s: %w", t.Name, diags)
		}
	}

	out := make(map[string]cty.Value, len(specs))
	for name, attr := range attrs {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("transformer %s: unknown argument %q", t.Name, name)
		}
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("transformer %s: argument %q: %w", t.Name, name, diags)
		}
		converted, err := convert.Convert(v, spec.Type)
		if err != nil {
			return nil, fmt.Errorf("transformer %s: argument %q: %w", t.Name, name, err)
		}
		out[name] = converted
	}

	for name, spec := range specs {
		if _, ok := out[name]; ok {
			continue
		}
		if spec.Default == nil {
			return nil, fmt.Errorf("transformer %s: missing required argument %q", t.Name, name)
		}
		out[name] = *spec.Default
	}
	return out, nil
}
