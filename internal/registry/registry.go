// Package registry holds the transformer kinds available to a single
// application instance. Transformer packages self-register through the
// Module interface, mirroring how host modules plug into the engine.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/tableflow/internal/config"
	"github.com/vk/tableflow/internal/ctxlog"
	"github.com/vk/tableflow/internal/transform"
)

// Module is the interface every transformer package implements to be
// registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredTransformer couples a kind name with its argument schema and its
// pure apply function.
type RegisteredTransformer struct {
	// Kind is the name transformer blocks reference in configuration.
	Kind string

	// Args declares the arguments the kind accepts; required ones have a nil
	// default.
	Args map[string]config.ArgSpec

	// Apply computes the keyed output family for one input snapshot.
	Apply transform.ApplyFunc
}

// Registry maps transformer kinds to their registrations.
type Registry struct {
	transformers map[string]*RegisteredTransformer
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		transformers: make(map[string]*RegisteredTransformer),
	}
}

// RegisterTransformer adds a kind to the registry. Registering the same kind
// twice is a programmer error and panics during startup.
func (r *Registry) RegisterTransformer(t *RegisteredTransformer) {
	if _, exists := r.transformers[t.Kind]; exists {
		panic(fmt.Errorf("transformer kind registered twice: %s", t.Kind))
	}
	r.transformers[t.Kind] = t
}

// Lookup resolves a kind name.
func (r *Registry) Lookup(kind string) (*RegisteredTransformer, error) {
	t, ok := r.transformers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown transformer kind: %s", kind)
	}
	return t, nil
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.transformers))
	for kind := range r.transformers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks the integrity of every registration: a kind must carry an
// apply function and every declared default must match its argument type.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for kind, t := range r.transformers {
		if t.Apply == nil {
			return fmt.Errorf("transformer kind %s has no apply function", kind)
		}
		for name, spec := range t.Args {
			if spec.Default == nil {
				continue
			}
			if errs := spec.Default.Type().TestConformance(spec.Type); len(errs) > 0 {
				return fmt.Errorf("transformer kind %s: default for %q does not conform to its declared type", kind, name)
			}
		}
	}
	logger.Debug("Registry validation passed.", "kinds", r.Kinds())
	return nil
}
