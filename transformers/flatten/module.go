// Package flatten implements the flatten transformer: it collapses a
// dataset's grouping hierarchy into a single collection holding every
// attribute, in hierarchy order. Records are unchanged.
package flatten

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/config"
	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/mvr"
	"github.com/vk/tableflow/internal/registry"
	"github.com/vk/tableflow/internal/transform"
)

// Module implements registry.Module for this package.
type Module struct{}

// Register registers the flatten transformer kind. It takes no arguments.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransformer(&registry.RegisteredTransformer{
		Kind:  "flatten",
		Args:  map[string]config.ArgSpec{},
		Apply: Apply,
	})
}

// Apply adapts the pure Flatten operator to the transformer contract. The
// args map is always empty for this kind.
func Apply(ctx context.Context, in transform.Input, args map[string]cty.Value) ([]transform.Output, mvr.Report, error) {
	report := mvr.NewInput()
	output := transform.Output{
		Dataset: dataset.MakeImmutable(Flatten(in.Dataset)),
		Name:    fmt.Sprintf("Flatten(%s)", in.ContextTitle),
		Description: fmt.Sprintf(
			"A copy of the %s dataset with its grouping hierarchy collapsed into a single collection.",
			in.ContextTitle),
	}
	return []transform.Output{output}, report, nil
}

// Flatten merges every collection's attributes into one collection named
// "cases". Formulas are erased: a formula written against one grouping level
// cannot be trusted once that level is gone.
func Flatten(ds dataset.DataSet) dataset.DataSet {
	var attrs []dataset.Attribute
	for _, coll := range ds.Collections {
		attrs = append(attrs, coll.Clone().Attrs...)
	}
	dataset.EraseFormulas(attrs)

	records := make([]dataset.Case, len(ds.Records))
	for i, rec := range ds.Records {
		records[i] = rec.Clone()
	}

	return dataset.DataSet{
		Collections: []dataset.Collection{{Name: "cases", Attrs: attrs}},
		Records:     records,
	}
}
