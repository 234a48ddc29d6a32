// Package selectattributes implements the attribute-projection transformer:
// the output dataset keeps only the chosen attributes (or everything except
// them), preserving record order and the grouping hierarchy.
package selectattributes

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/config"
	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/mvr"
	"github.com/vk/tableflow/internal/registry"
	"github.com/vk/tableflow/internal/transform"
)

// Module implements registry.Module for this package.
type Module struct{}

// Register registers the select_attributes transformer kind.
func (m *Module) Register(r *registry.Registry) {
	allButDefault := cty.False
	r.RegisterTransformer(&registry.RegisteredTransformer{
		Kind: "select_attributes",
		Args: map[string]config.ArgSpec{
			"attributes": {
				Type:        cty.List(cty.String),
				Description: "Attribute names to select, or to exclude when all_but is set.",
			},
			"all_but": {
				Type:        cty.Bool,
				Description: "Select every attribute except the listed ones.",
				Default:     &allButDefault,
			},
		},
		Apply: Apply,
	})
}

// Apply adapts the pure Select operator to the transformer contract. It is a
// single-output transformer, so the output carries an empty group key and an
// always-empty missing-value report: projection never samples values.
func Apply(ctx context.Context, in transform.Input, args map[string]cty.Value) ([]transform.Output, mvr.Report, error) {
	report := mvr.NewInput()

	var attributes []string
	for _, v := range args["attributes"].AsValueSlice() {
		attributes = append(attributes, v.AsString())
	}
	allBut := args["all_but"].True()

	out, err := Select(in.Dataset, attributes, allBut)
	if err != nil {
		return nil, report, err
	}

	output := transform.Output{
		Dataset: dataset.MakeImmutable(out),
		Name:    fmt.Sprintf("SelectAttributes(%s)", in.ContextTitle),
		Description: fmt.Sprintf(
			"A copy of the %s dataset containing only the attributes: %s",
			in.ContextTitle, strings.Join(dataset.AttributeNames(out.Collections), ", ")),
	}
	return []transform.Output{output}, report, nil
}

// Select constructs a dataset with only the indicated attributes included and
// all others removed. If allBut is set, the selection is inverted against the
// full attribute set of the input.
func Select(ds dataset.DataSet, attributes []string, allBut bool) (dataset.DataSet, error) {
	selected := resolveSelection(ds, attributes, allBut)
	if len(selected) == 0 {
		return dataset.DataSet{}, transform.Validationf(
			"transformed dataset must contain at least one attribute (0 selected)")
	}

	keep := make(map[string]bool, len(selected))
	for _, name := range selected {
		keep[name] = true
	}

	// Copy records with only the selected keys, preserving order. A selected
	// key absent from a record is an inconsistent dataset, not a normal
	// missing value.
	records := make([]dataset.Case, 0, len(ds.Records))
	for _, rec := range ds.Records {
		projected := make(dataset.Case, len(selected))
		for _, name := range selected {
			v, ok := rec[name]
			if !ok {
				return dataset.DataSet{}, transform.DataShapef("invalid attribute name: %s", name)
			}
			projected[name] = v
		}
		records = append(records, projected)
	}

	// Filter each collection's attribute list down to the selection. Surviving
	// attributes lose their formulas: they may have been separated from the
	// attributes the formula reads.
	collections := make([]dataset.Collection, 0, len(ds.Collections))
	for _, coll := range ds.Collections {
		c := coll.Clone()
		if c.Attrs != nil {
			kept := make([]dataset.Attribute, 0, len(c.Attrs))
			for _, attr := range c.Attrs {
				if keep[attr.Name] {
					kept = append(kept, attr)
				}
			}
			dataset.EraseFormulas(kept)
			c.Attrs = kept
		}
		collections = append(collections, c)
	}

	// Structurally emptied levels are reparented out of the hierarchy rather
	// than dropped, so no case loses its place.
	for _, coll := range collections {
		if coll.Attrs != nil && len(coll.Attrs) == 0 {
			collections = dataset.Reparent(collections, coll)
		}
	}

	return dataset.DataSet{Collections: collections, Records: records}, nil
}

// resolveSelection returns the effective attribute selection: the given list,
// or its complement over the dataset's full attribute set when allBut is set.
func resolveSelection(ds dataset.DataSet, attributes []string, allBut bool) []string {
	if !allBut {
		return attributes
	}
	excluded := make(map[string]bool, len(attributes))
	for _, name := range attributes {
		excluded[name] = true
	}
	var selected []string
	for _, name := range dataset.AttributeNames(ds.Collections) {
		if !excluded[name] {
			selected = append(selected, name)
		}
	}
	return selected
}
