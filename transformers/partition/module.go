// Package partition implements the partition transformer: it breaks a dataset
// into one output dataset per distinct value of a chosen attribute. Grouping
// never changes the schema; every output shares the input's collection
// structure and holds only its group's records.
package partition

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

// Register registers the partition transformer kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransformer(&registry.RegisteredTransformer{
		Kind: "partition",
		Args: map[string]config.ArgSpec{
			"attribute": {
				Type:        cty.String,
				Description: "Attribute whose distinct values define the output datasets.",
			},
		},
		Apply: Apply,
	})
}

// PartitionDataset is one output of a partition: the group's records under
// the input's schema, the raw distinct value all of them share for the
// partitioned attribute, and that value's canonical group key.
type PartitionDataset struct {
	Dataset       dataset.DataSet
	DistinctValue cty.Value
	Key           string
}

// Apply adapts the pure Partition operator to the transformer contract,
// naming each output after its distinct value.
func Apply(ctx context.Context, in transform.Input, args map[string]cty.Value) ([]transform.Output, mvr.Report, error) {
	attribute := args["attribute"].AsString()

	partitioned, report, err := Partition(in.ContextTitle, in.Dataset, attribute)
	if err != nil {
		return nil, report, err
	}

	if !report.Empty() {
		report.ExtraInfo = fmt.Sprintf(
			"%d missing values were encountered in the partitioned attribute. "+
				"One of the output datasets will contain only rows that had missing "+
				"values for this attribute.", len(report.MissingValues))
	}

	outputs := make([]transform.Output, 0, len(partitioned))
	for _, pd := range partitioned {
		outputs = append(outputs, transform.Output{
			Key:           pd.Key,
			DistinctValue: pd.DistinctValue,
			Dataset:       dataset.MakeImmutable(pd.Dataset),
			Name: fmt.Sprintf("Partition(%s = %s, %s)",
				attribute, dataset.ValueToString(pd.DistinctValue), in.ContextTitle),
			Description: Description(pd, in.ContextTitle, attribute),
		})
	}
	return outputs, report, nil
}

// Description renders the host-visible description of one partition output.
func Description(pd PartitionDataset, originalContext, attribute string) string {
	return fmt.Sprintf(
		"One of the datasets from a partition of the %s dataset by the %s attribute. "+
			"This dataset contains all cases from the original which had a value of %s "+
			"for the %s attribute.",
		originalContext, attribute, dataset.ValueToString(pd.DistinctValue), attribute)
}

// Partition groups the dataset's records by their value for the given
// attribute. Grouping is total and deterministic: every record lands in
// exactly one group, keyed by the value's canonical string, with missing
// values collapsing into one distinguished group; group order is first-seen
// order over the input record sequence. Each record whose value is missing
// contributes one entry to the report.
func Partition(contextTitle string, ds dataset.DataSet, attribute string) ([]PartitionDataset, mvr.Report, error) {
	report := mvr.NewInput()
	if err := dataset.ValidateAttribute(ds.Collections, attribute); err != nil {
		return nil, report, err
	}

	type group struct {
		value   cty.Value
		records []dataset.Case
	}
	groups := make(map[string]*group)
	var order []string

	for i, rec := range ds.Records {
		v, ok := rec[attribute]
		if !ok {
			v = cty.NullVal(cty.DynamicPseudoType)
		}
		if dataset.IsMissing(v) {
			report.Add(contextTitle, attribute, i)
		}

		key := dataset.GroupKey(v)
		g, seen := groups[key]
		if !seen {
			g = &group{value: v}
			groups[key] = g
			order = append(order, key)
		}
		g.records = append(g.records, rec)
	}

	out := make([]PartitionDataset, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, PartitionDataset{
			Dataset: dataset.DataSet{
				Collections: ds.Collections,
				Records:     g.records,
			},
			DistinctValue: g.value,
			Key:           key,
		})
	}
	return out, report, nil
}
