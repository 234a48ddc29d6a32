package partition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/transform"
)

func salesDataset() dataset.DataSet {
	return dataset.DataSet{
		Collections: []dataset.Collection{
			{
				Name: "cases",
				Attrs: []dataset.Attribute{
					{Name: "Region"},
					{Name: "Sales", Type: "numeric"},
				},
			},
		},
		Records: []dataset.Case{
			{"Region": cty.StringVal("East"), "Sales": cty.NumberIntVal(10)},
			{"Region": cty.StringVal("West"), "Sales": cty.NumberIntVal(7)},
			{"Region": cty.StringVal("East"), "Sales": cty.NumberIntVal(3)},
		},
	}
}

func TestPartitionGroupsByValue(t *testing.T) {
	t.Parallel()
	out, report, err := Partition("Sales", salesDataset(), "Region")
	require.NoError(t, err)
	assert.True(t, report.Empty())
	require.Len(t, out, 2)

	// First-seen order over the record sequence.
	assert.True(t, out[0].DistinctValue.RawEquals(cty.StringVal("East")))
	assert.Len(t, out[0].Dataset.Records, 2)
	assert.True(t, out[1].DistinctValue.RawEquals(cty.StringVal("West")))
	assert.Len(t, out[1].Dataset.Records, 1)
}

func TestPartitionIsDisjointCover(t *testing.T) {
	t.Parallel()
	in := salesDataset()
	out, _, err := Partition("Sales", in, "Region")
	require.NoError(t, err)

	total := 0
	seen := make(map[string]bool)
	for _, pd := range out {
		total += len(pd.Dataset.Records)
		require.False(t, seen[pd.Key], "group key %q emitted twice", pd.Key)
		seen[pd.Key] = true
		for _, rec := range pd.Dataset.Records {
			assert.True(t, dataset.GroupKey(rec["Region"]) == pd.Key)
		}
	}
	assert.Equal(t, len(in.Records), total)
}

func TestPartitionOutputsShareInputSchema(t *testing.T) {
	t.Parallel()
	in := salesDataset()
	out, _, err := Partition("Sales", in, "Region")
	require.NoError(t, err)

	for _, pd := range out {
		assert.Equal(t, in.Collections, pd.Dataset.Collections)
	}
}

func TestPartitionMissingValuesCollapse(t *testing.T) {
	t.Parallel()
	ds := salesDataset()
	ds.Records = append(ds.Records,
		dataset.Case{"Region": cty.NullVal(cty.String), "Sales": cty.NumberIntVal(1)},
		dataset.Case{"Region": cty.StringVal(""), "Sales": cty.NumberIntVal(2)},
	)

	out, report, err := Partition("Sales", ds, "Region")
	require.NoError(t, err)

	// Null and empty string land in one distinguished group.
	require.Len(t, out, 3)
	missing := out[2]
	assert.Equal(t, dataset.GroupKey(cty.NullVal(cty.String)), missing.Key)
	assert.Len(t, missing.Dataset.Records, 2)

	require.Len(t, report.MissingValues, 2)
	assert.Equal(t, "Region", report.MissingValues[0].Attribute)
	assert.Equal(t, "Sales", report.MissingValues[0].Context)
	assert.Equal(t, 4, report.MissingValues[0].Row)
	assert.Equal(t, 5, report.MissingValues[1].Row)
}

func TestPartitionIsDeterministic(t *testing.T) {
	t.Parallel()
	first, _, err := Partition("Sales", salesDataset(), "Region")
	require.NoError(t, err)
	second, _, err := Partition("Sales", salesDataset(), "Region")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Dataset.Records, second[i].Dataset.Records)
	}
}

func TestPartitionUnknownAttribute(t *testing.T) {
	t.Parallel()
	_, _, err := Partition("Sales", salesDataset(), "Profit")

	var ierr *dataset.InvalidAttributeError
	require.ErrorAs(t, err, &ierr)
}

func TestApplyNamesAndKeys(t *testing.T) {
	t.Parallel()
	in := transform.Input{
		ContextName:  "ctx-sales",
		ContextTitle: "Sales",
		Dataset:      salesDataset(),
	}
	args := map[string]cty.Value{"attribute": cty.StringVal("Region")}

	outputs, report, err := Apply(context.Background(), in, args)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	require.Len(t, outputs, 2)

	assert.Equal(t, "Partition(Region = East, Sales)", outputs[0].Name)
	assert.Equal(t, "Partition(Region = West, Sales)", outputs[1].Name)
	assert.NotEqual(t, outputs[0].Key, outputs[1].Key)
	assert.Contains(t, outputs[0].Description, "partition of the Sales dataset")
}

func TestApplyReportsMissingExtraInfo(t *testing.T) {
	t.Parallel()
	ds := salesDataset()
	ds.Records[1]["Region"] = cty.NullVal(cty.String)
	in := transform.Input{ContextName: "ctx-sales", ContextTitle: "Sales", Dataset: ds}

	outputs, report, err := Apply(context.Background(), in,
		map[string]cty.Value{"attribute": cty.StringVal("Region")})
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.False(t, report.Empty())
	assert.Contains(t, report.ExtraInfo, "1 missing values were encountered")
	assert.Equal(t, "Partition(Region = a missing value, Sales)", outputs[1].Name)
}
