package selectattributes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/transform"
)

func sampleDataset() dataset.DataSet {
	return dataset.DataSet{
		Collections: []dataset.Collection{
			{
				Name: "regions",
				Attrs: []dataset.Attribute{
					{Name: "Region"},
				},
			},
			{
				Name: "cases",
				Attrs: []dataset.Attribute{
					{Name: "City", Formula: "concat(Region, '-')"},
					{Name: "Sales", Type: "numeric"},
				},
			},
		},
		Records: []dataset.Case{
			{"Region": cty.StringVal("East"), "City": cty.StringVal("Boston"), "Sales": cty.NumberIntVal(10)},
			{"Region": cty.StringVal("West"), "City": cty.StringVal("Reno"), "Sales": cty.NumberIntVal(7)},
		},
	}
}

func TestSelectKeepsOnlyListedAttributes(t *testing.T) {
	t.Parallel()
	out, err := Select(sampleDataset(), []string{"Region", "Sales"}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Region", "Sales"}, dataset.AttributeNames(out.Collections))
	require.Len(t, out.Records, 2)
	for _, rec := range out.Records {
		assert.Len(t, rec, 2)
		assert.NotContains(t, rec, "City")
	}
	assert.True(t, out.Records[0]["Sales"].RawEquals(cty.NumberIntVal(10)))
}

func TestSelectAllButIsComplement(t *testing.T) {
	t.Parallel()
	direct, err := Select(sampleDataset(), []string{"Region", "Sales"}, false)
	require.NoError(t, err)

	inverted, err := Select(sampleDataset(), []string{"City"}, true)
	require.NoError(t, err)

	assert.Equal(t,
		dataset.AttributeNames(direct.Collections),
		dataset.AttributeNames(inverted.Collections))
	assert.Equal(t, direct.Records, inverted.Records)
}

func TestSelectErasesFormulas(t *testing.T) {
	t.Parallel()
	out, err := Select(sampleDataset(), []string{"City"}, false)
	require.NoError(t, err)

	for _, coll := range out.Collections {
		for _, attr := range coll.Attrs {
			assert.Empty(t, attr.Formula)
		}
	}
}

func TestSelectReparentsEmptiedLevels(t *testing.T) {
	t.Parallel()
	// Selecting only child attributes empties the parent level; its (absent)
	// attributes fold into the child rather than leaving a hollow level.
	out, err := Select(sampleDataset(), []string{"City", "Sales"}, false)
	require.NoError(t, err)

	require.Len(t, out.Collections, 1)
	assert.Equal(t, "cases", out.Collections[0].Name)
}

func TestSelectEmptySelection(t *testing.T) {
	t.Parallel()
	_, err := Select(sampleDataset(), nil, false)

	var verr *transform.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSelectAllButEverything(t *testing.T) {
	t.Parallel()
	_, err := Select(sampleDataset(), []string{"Region", "City", "Sales"}, true)

	var verr *transform.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSelectUnknownAttribute(t *testing.T) {
	t.Parallel()
	_, err := Select(sampleDataset(), []string{"Region", "Profit"}, false)

	var derr *transform.DataShapeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "Profit")
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := sampleDataset()
	_, err := Select(in, []string{"Region"}, false)
	require.NoError(t, err)

	assert.Equal(t, sampleDataset(), in)
}

func TestApplySingleImmutableOutput(t *testing.T) {
	t.Parallel()
	in := transform.Input{
		ContextName:  "ctx-sales",
		ContextTitle: "Sales",
		Dataset:      sampleDataset(),
	}
	args := map[string]cty.Value{
		"attributes": cty.ListVal([]cty.Value{cty.StringVal("Region")}),
		"all_but":    cty.False,
	}

	outputs, report, err := Apply(context.Background(), in, args)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.True(t, report.Empty())

	out := outputs[0]
	assert.Empty(t, out.Key)
	assert.Equal(t, "SelectAttributes(Sales)", out.Name)
	assert.Contains(t, out.Description, "Region")
	for _, coll := range out.Dataset.Collections {
		for _, attr := range coll.Attrs {
			require.NotNil(t, attr.Editable)
			assert.False(t, *attr.Editable)
		}
	}
}
