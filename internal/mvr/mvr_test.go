package mvr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportAdd(t *testing.T) {
	t.Parallel()
	report := NewInput()
	require.True(t, report.Empty())

	report.Add("Sales Table", "Region", 0)
	report.Add("Sales Table", "Region", 4)

	require.False(t, report.Empty())
	require.Len(t, report.MissingValues, 2)
	assert.Equal(t, Descriptor{Context: "Sales Table", Attribute: "Region", Row: 1}, report.MissingValues[0])
	assert.Equal(t, Descriptor{Context: "Sales Table", Attribute: "Region", Row: 5}, report.MissingValues[1])
	assert.Equal(t, KindInput, report.Kind)
}

func TestReportSummary(t *testing.T) {
	t.Parallel()
	report := NewInput()
	assert.Equal(t, "no missing values encountered", report.Summary())

	report.Add("T", "A", 2)
	assert.Equal(t, "1 missing values encountered", report.Summary())
}
