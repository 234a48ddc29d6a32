package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func prevSet(pairs ...[2]string) *OutputSet {
	set := NewOutputSet()
	for _, p := range pairs {
		set.Put(p[0], p[1], false)
	}
	return set
}

func TestBuildPlanUpdateCreateDelete(t *testing.T) {
	t.Parallel()
	// Previous run produced groups a and b; the new input has b and c.
	prev := prevSet([2]string{"a", "X"}, [2]string{"b", "Y"})

	plan := BuildPlan(prev, []string{"b", "c"})

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "Y", plan.Updates[0].Context)
	assert.Equal(t, "b", plan.Updates[0].Key)
	assert.True(t, plan.Updates[0].RefreshTitle)

	assert.Equal(t, []string{"c"}, plan.Creates)
	assert.Equal(t, []string{"X"}, plan.Deletes)
}

func TestBuildPlanPreservesEditedTitles(t *testing.T) {
	t.Parallel()
	prev := NewOutputSet()
	prev.Put("b", "Y", true)

	plan := BuildPlan(prev, []string{"b"})

	require.Len(t, plan.Updates, 1)
	assert.False(t, plan.Updates[0].RefreshTitle,
		"a user-retitled output must keep its title even when parameters changed")
}

func TestBuildPlanFirstRun(t *testing.T) {
	t.Parallel()
	plan := BuildPlan(NewOutputSet(), []string{"a", "b"})

	assert.Empty(t, plan.Updates)
	assert.Equal(t, []string{"a", "b"}, plan.Creates)
	assert.Empty(t, plan.Deletes)
}

func TestBuildPlanEmptyFresh(t *testing.T) {
	t.Parallel()
	prev := prevSet([2]string{"a", "X"}, [2]string{"b", "Y"})

	plan := BuildPlan(prev, nil)

	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Creates)
	assert.Equal(t, []string{"X", "Y"}, plan.Deletes)
}

func TestBuildPlanOrderIsDeterministic(t *testing.T) {
	t.Parallel()
	prev := prevSet([2]string{"k1", "C1"}, [2]string{"k2", "C2"}, [2]string{"k3", "C3"})
	fresh := []string{"k3", "k4", "k1", "k5"}

	plan := BuildPlan(prev, fresh)

	// Updates and creates follow fresh-key order, deletes previous order.
	assert.Equal(t, []Update{
		{Key: "k3", Context: "C3", RefreshTitle: true},
		{Key: "k1", Context: "C1", RefreshTitle: true},
	}, plan.Updates)
	assert.Equal(t, []string{"k4", "k5"}, plan.Creates)
	assert.Equal(t, []string{"C2"}, plan.Deletes)
}

func TestOutputSetIndexes(t *testing.T) {
	t.Parallel()
	set := NewOutputSet()
	set.Put("east", "ctx-1", false)
	set.Put("west", "ctx-2", false)

	id, ok := set.ByKey("east")
	require.True(t, ok)
	assert.Equal(t, "ctx-1", id)

	_, ok = set.ByKey("north")
	assert.False(t, ok)

	assert.Equal(t, []string{"ctx-1", "ctx-2"}, set.Contexts())
	assert.Equal(t, map[string]string{"east": "ctx-1", "west": "ctx-2"}, set.Mapping())
	assert.Equal(t, 2, set.Len())

	require.True(t, set.MarkEdited("ctx-2"))
	assert.True(t, set.Edited("ctx-2"))
	assert.False(t, set.Edited("ctx-1"))
	assert.False(t, set.MarkEdited("ctx-9"))
}

func TestStateRoundTripThroughOutputSet(t *testing.T) {
	t.Parallel()
	st := State{
		Transformer:    "partition",
		InputContext:   "ctx-in",
		OutputContexts: []string{"ctx-1", "ctx-2"},
		ValueToContext: map[string]string{"east": "ctx-1", "west": "ctx-2"},
		EditedOutputs:  []string{"ctx-2"},
	}

	set := st.OutputSet()
	assert.Equal(t, []string{"ctx-1", "ctx-2"}, set.Contexts())
	assert.True(t, set.Edited("ctx-2"))

	back := st.FromOutputSet(set)
	assert.Equal(t, st.OutputContexts, back.OutputContexts)
	assert.Equal(t, st.ValueToContext, back.ValueToContext)
	assert.Equal(t, st.EditedOutputs, back.EditedOutputs)
}

func TestStateJSONRoundTrip(t *testing.T) {
	t.Parallel()
	st := State{
		Transformer:  "partition",
		InputContext: "ctx-in",
		Args: map[string]cty.Value{
			"attribute": cty.StringVal("Region"),
			"all_but":   cty.False,
		},
		OutputContexts: []string{"ctx-1"},
		ValueToContext: map[string]string{`string#"East"`: "ctx-1"},
		EditedOutputs:  []string{"ctx-1"},
	}

	encoded, err := json.Marshal(st)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, st.Transformer, decoded.Transformer)
	assert.Equal(t, st.InputContext, decoded.InputContext)
	assert.Equal(t, st.OutputContexts, decoded.OutputContexts)
	assert.Equal(t, st.ValueToContext, decoded.ValueToContext)
	assert.Equal(t, st.EditedOutputs, decoded.EditedOutputs)
	require.Len(t, decoded.Args, 2)
	assert.True(t, decoded.Args["attribute"].RawEquals(cty.StringVal("Region")))
	assert.True(t, decoded.Args["all_but"].RawEquals(cty.False))
}
