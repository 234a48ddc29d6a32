// Package transform defines the contract every transformer implements: a pure
// function from an input snapshot plus typed arguments to an ordered family
// of keyed outputs and a missing-value report. Single-output transformers are
// the one-element special case, which lets the reconciliation engine treat
// all transformers uniformly.
package transform

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/mvr"
)

// Input is the snapshot a transformer runs against. ContextName identifies
// the host table; ContextTitle is the human-readable title used in output
// names and missing-value descriptors.
type Input struct {
	ContextName  string
	ContextTitle string
	Dataset      dataset.DataSet
}

// Output is one derived dataset. Key is the canonical group key for keyed
// families (dataset.GroupKey of the distinct value); single-output
// transformers leave it empty. Name and Description are the display strings
// the host shows for the derived table.
type Output struct {
	Key           string
	DistinctValue cty.Value
	Dataset       dataset.DataSet
	Name          string
	Description   string
}

// ApplyFunc computes a transformer's outputs from an input snapshot. It must
// be pure and deterministic: re-running on an unchanged input must reproduce
// identical datasets and the same set of keys, because the reconciliation
// engine matches keys against persisted state from the previous run.
type ApplyFunc func(ctx context.Context, in Input, args map[string]cty.Value) ([]Output, mvr.Report, error)
