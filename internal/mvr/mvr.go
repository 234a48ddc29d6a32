// Package mvr accumulates missing-value reports: which rows of which input
// had absent values while a transformer sampled an attribute. The update
// orchestrator turns a non-empty report into a confirmation prompt and marks
// every committed output name so consumers know the data has gaps.
package mvr

import "fmt"

// Kind says which side of a transform the missing values were observed on.
type Kind string

// KindInput marks values that were missing in the transformer's input.
const KindInput Kind = "input"

// ScareSymbol is appended to every committed output name derived from an
// input with missing values.
const ScareSymbol = "⚠️"

// Warning is the confirmation message shown before committing outputs of a
// transform that encountered missing values.
const Warning = "The input dataset contains missing values. " +
	"Proceed with the transformation anyway?"

// Descriptor locates one missing value: the title of the context it came
// from, the sampled attribute, and the 1-based row as the host displays it.
type Descriptor struct {
	Context   string `json:"context"`
	Attribute string `json:"attribute"`
	Row       int    `json:"row"`
}

// Report is the accumulated record of missing values for one transform run.
type Report struct {
	Kind          Kind         `json:"kind"`
	MissingValues []Descriptor `json:"missingValues"`
	ExtraInfo     string       `json:"extraInfo,omitempty"`
}

// NewInput returns an empty report for input-side sampling.
func NewInput() Report {
	return Report{Kind: KindInput}
}

// Add appends one descriptor. recordIndex is the 0-based index into the input
// record sequence; rows are reported 1-based.
func (r *Report) Add(contextTitle, attribute string, recordIndex int) {
	r.MissingValues = append(r.MissingValues, Descriptor{
		Context:   contextTitle,
		Attribute: attribute,
		Row:       recordIndex + 1,
	})
}

// Empty reports whether no missing values were recorded.
func (r *Report) Empty() bool {
	return len(r.MissingValues) == 0
}

// Summary is a short human-readable account of the report, used in host
// notifications alongside ExtraInfo.
func (r *Report) Summary() string {
	if r.Empty() {
		return "no missing values encountered"
	}
	return fmt.Sprintf("%d missing values encountered", len(r.MissingValues))
}
