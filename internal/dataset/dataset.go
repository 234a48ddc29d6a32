// Package dataset holds the value types for hierarchical tabular data as the
// analysis host exposes it: an ordered hierarchy of collections, each owning a
// slice of attributes, and a flat sequence of cases carrying one value per
// attribute. All attribute values are cty.Value so that the engine has a
// single typed representation for everything the host can produce.
package dataset

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Attribute describes a single column of a dataset. Name is unique across the
// whole dataset, not just its collection, so cases can be flat maps.
type Attribute struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Formula is a host-side derived-value expression. It is only meaningful
	// while every attribute it references stays in the same dataset, so
	// transformers that may separate attributes must erase it.
	Formula string `json:"formula,omitempty"`

	Type      string `json:"type,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Precision int    `json:"precision,omitempty"`

	// Editable is a tri-state host flag; nil means "host default" (editable).
	Editable *bool `json:"editable,omitempty"`
}

// Collection is one level of the grouping hierarchy. A nil Attrs slice means
// the level's attributes were never specified by the host, which is distinct
// from an explicitly empty level.
type Collection struct {
	Name   string      `json:"name"`
	Title  string      `json:"title,omitempty"`
	Attrs  []Attribute `json:"attrs,omitempty"`
	Labels Labels      `json:"labels,omitempty"`
}

// Labels carries the host's singular/plural display names for a collection's
// cases. Purely cosmetic; transformers copy it through untouched.
type Labels struct {
	SingleCase string `json:"singleCase,omitempty"`
	PluralCase string `json:"pluralCase,omitempty"`
}

// Case is one row. It is flat across the whole dataset: the map holds a key
// for every attribute of every collection, regardless of which level the
// attribute nominally belongs to.
type Case map[string]cty.Value

// DataSet is an immutable-by-convention snapshot of a host table. Collections
// are ordered parent first; index i is the parent level of index i+1. Record
// order carries no transform semantics but is preserved for stability.
type DataSet struct {
	Collections []Collection `json:"collections"`
	Records     []Case       `json:"records"`
}

// InvalidAttributeError reports a reference to an attribute that no collection
// of the dataset defines.
type InvalidAttributeError struct {
	Attribute string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("invalid attribute name: %s", e.Attribute)
}

// ValidateAttribute fails with an InvalidAttributeError if name does not
// appear in any collection's attribute list.
func ValidateAttribute(collections []Collection, name string) error {
	for _, coll := range collections {
		for _, attr := range coll.Attrs {
			if attr.Name == name {
				return nil
			}
		}
	}
	return &InvalidAttributeError{Attribute: name}
}

// AttributeNames returns the names of every attribute across all collections,
// in hierarchy order.
func AttributeNames(collections []Collection) []string {
	var names []string
	for _, coll := range collections {
		for _, attr := range coll.Attrs {
			names = append(names, attr.Name)
		}
	}
	return names
}

// EraseFormulas clears the formula on every attribute in the slice, in place.
// Transformers call this whenever an attribute may be separated from the
// attributes its formula reads.
func EraseFormulas(attrs []Attribute) {
	for i := range attrs {
		attrs[i].Formula = ""
	}
}

// Clone returns a deep copy of the collection. Attribute values inside cases
// are immutable and are never aliased through a Collection, so only the
// attribute slice needs copying.
func (c Collection) Clone() Collection {
	out := c
	if c.Attrs != nil {
		out.Attrs = make([]Attribute, len(c.Attrs))
		copy(out.Attrs, c.Attrs)
		for i, attr := range c.Attrs {
			if attr.Editable != nil {
				e := *attr.Editable
				out.Attrs[i].Editable = &e
			}
		}
	}
	return out
}

// Clone returns a deep copy of the case. cty values are themselves immutable,
// so sharing them is safe.
func (c Case) Clone() Case {
	out := make(Case, len(c))
	for name, v := range c {
		out[name] = v
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (d DataSet) Clone() DataSet {
	out := DataSet{
		Collections: make([]Collection, len(d.Collections)),
		Records:     make([]Case, len(d.Records)),
	}
	for i, coll := range d.Collections {
		out.Collections[i] = coll.Clone()
	}
	for i, rec := range d.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// MakeImmutable returns a deep copy with every attribute flagged non-editable,
// so the host renders derived output as read-only. This is defensive-copy
// semantics for downstream consumers, not enforced mutation prevention.
func MakeImmutable(d DataSet) DataSet {
	out := d.Clone()
	ro := false
	for i := range out.Collections {
		for j := range out.Collections[i].Attrs {
			e := ro
			out.Collections[i].Attrs[j].Editable = &e
		}
	}
	return out
}
