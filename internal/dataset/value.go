package dataset

import (
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// missingKey is the canonical group key shared by every missing value. The
// trailing separator keeps it out of the namespace of real type kinds.
const missingKey = "missing#"

// IsMissing reports whether v is the host's "absent cell" sentinel. The host
// encodes absent cells either as null or as the empty string, and both must
// collapse to the same group during partitioning.
func IsMissing(v cty.Value) bool {
	if v.IsNull() {
		return true
	}
	if !v.IsKnown() {
		return true
	}
	return v.Type() == cty.String && v.AsString() == ""
}

// ValueToString renders an attribute value for display in output names,
// descriptions and messages. It is total: every value the host can produce
// has a rendering, including the missing sentinel.
func ValueToString(v cty.Value) string {
	if IsMissing(v) {
		return "a missing value"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	}
	// Compound host values (lists, boundary objects) fall back to JSON form.
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// GroupKey returns the canonical string key used to bucket records by value.
// It must be total and deterministic, and distinct values of any kind the
// host's type system can produce must never collide: the key is prefixed by
// the value's type kind, so the string "1", the number 1 and the boolean true
// all map to different keys even though their JSON bodies could overlap.
func GroupKey(v cty.Value) string {
	if IsMissing(v) {
		return missingKey
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		// Unknown or marked values cannot come out of the host's JSON wire
		// format; GoString keeps the key total regardless.
		return v.Type().FriendlyName() + "#" + v.GoString()
	}
	return v.Type().FriendlyName() + "#" + string(b)
}
