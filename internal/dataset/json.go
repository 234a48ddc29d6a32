package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var jsonNull = []byte("null")

// MarshalJSON encodes a case as a plain JSON object, the shape the host's
// wire protocol uses for item values. Missing values encode as null.
func (c Case) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(c))
	for name, v := range c {
		if v.IsNull() {
			fields[name] = json.RawMessage(jsonNull)
			continue
		}
		b, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return nil, fmt.Errorf("encoding value of %q: %w", name, err)
		}
		fields[name] = json.RawMessage(b)
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes a host JSON object into a case, inferring each cty
// type from the JSON shape.
func (c *Case) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	out := make(Case, len(fields))
	for name, raw := range fields {
		if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
			out[name] = cty.NullVal(cty.DynamicPseudoType)
			continue
		}
		ty, err := ctyjson.ImpliedType(raw)
		if err != nil {
			return fmt.Errorf("inferring type of %q: %w", name, err)
		}
		v, err := ctyjson.Unmarshal(raw, ty)
		if err != nil {
			return fmt.Errorf("decoding value of %q: %w", name, err)
		}
		out[name] = v
	}
	*c = out
	return nil
}
