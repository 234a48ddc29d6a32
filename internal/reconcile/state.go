package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// State is the persisted record of one configured transformer instance: its
// kind and arguments, the input context it watches, and the keyed mapping to
// the outputs of its last committed run. It lives for as long as the user
// keeps the transformation configured and serializes into the host's saved
// plugin state.
type State struct {
	Transformer    string
	InputContext   string
	Args           map[string]cty.Value
	OutputContexts []string
	ValueToContext map[string]string
	EditedOutputs  []string
}

// OutputSet rebuilds the keyed reconciliation structure from persisted state,
// in OutputContexts order.
func (s State) OutputSet() *OutputSet {
	edited := make(map[string]bool, len(s.EditedOutputs))
	for _, id := range s.EditedOutputs {
		edited[id] = true
	}
	contextToValue := make(map[string]string, len(s.ValueToContext))
	for key, id := range s.ValueToContext {
		contextToValue[id] = key
	}
	set := NewOutputSet()
	for _, id := range s.OutputContexts {
		set.Put(contextToValue[id], id, edited[id])
	}
	return set
}

// FromOutputSet derives the persistable fields from a committed output set,
// keeping the instance identity fields of the receiver.
func (s State) FromOutputSet(set *OutputSet) State {
	next := s
	next.OutputContexts = set.Contexts()
	next.ValueToContext = set.Mapping()
	next.EditedOutputs = nil
	for _, id := range set.Contexts() {
		if set.Edited(id) {
			next.EditedOutputs = append(next.EditedOutputs, id)
		}
	}
	return next
}

// argJSON is the wire form of one typed argument value.
type argJSON struct {
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

// stateJSON is the wire form of State; Args need explicit type headers
// because cty values do not round-trip through bare JSON.
type stateJSON struct {
	Transformer    string             `json:"transformer"`
	InputContext   string             `json:"inputContext"`
	Args           map[string]argJSON `json:"args,omitempty"`
	OutputContexts []string           `json:"outputContexts"`
	ValueToContext map[string]string  `json:"valueToContext"`
	EditedOutputs  []string           `json:"editedOutputs,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Transformer:    s.Transformer,
		InputContext:   s.InputContext,
		OutputContexts: s.OutputContexts,
		ValueToContext: s.ValueToContext,
		EditedOutputs:  s.EditedOutputs,
	}
	if s.Args != nil {
		out.Args = make(map[string]argJSON, len(s.Args))
		for name, v := range s.Args {
			tyBytes, err := ctyjson.MarshalType(v.Type())
			if err != nil {
				return nil, fmt.Errorf("encoding type of argument %q: %w", name, err)
			}
			valBytes, err := ctyjson.Marshal(v, v.Type())
			if err != nil {
				return nil, fmt.Errorf("encoding argument %q: %w", name, err)
			}
			out.Args[name] = argJSON{Type: tyBytes, Value: valBytes}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next := State{
		Transformer:    raw.Transformer,
		InputContext:   raw.InputContext,
		OutputContexts: raw.OutputContexts,
		ValueToContext: raw.ValueToContext,
		EditedOutputs:  raw.EditedOutputs,
	}
	if raw.Args != nil {
		next.Args = make(map[string]cty.Value, len(raw.Args))
		for name, arg := range raw.Args {
			ty, err := ctyjson.UnmarshalType(arg.Type)
			if err != nil {
				return fmt.Errorf("decoding type of argument %q: %w", name, err)
			}
			v, err := ctyjson.Unmarshal(arg.Value, ty)
			if err != nil {
				return fmt.Errorf("decoding argument %q: %w", name, err)
			}
			next.Args[name] = v
		}
	}
	*s = next
	return nil
}
