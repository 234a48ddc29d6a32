// Package reconcile matches a freshly computed keyed output family against
// the persisted result of the previous run and produces an update plan:
// which host contexts to update in place, which to create, and which to
// delete, without orphaning outputs or clobbering user edits. The planner is
// a pure function over two keyed structures and is testable without any host
// interface.
package reconcile

// OutputRecord is one live derived context: its host identifier, the group
// key it was produced for, and whether the user has manually retitled it.
type OutputRecord struct {
	Context string
	Key     string
	Edited  bool
}

// OutputSet is the keyed reconciliation structure: an arena of output records
// indexed by stable context identifier, with a secondary index from group key
// to identifier. Insertion order is preserved so plans are deterministic.
type OutputSet struct {
	byContext map[string]*OutputRecord
	byKey     map[string]string
	order     []string
}

// NewOutputSet returns an empty set.
func NewOutputSet() *OutputSet {
	return &OutputSet{
		byContext: make(map[string]*OutputRecord),
		byKey:     make(map[string]string),
	}
}

// Put records an output for a group key. Re-putting an existing context
// updates its key and edited flag in place.
func (s *OutputSet) Put(key, contextID string, edited bool) {
	if rec, ok := s.byContext[contextID]; ok {
		delete(s.byKey, rec.Key)
		rec.Key = key
		rec.Edited = edited
		s.byKey[key] = contextID
		return
	}
	s.byContext[contextID] = &OutputRecord{Context: contextID, Key: key, Edited: edited}
	s.byKey[key] = contextID
	s.order = append(s.order, contextID)
}

// ByKey resolves a group key to its context identifier.
func (s *OutputSet) ByKey(key string) (string, bool) {
	id, ok := s.byKey[key]
	return id, ok
}

// Edited reports whether the identified output has been manually retitled.
func (s *OutputSet) Edited(contextID string) bool {
	rec, ok := s.byContext[contextID]
	return ok && rec.Edited
}

// MarkEdited flags an output as manually retitled. It reports whether the
// context is part of the set.
func (s *OutputSet) MarkEdited(contextID string) bool {
	rec, ok := s.byContext[contextID]
	if ok {
		rec.Edited = true
	}
	return ok
}

// Contexts returns the live context identifiers in insertion order.
func (s *OutputSet) Contexts() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Mapping returns the group-key-to-context index as a plain map copy.
func (s *OutputSet) Mapping() map[string]string {
	out := make(map[string]string, len(s.byKey))
	for key, id := range s.byKey {
		out[key] = id
	}
	return out
}

// Len returns the number of live outputs.
func (s *OutputSet) Len() int {
	return len(s.order)
}
