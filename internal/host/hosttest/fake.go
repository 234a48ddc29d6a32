// Package hosttest provides an in-memory host.Connection for tests: contexts
// live in a map, confirmations are scripted, and every call is recorded so
// tests can assert on exactly what the engine asked the host to do.
package hosttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/host"
)

// Call records one mutating host call.
type Call struct {
	Op       string
	Resource string
}

// UndoPair is one command pair pushed to the fake's undo stack.
type UndoPair struct {
	Label string
	Undo  host.Action
	Redo  host.Action
}

type contextEntry struct {
	meta        host.Metadata
	ds          dataset.DataSet
	description string
}

// Fake is an in-memory host.Connection. The zero value is not usable; use New.
type Fake struct {
	mu             sync.Mutex
	contexts       map[string]*contextEntry
	order          []string
	nextListener   int
	dataListeners  map[string]map[int]func()
	titleListeners []func(string)
	confirmQueue   []bool
	confirmPrompts []string
	notifications  []string
	undoPairs      []UndoPair
	savedState     json.RawMessage
	calls          []Call
	failures       map[string]error
	closed         bool
}

// New returns an empty fake host.
func New() *Fake {
	return &Fake{
		contexts:      make(map[string]*contextEntry),
		dataListeners: make(map[string]map[int]func()),
		failures:      make(map[string]error),
	}
}

var _ host.Connection = (*Fake)(nil)

// Seed installs an input context without recording a call.
func (f *Fake) Seed(name, title string, ds dataset.DataSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts[name] = &contextEntry{
		meta: host.Metadata{Name: name, Title: title},
		ds:   ds.Clone(),
	}
	f.order = append(f.order, name)
}

// Change replaces a context's data and fires its change listeners, the way a
// host-side edit would.
func (f *Fake) Change(name string, ds dataset.DataSet) {
	f.mu.Lock()
	entry, ok := f.contexts[name]
	if ok {
		entry.ds = ds.Clone()
	}
	var listeners []func()
	for _, fn := range f.dataListeners[name] {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// EditTitle retitles a context and fires the title listeners, the way a user
// edit in the host UI would.
func (f *Fake) EditTitle(name, title string) {
	f.mu.Lock()
	if entry, ok := f.contexts[name]; ok {
		entry.meta.Title = title
	}
	listeners := append([]func(string){}, f.titleListeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(name)
	}
}

// QueueConfirm scripts the next confirmation answers. With an empty queue
// every confirmation resolves to yes.
func (f *Fake) QueueConfirm(answers ...bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmQueue = append(f.confirmQueue, answers...)
}

// FailWith makes every future call of the given op return err.
func (f *Fake) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// GetDataset implements host.Connection.
func (f *Fake) GetDataset(ctx context.Context, contextName string) (host.Metadata, dataset.DataSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["get"]; err != nil {
		return host.Metadata{}, dataset.DataSet{}, &host.CallError{Op: "get", Resource: contextName, Err: err}
	}
	entry, ok := f.contexts[contextName]
	if !ok {
		return host.Metadata{}, dataset.DataSet{}, &host.CallError{Op: "get", Resource: contextName, Err: fmt.Errorf("no such context")}
	}
	return entry.meta, entry.ds.Clone(), nil
}

// CreateDataset implements host.Connection. Context names are allocated the
// way the host does: opaque and stable, never derived from the title.
func (f *Fake) CreateDataset(ctx context.Context, ds dataset.DataSet, name, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "create", Resource: name})
	if err := f.failures["create"]; err != nil {
		return "", &host.CallError{Op: "create", Resource: name, Err: err}
	}
	contextName := "ctx-" + uuid.NewString()[:8]
	f.contexts[contextName] = &contextEntry{
		meta:        host.Metadata{Name: contextName, Title: name},
		ds:          ds.Clone(),
		description: description,
	}
	f.order = append(f.order, contextName)
	return contextName, nil
}

// UpdateDataset implements host.Connection.
func (f *Fake) UpdateDataset(ctx context.Context, contextName string, ds dataset.DataSet, name string, opts host.UpdateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "update", Resource: contextName})
	if err := f.failures["update"]; err != nil {
		return &host.CallError{Op: "update", Resource: contextName, Err: err}
	}
	entry, ok := f.contexts[contextName]
	if !ok {
		return &host.CallError{Op: "update", Resource: contextName, Err: fmt.Errorf("no such context")}
	}
	entry.ds = ds.Clone()
	if name != "" {
		entry.meta.Title = name
	}
	if opts.Description != nil {
		entry.description = *opts.Description
	}
	return nil
}

// DeleteDataset implements host.Connection.
func (f *Fake) DeleteDataset(ctx context.Context, contextName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: "delete", Resource: contextName})
	if err := f.failures["delete"]; err != nil {
		return &host.CallError{Op: "delete", Resource: contextName, Err: err}
	}
	if _, ok := f.contexts[contextName]; !ok {
		return &host.CallError{Op: "delete", Resource: contextName, Err: fmt.Errorf("no such context")}
	}
	delete(f.contexts, contextName)
	for i, name := range f.order {
		if name == contextName {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type subscription struct {
	cancel func()
}

func (s *subscription) Cancel() { s.cancel() }

// OnDatasetChanged implements host.Connection.
func (f *Fake) OnDatasetChanged(ctx context.Context, contextName string, fn func()) (host.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dataListeners[contextName] == nil {
		f.dataListeners[contextName] = make(map[int]func())
	}
	id := f.nextListener
	f.nextListener++
	f.dataListeners[contextName][id] = fn
	return &subscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.dataListeners[contextName], id)
	}}, nil
}

// OnTitleChanged implements host.Connection.
func (f *Fake) OnTitleChanged(ctx context.Context, fn func(string)) (host.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titleListeners = append(f.titleListeners, fn)
	return &subscription{cancel: func() {}}, nil
}

// Confirm implements host.Connection: answers come from the scripted queue,
// defaulting to yes.
func (f *Fake) Confirm(ctx context.Context, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmPrompts = append(f.confirmPrompts, message)
	if len(f.confirmQueue) == 0 {
		return true, nil
	}
	answer := f.confirmQueue[0]
	f.confirmQueue = f.confirmQueue[1:]
	return answer, nil
}

// Notify implements host.Connection.
func (f *Fake) Notify(ctx context.Context, instance, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, fmt.Sprintf("%s: %s", instance, message))
	return nil
}

// PushUndo implements host.Connection.
func (f *Fake) PushUndo(label string, undo, redo host.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undoPairs = append(f.undoPairs, UndoPair{Label: label, Undo: undo, Redo: redo})
}

// SaveState implements host.Connection.
func (f *Fake) SaveState(ctx context.Context, state json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedState = append(json.RawMessage(nil), state...)
	return nil
}

// LoadState implements host.Connection.
func (f *Fake) LoadState(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.savedState, nil
}

// Close implements host.Connection.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Dataset returns a context's current data.
func (f *Fake) Dataset(contextName string) (dataset.DataSet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.contexts[contextName]
	if !ok {
		return dataset.DataSet{}, false
	}
	return entry.ds.Clone(), true
}

// Meta returns a context's current metadata.
func (f *Fake) Meta(contextName string) (host.Metadata, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.contexts[contextName]
	if !ok {
		return host.Metadata{}, false
	}
	return entry.meta, true
}

// Description returns a context's current description.
func (f *Fake) Description(contextName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.contexts[contextName]; ok {
		return entry.description
	}
	return ""
}

// ContextNames returns the live context names in creation order.
func (f *Fake) ContextNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// Calls returns every mutating call recorded so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// ConfirmPrompts returns every confirmation message shown so far.
func (f *Fake) ConfirmPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.confirmPrompts...)
}

// Notifications returns every surfaced message so far.
func (f *Fake) Notifications() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notifications...)
}

// UndoPairs returns the pushed undo/redo command pairs.
func (f *Fake) UndoPairs() []UndoPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UndoPair(nil), f.undoPairs...)
}
