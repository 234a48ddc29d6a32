// Package host defines the interface to the analysis application the engine
// runs against. The host owns the tables, the undo/redo command stack, user
// confirmation dialogs and plugin-state persistence; the engine only consumes
// this interface. Implementations: a socket.io client under socketio, and an
// in-memory fake under hosttest.
package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/tableflow/internal/dataset"
)

// Metadata is the host-side identity of a data context.
type Metadata struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// ReadableTitle returns the context's title, falling back to its name.
func (m Metadata) ReadableTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// UpdateOptions carries the optional fields of an update call. A nil
// Description leaves the host-side description untouched.
type UpdateOptions struct {
	Description *string
}

// Subscription is a registered change listener that can be cancelled.
type Subscription interface {
	Cancel()
}

// Action is one side of an undo/redo pair pushed to the host's command stack.
type Action func(ctx context.Context) error

// Connection is the host interface the engine consumes. All methods are
// subject to the host's at-least-once delivery and ordering guarantees:
// change callbacks arrive in host-side change order and may be duplicated,
// which the engine tolerates by re-running idempotently.
type Connection interface {
	// GetDataset fetches a context's metadata and a snapshot of its data.
	GetDataset(ctx context.Context, contextName string) (Metadata, dataset.DataSet, error)

	// CreateDataset creates a new context and table for the dataset and
	// returns the allocated context name.
	CreateDataset(ctx context.Context, ds dataset.DataSet, name, description string) (string, error)

	// UpdateDataset replaces a context's data. A non-empty name also
	// retitles the context; options may update the description.
	UpdateDataset(ctx context.Context, contextName string, ds dataset.DataSet, name string, opts UpdateOptions) error

	// DeleteDataset removes a context and its table.
	DeleteDataset(ctx context.Context, contextName string) error

	// OnDatasetChanged registers a callback invoked, without payload, every
	// time the host-side data of the context changes.
	OnDatasetChanged(ctx context.Context, contextName string, fn func()) (Subscription, error)

	// OnTitleChanged registers a callback invoked with the context name
	// whenever the user retitles one of the given contexts' tables.
	OnTitleChanged(ctx context.Context, fn func(contextName string)) (Subscription, error)

	// Confirm asks the user a yes/no question and suspends the caller until
	// the dialog resolves. A closed dialog counts as a refusal.
	Confirm(ctx context.Context, message string) (bool, error)

	// Notify surfaces a message to the user, keyed to the named transformer
	// instance.
	Notify(ctx context.Context, instance, message string) error

	// PushUndo pushes one undo/redo command pair onto the host's stack.
	PushUndo(label string, undo, redo Action)

	// SaveState persists the plugin's state blob in the host document.
	SaveState(ctx context.Context, state json.RawMessage) error

	// LoadState retrieves the previously saved plugin state, or nil if none.
	LoadState(ctx context.Context) (json.RawMessage, error)

	// Close tears the connection down.
	Close() error
}

// CallError wraps a failed host interface call with the operation and the
// resource it targeted. Calls already issued in the same commit are not
// rolled back, so the caller must report the cycle as failed rather than
// partially succeeded.
type CallError struct {
	Op       string
	Resource string
	Err      error
}

func (e *CallError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("host call %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("host call %s on %s failed: %v", e.Op, e.Resource, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
