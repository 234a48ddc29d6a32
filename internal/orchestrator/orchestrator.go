// Package orchestrator drives one configured transformer instance: it runs
// the transformer against the current input snapshot, walks the cycle through
// its confirmation gates, commits the reconciliation plan through the host,
// and keeps the persisted instance state in step. Change notifications from
// the host are coalesced so that no two cycles for the same instance ever
// interleave.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tableflow/internal/host"
	"github.com/vk/tableflow/internal/reconcile"
	"github.com/vk/tableflow/internal/registry"
)

// OutputWarnThreshold is the output count at or above which the user must
// confirm before the cycle commits.
const OutputWarnThreshold = 10

// ErrUserDeclined aborts a cycle because the user refused a confirmation
// prompt. It is a silent abort: the cycle stops before any commit-phase host
// call, and nothing is surfaced as an error.
var ErrUserDeclined = errors.New("user declined the confirmation prompt")

// Phase is the current position of an instance in its cycle state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseComputing
	PhaseAwaitingConfirmation
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComputing:
		return "computing"
	case PhaseAwaitingConfirmation:
		return "awaiting-confirmation"
	case PhaseCommitting:
		return "committing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Option configures an Instance.
type Option func(*Instance)

// WithState restores the instance's reconciliation state from a previous
// session, so re-runs match outputs instead of recreating them.
func WithState(st reconcile.State) Option {
	return func(in *Instance) {
		in.outputs = st.OutputSet()
	}
}

// WithPersist installs a hook called after every committed cycle, typically
// to save the whole transformation graph into the host document.
func WithPersist(persist func(context.Context) error) Option {
	return func(in *Instance) {
		in.persist = persist
	}
}

// Instance is one configured transformer bound to its input context. Each
// instance owns its reconciliation state and output identifier set
// exclusively; instances share nothing mutable.
type Instance struct {
	name         string
	transformer  *registry.RegisteredTransformer
	args         map[string]cty.Value
	inputContext string
	conn         host.Connection
	logger       *slog.Logger
	persist      func(context.Context) error

	// runMu serializes cycles: the watch loop, the initial application and
	// redo actions may not run a cycle concurrently.
	runMu sync.Mutex

	// mu guards the fields below.
	mu      sync.Mutex
	outputs *reconcile.OutputSet
	phase   Phase

	// notify coalesces change notifications: a notification arriving while a
	// cycle is in flight is queued at most once, never interleaved.
	notify chan struct{}
}

// New builds an instance. The args must already be validated against the
// transformer's schema.
func New(name string, t *registry.RegisteredTransformer, args map[string]cty.Value, inputContext string, conn host.Connection, logger *slog.Logger, opts ...Option) *Instance {
	in := &Instance{
		name:         name,
		transformer:  t,
		args:         args,
		inputContext: inputContext,
		conn:         conn,
		logger:       logger.With("instance", name, "kind", t.Kind),
		outputs:      reconcile.NewOutputSet(),
		notify:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Name returns the instance name from configuration.
func (in *Instance) Name() string { return in.name }

// Phase returns the instance's current cycle phase.
func (in *Instance) Phase() Phase {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.phase
}

// State returns the persistable reconciliation state of the last committed
// cycle.
func (in *Instance) State() reconcile.State {
	in.mu.Lock()
	defer in.mu.Unlock()
	st := reconcile.State{
		Transformer:  in.transformer.Kind,
		InputContext: in.inputContext,
		Args:         in.args,
	}
	return st.FromOutputSet(in.outputs)
}

// OutputContexts returns the live output context names, in creation order.
func (in *Instance) OutputContexts() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.outputs.Contexts()
}

// MarkEdited flags an output as manually retitled by the user, so future
// cycles refresh its data but never its title. It reports whether the
// context belongs to this instance.
func (in *Instance) MarkEdited(contextName string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	marked := in.outputs.MarkEdited(contextName)
	if marked {
		in.logger.Debug("Output marked as user-edited.", "context", contextName)
	}
	return marked
}

// Apply runs the initial, user-initiated application of the transformer.
// This is the only path that pushes an undo/redo pair.
func (in *Instance) Apply(ctx context.Context) error {
	return in.runGuarded(ctx, true)
}

// Watch subscribes to change notifications on the input context and runs the
// re-run loop until the context is cancelled. Notifications are delivered
// at least once by the host; the cycle is idempotent, so duplicates are
// harmless, and redundant notifications coalesce.
func (in *Instance) Watch(ctx context.Context) error {
	sub, err := in.conn.OnDatasetChanged(ctx, in.inputContext, func() {
		select {
		case in.notify <- struct{}{}:
		default:
			// A cycle is already pending; coalesce.
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch input %s: %w", in.inputContext, err)
	}
	defer sub.Cancel()

	in.logger.Debug("Watching input context for changes.", "input", in.inputContext)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-in.notify:
			if err := in.runGuarded(ctx, false); err != nil {
				in.report(ctx, err)
			}
		}
	}
}

// runGuarded serializes cycle execution and surfaces nothing itself; errors
// propagate to the caller for reporting.
func (in *Instance) runGuarded(ctx context.Context, userInitiated bool) error {
	in.runMu.Lock()
	defer in.runMu.Unlock()
	return in.runCycle(ctx, userInitiated)
}

// report surfaces a cycle error to the user, keyed to this instance. A
// declined confirmation is a silent abort, not an error.
func (in *Instance) report(ctx context.Context, err error) {
	if errors.Is(err, ErrUserDeclined) {
		in.logger.Debug("Cycle aborted by user.")
		return
	}
	in.logger.Error("Transformation cycle failed.", "error", err, "class", classify(err))
	msg := fmt.Sprintf("Error updating %s: %v", in.name, err)
	if notifyErr := in.conn.Notify(ctx, in.name, msg); notifyErr != nil {
		in.logger.Error("Failed to surface error to the host.", "error", notifyErr)
	}
}

func (in *Instance) setPhase(p Phase) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.phase = p
}
