package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/host"
	"github.com/vk/tableflow/internal/mvr"
	"github.com/vk/tableflow/internal/reconcile"
	"github.com/vk/tableflow/internal/transform"
)

// runCycle executes one full transformation cycle: compute from the current
// input snapshot, pass the confirmation gates, commit the reconciliation
// plan, and record the new state. Any error before the commit phase leaves
// the host untouched.
func (in *Instance) runCycle(ctx context.Context, userInitiated bool) error {
	in.setPhase(PhaseComputing)
	defer in.setPhase(PhaseIdle)

	meta, ds, err := in.conn.GetDataset(ctx, in.inputContext)
	if err != nil {
		return err
	}

	input := transform.Input{
		ContextName:  in.inputContext,
		ContextTitle: meta.ReadableTitle(),
		Dataset:      ds,
	}
	outputs, report, err := in.transformer.Apply(ctx, input, in.args)
	if err != nil {
		return err
	}
	in.logger.Debug("Transformer computed.", "outputs", len(outputs), "missingValues", len(report.MissingValues))

	if err := in.confirmGates(ctx, outputs, report); err != nil {
		return err
	}

	// Tag every committed output name when the input had gaps, so consumers
	// of the derived tables see the data comes from an input with missing
	// values.
	if !report.Empty() {
		for i := range outputs {
			outputs[i].Name = outputs[i].Name + " " + mvr.ScareSymbol
		}
	}

	next, err := in.commit(ctx, outputs)
	if err != nil {
		return err
	}

	in.mu.Lock()
	in.outputs = next
	in.mu.Unlock()

	if in.persist != nil {
		if err := in.persist(ctx); err != nil {
			in.logger.Error("Failed to persist instance state.", "error", err)
		}
	}

	if userInitiated {
		in.pushUndoPair(next.Contexts())
	}

	if !report.Empty() {
		summary := report.ExtraInfo
		if summary == "" {
			summary = report.Summary()
		}
		if err := in.conn.Notify(ctx, in.name, summary); err != nil {
			in.logger.Error("Failed to surface missing-value report.", "error", err)
		}
	}
	return nil
}

// confirmGates walks the AwaitingConfirmation transitions: a non-empty
// missing-value report, a zero-output result, and an output count at or
// above the warn threshold each require the user's explicit go-ahead. A
// refusal aborts the whole cycle before any commit-phase host call.
func (in *Instance) confirmGates(ctx context.Context, outputs []transform.Output, report mvr.Report) error {
	type gate struct {
		active  bool
		message string
	}
	gates := []gate{
		{!report.Empty(), mvr.Warning},
		{len(outputs) == 0, fmt.Sprintf(
			"Applying %s to %s produced no output datasets. Proceed anyway?",
			in.transformer.Kind, in.inputContext)},
		{len(outputs) >= OutputWarnThreshold, fmt.Sprintf(
			"This transformation will create or update %d datasets. Do you want to proceed?",
			len(outputs))},
	}

	for _, g := range gates {
		if !g.active {
			continue
		}
		in.setPhase(PhaseAwaitingConfirmation)
		ok, err := in.conn.Confirm(ctx, g.message)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserDeclined
		}
	}
	return nil
}

// commit applies the reconciliation plan through the host: updates first,
// then creates, then deletes, so a mid-commit failure can never leave a
// surviving group without its output. Nothing is rolled back once commit
// begins; a failure here fails the whole cycle.
func (in *Instance) commit(ctx context.Context, outputs []transform.Output) (*reconcile.OutputSet, error) {
	in.setPhase(PhaseCommitting)

	in.mu.Lock()
	prev := in.outputs
	in.mu.Unlock()

	byKey := make(map[string]transform.Output, len(outputs))
	keys := make([]string, 0, len(outputs))
	for _, out := range outputs {
		byKey[out.Key] = out
		keys = append(keys, out.Key)
	}

	plan := reconcile.BuildPlan(prev, keys)
	in.logger.Debug("Reconciliation plan built.",
		"updates", len(plan.Updates), "creates", len(plan.Creates), "deletes", len(plan.Deletes))

	assigned := make(map[string]string, len(keys))

	for _, u := range plan.Updates {
		out := byKey[u.Key]
		name := ""
		var opts host.UpdateOptions
		if u.RefreshTitle {
			name = out.Name
			opts.Description = &out.Description
		}
		if err := in.conn.UpdateDataset(ctx, u.Context, out.Dataset, name, opts); err != nil {
			return nil, err
		}
		assigned[u.Key] = u.Context
	}

	for _, key := range plan.Creates {
		out := byKey[key]
		contextName, err := in.conn.CreateDataset(ctx, out.Dataset, out.Name, out.Description)
		if err != nil {
			return nil, err
		}
		assigned[key] = contextName
	}

	for _, contextName := range plan.Deletes {
		if err := in.conn.DeleteDataset(ctx, contextName); err != nil {
			return nil, err
		}
	}

	next := reconcile.NewOutputSet()
	for _, key := range keys {
		next.Put(key, assigned[key], prev.Edited(assigned[key]))
	}
	return next, nil
}

// pushUndoPair registers the undo/redo commands for an explicit application:
// undoing deletes every created output, redoing re-runs the same
// configuration without pushing another pair.
func (in *Instance) pushUndoPair(contexts []string) {
	label := fmt.Sprintf("Apply %s Transformer", in.transformer.Kind)
	in.conn.PushUndo(label,
		func(ctx context.Context) error {
			for _, contextName := range contexts {
				if err := in.conn.DeleteDataset(ctx, contextName); err != nil {
					return err
				}
			}
			in.mu.Lock()
			in.outputs = reconcile.NewOutputSet()
			in.mu.Unlock()
			// The cleared output set must reach the saved graph too, or a
			// restart would resume against contexts that no longer exist.
			if in.persist != nil {
				if err := in.persist(ctx); err != nil {
					in.logger.Error("Failed to persist cleared state.", "error", err)
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			return in.runGuarded(ctx, false)
		})
}

// classify maps a cycle error onto the engine's error taxonomy for logging.
func classify(err error) string {
	var validation *transform.ValidationError
	var shape *transform.DataShapeError
	var invalidAttr *dataset.InvalidAttributeError
	var hostErr *host.CallError
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &shape), errors.As(err, &invalidAttr):
		return "data-shape"
	case errors.As(err, &hostErr):
		return "host"
	case errors.Is(err, ErrUserDeclined):
		return "declined"
	}
	return "unknown"
}
