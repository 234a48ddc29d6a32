package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/tableflow/internal/config"
	"github.com/vk/tableflow/internal/ctxlog"
	"github.com/vk/tableflow/internal/dag"
	"github.com/vk/tableflow/internal/host"
	"github.com/vk/tableflow/internal/orchestrator"
	"github.com/vk/tableflow/internal/reconcile"
)

// Run executes the main application logic: connect to the host, restore any
// saved transformation graph, apply the configured transformers in
// dependency order, and keep every derived dataset synchronized until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
	}
	defer a.closeHealthcheckServer(ctx)

	hostURL := a.config.HostURL
	if hostURL == "" {
		hostURL = a.model.Host.URL
	}
	if hostURL == "" {
		return fmt.Errorf("no host url configured")
	}

	conn, err := a.dial(ctx, hostURL, a.config.Plugin)
	if err != nil {
		return fmt.Errorf("failed to connect to host: %w", err)
	}
	defer conn.Close()
	a.logger.Info("Connected to analysis host.", "url", hostURL)

	saved, err := a.loadStates(ctx, conn)
	if err != nil {
		return err
	}

	order, err := a.instanceOrder()
	if err != nil {
		return err
	}

	if err := a.buildInstances(ctx, conn, order, saved); err != nil {
		return err
	}
	a.logger.Info("Transformer instances ready.", "count", len(a.instances))

	// Route user title edits to whichever instance owns the edited output.
	titleSub, err := conn.OnTitleChanged(ctx, func(contextName string) {
		for _, in := range a.instances {
			if in.MarkEdited(contextName) {
				if err := a.saveStates(ctx, conn); err != nil {
					a.logger.Error("Failed to persist edited-output set.", "error", err)
				}
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to title edits: %w", err)
	}
	defer titleSub.Cancel()

	// Initial application, in dependency order, for instances that have no
	// committed state yet. Restored instances only resynchronize on change.
	// A failing instance is surfaced to the user and skipped; the rest keep
	// synchronizing, and its own watch loop retries on the next change.
	for _, in := range a.instances {
		if len(in.OutputContexts()) > 0 {
			continue
		}
		if err := in.Apply(ctx); err != nil {
			if errors.Is(err, orchestrator.ErrUserDeclined) {
				a.logger.Info("Initial application declined by user.", "instance", in.Name())
				continue
			}
			a.logger.Error("Initial application failed.", "instance", in.Name(), "error", err)
			msg := fmt.Sprintf("Error updating %s: %v", in.Name(), err)
			if notifyErr := conn.Notify(ctx, in.Name(), msg); notifyErr != nil {
				a.logger.Error("Failed to surface error to the host.", "error", notifyErr)
			}
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, in := range a.instances {
		group.Go(func() error {
			err := in.Watch(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	a.logger.Info("Synchronization running.", "instances", len(a.instances))
	err = group.Wait()
	a.logger.Debug("App.Run method finished.")
	return err
}

// instanceOrder topologically sorts the configured instances by their
// declared dependencies, rejecting cycles.
func (a *App) instanceOrder() ([]*config.Transformer, error) {
	graph := dag.New()
	byName := make(map[string]*config.Transformer, len(a.model.Transformers))
	for _, t := range a.model.Transformers {
		graph.AddNode(t.Name)
		byName[t.Name] = t
	}
	for _, t := range a.model.Transformers {
		for _, dep := range t.DependsOn {
			if err := graph.AddEdge(dep, t.Name); err != nil {
				return nil, fmt.Errorf("transformer %s: %w", t.Name, err)
			}
		}
	}
	order, err := graph.TopoOrder()
	if err != nil {
		return nil, err
	}
	out := make([]*config.Transformer, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// buildInstances turns configuration blocks into orchestrator instances,
// restoring reconciliation state for the ones present in the saved graph.
func (a *App) buildInstances(ctx context.Context, conn host.Connection, blocks []*config.Transformer, saved map[string]reconcile.State) error {
	for _, block := range blocks {
		kind, err := a.registry.Lookup(block.Kind)
		if err != nil {
			return fmt.Errorf("transformer %s: %w", block.Name, err)
		}
		args, err := block.DecodeArgs(kind.Args)
		if err != nil {
			return err
		}

		opts := []orchestrator.Option{
			orchestrator.WithPersist(func(ctx context.Context) error {
				return a.saveStates(ctx, conn)
			}),
		}
		if st, ok := saved[block.Name]; ok && st.Transformer == block.Kind {
			opts = append(opts, orchestrator.WithState(st))
			a.logger.Debug("Restored instance state.", "instance", block.Name, "outputs", len(st.OutputContexts))
		}

		a.instances = append(a.instances,
			orchestrator.New(block.Name, kind, args, block.Input, conn, a.logger, opts...))
	}
	return nil
}
