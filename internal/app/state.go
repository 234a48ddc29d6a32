package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/tableflow/internal/host"
	"github.com/vk/tableflow/internal/reconcile"
)

// savedGraph is the host-persisted form of the whole transformation graph:
// one reconciliation state per configured instance, keyed by instance name.
type savedGraph struct {
	Instances map[string]reconcile.State `json:"instances"`
}

// loadStates retrieves the saved transformation graph from the host document,
// returning an empty map when nothing was saved yet.
func (a *App) loadStates(ctx context.Context, conn host.Connection) (map[string]reconcile.State, error) {
	raw, err := conn.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved state: %w", err)
	}
	if len(raw) == 0 {
		return map[string]reconcile.State{}, nil
	}
	var graph savedGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return nil, fmt.Errorf("failed to decode saved state: %w", err)
	}
	if graph.Instances == nil {
		graph.Instances = map[string]reconcile.State{}
	}
	a.logger.Debug("Saved transformation graph loaded.", "instances", len(graph.Instances))
	return graph.Instances, nil
}

// saveStates persists the current state of every instance into the host
// document.
func (a *App) saveStates(ctx context.Context, conn host.Connection) error {
	graph := savedGraph{Instances: make(map[string]reconcile.State, len(a.instances))}
	for _, in := range a.instances {
		graph.Instances[in.Name()] = in.State()
	}
	raw, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return conn.SaveState(ctx, raw)
}
