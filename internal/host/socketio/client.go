// Package socketio implements host.Connection over a socket.io websocket.
// Requests are correlated by id over a single request/response event pair;
// host-side changes arrive as named events. Attribute values travel as plain
// JSON and are decoded through the dataset package's wire codec.
package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	eiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/tableflow/internal/ctxlog"
	"github.com/vk/tableflow/internal/dataset"
	"github.com/vk/tableflow/internal/host"
)

// Event names of the wire protocol.
const (
	eventRequest        = "tableflow.request"
	eventResponse       = "tableflow.response"
	eventDatasetChanged = "tableflow.datasetChanged"
	eventTitleChanged   = "tableflow.titleChanged"
	eventUndoable       = "tableflow.undoable"
	eventUndo           = "tableflow.undo"
	eventRedo           = "tableflow.redo"
)

// connectTimeout bounds only the initial websocket handshake. Individual
// requests carry no timeout; they resolve with their response or with the
// caller's context.
const connectTimeout = 10 * time.Second

type request struct {
	ID     int64           `json:"id"`
	Action string          `json:"action"`
	Values json.RawMessage `json:"values,omitempty"`
}

type response struct {
	ID      int64           `json:"id"`
	Success bool            `json:"success"`
	Values  json.RawMessage `json:"values,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type undoEntry struct {
	undo host.Action
	redo host.Action
}

// Client is a host.Connection backed by a socket.io connection to the
// analysis application.
type Client struct {
	io      *socket.Socket
	manager *socket.Manager

	mu             sync.Mutex
	nextID         int64
	pending        map[int64]chan response
	nextListener   int
	dataListeners  map[string]map[int]func()
	titleListeners map[int]func(string)
	undoEntries    map[int64]undoEntry

	baseCtx context.Context
}

var _ host.Connection = (*Client)(nil)

// Dial connects to the host at rawURL and announces the plugin name. The
// returned client is ready once the initial handshake completes.
func Dial(ctx context.Context, rawURL, plugin string) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("component", "host", "url", rawURL)
	logger.Debug("Dialing host.")

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	opts.SetTransports(eiotypes.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	c := &Client{
		io:             io,
		manager:        manager,
		pending:        make(map[int64]chan response),
		dataListeners:  make(map[string]map[int]func()),
		titleListeners: make(map[int]func(string)),
		undoEntries:    make(map[int64]undoEntry),
		baseCtx:        ctx,
	}

	connected := make(chan error, 1)
	io.On(eiotypes.EventName("connect"), func(...any) {
		logger.Info("Connected to host.", "sid", io.Id())
		select {
		case connected <- nil:
		default:
		}
	})
	io.On(eiotypes.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				select {
				case connected <- err:
				default:
				}
			}
		}
	})
	io.On(eiotypes.EventName(eventResponse), func(data ...any) { c.dispatchResponse(data) })
	io.On(eiotypes.EventName(eventDatasetChanged), func(data ...any) { c.dispatchDatasetChanged(data) })
	io.On(eiotypes.EventName(eventTitleChanged), func(data ...any) { c.dispatchTitleChanged(data) })
	io.On(eiotypes.EventName(eventUndo), func(data ...any) { c.dispatchCommand(data, true) })
	io.On(eiotypes.EventName(eventRedo), func(data ...any) { c.dispatchCommand(data, false) })

	io.Connect()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	select {
	case <-connectCtx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("failed to connect to host: %w", err)
		}
	}

	// Announce ourselves so the host can key dialogs and state to the plugin.
	if _, err := c.call(ctx, "register", map[string]any{"plugin": plugin}); err != nil {
		io.Disconnect()
		return nil, err
	}
	return c, nil
}

// decodeEvent remarshals a socket.io payload into the given struct.
func decodeEvent(data []any, out any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty event payload")
	}
	b, err := json.Marshal(data[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (c *Client) dispatchResponse(data []any) {
	var resp response
	if err := decodeEvent(data, &resp); err != nil {
		ctxlog.FromContext(c.baseCtx).Warn("Dropping malformed host response.", "error", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Client) dispatchDatasetChanged(data []any) {
	var payload struct {
		Context string `json:"context"`
	}
	if err := decodeEvent(data, &payload); err != nil {
		return
	}
	c.mu.Lock()
	var listeners []func()
	for _, fn := range c.dataListeners[payload.Context] {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *Client) dispatchTitleChanged(data []any) {
	var payload struct {
		Context string `json:"context"`
	}
	if err := decodeEvent(data, &payload); err != nil {
		return
	}
	c.mu.Lock()
	var listeners []func(string)
	for _, fn := range c.titleListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(payload.Context)
	}
}

func (c *Client) dispatchCommand(data []any, isUndo bool) {
	var payload struct {
		Command int64 `json:"command"`
	}
	if err := decodeEvent(data, &payload); err != nil {
		return
	}
	c.mu.Lock()
	entry, ok := c.undoEntries[payload.Command]
	c.mu.Unlock()
	if !ok {
		return
	}
	action := entry.redo
	if isUndo {
		action = entry.undo
	}
	if err := action(c.baseCtx); err != nil {
		ctxlog.FromContext(c.baseCtx).Error("Undo stack action failed.", "command", payload.Command, "error", err)
	}
}

// call issues one request and waits for its response or the context.
func (c *Client) call(ctx context.Context, action string, values any) (json.RawMessage, error) {
	var raw json.RawMessage
	if values != nil {
		b, err := json.Marshal(values)
		if err != nil {
			return nil, &host.CallError{Op: action, Err: err}
		}
		raw = b
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.io.Emit(eventRequest, request{ID: id, Action: action, Values: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &host.CallError{Op: action, Err: err}
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &host.CallError{Op: action, Err: ctx.Err()}
	case resp := <-ch:
		if !resp.Success {
			return nil, &host.CallError{Op: action, Err: fmt.Errorf("%s", resp.Error)}
		}
		return resp.Values, nil
	}
}

// GetDataset implements host.Connection.
func (c *Client) GetDataset(ctx context.Context, contextName string) (host.Metadata, dataset.DataSet, error) {
	values, err := c.call(ctx, "get", map[string]any{"context": contextName})
	if err != nil {
		return host.Metadata{}, dataset.DataSet{}, err
	}
	var payload struct {
		Metadata host.Metadata   `json:"metadata"`
		Dataset  dataset.DataSet `json:"dataset"`
	}
	if err := json.Unmarshal(values, &payload); err != nil {
		return host.Metadata{}, dataset.DataSet{}, &host.CallError{Op: "get", Resource: contextName, Err: err}
	}
	return payload.Metadata, payload.Dataset, nil
}

// CreateDataset implements host.Connection.
func (c *Client) CreateDataset(ctx context.Context, ds dataset.DataSet, name, description string) (string, error) {
	values, err := c.call(ctx, "create", map[string]any{
		"dataset":     ds,
		"name":        name,
		"description": description,
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(values, &payload); err != nil {
		return "", &host.CallError{Op: "create", Resource: name, Err: err}
	}
	return payload.Context, nil
}

// UpdateDataset implements host.Connection.
func (c *Client) UpdateDataset(ctx context.Context, contextName string, ds dataset.DataSet, name string, opts host.UpdateOptions) error {
	payload := map[string]any{
		"context": contextName,
		"dataset": ds,
	}
	if name != "" {
		payload["name"] = name
	}
	if opts.Description != nil {
		payload["description"] = *opts.Description
	}
	_, err := c.call(ctx, "update", payload)
	return err
}

// DeleteDataset implements host.Connection.
func (c *Client) DeleteDataset(ctx context.Context, contextName string) error {
	_, err := c.call(ctx, "delete", map[string]any{"context": contextName})
	return err
}

// OnDatasetChanged implements host.Connection.
func (c *Client) OnDatasetChanged(ctx context.Context, contextName string, fn func()) (host.Subscription, error) {
	c.mu.Lock()
	if c.dataListeners[contextName] == nil {
		c.dataListeners[contextName] = make(map[int]func())
	}
	id := c.nextListener
	c.nextListener++
	c.dataListeners[contextName][id] = fn
	first := len(c.dataListeners[contextName]) == 1
	c.mu.Unlock()

	if first {
		if _, err := c.call(ctx, "watch", map[string]any{"context": contextName}); err != nil {
			c.mu.Lock()
			delete(c.dataListeners[contextName], id)
			c.mu.Unlock()
			return nil, err
		}
	}
	return &clientSubscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.dataListeners[contextName], id)
	}}, nil
}

// OnTitleChanged implements host.Connection.
func (c *Client) OnTitleChanged(ctx context.Context, fn func(string)) (host.Subscription, error) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.titleListeners[id] = fn
	c.mu.Unlock()
	return &clientSubscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.titleListeners, id)
	}}, nil
}

type clientSubscription struct {
	cancel func()
}

func (s *clientSubscription) Cancel() { s.cancel() }

// Confirm implements host.Connection. The call suspends until the user
// resolves the dialog; a closed dialog reports refusal, never an error.
func (c *Client) Confirm(ctx context.Context, message string) (bool, error) {
	values, err := c.call(ctx, "confirm", map[string]any{"message": message})
	if err != nil {
		return false, err
	}
	var payload struct {
		Answer bool `json:"answer"`
	}
	if err := json.Unmarshal(values, &payload); err != nil {
		return false, &host.CallError{Op: "confirm", Err: err}
	}
	return payload.Answer, nil
}

// Notify implements host.Connection.
func (c *Client) Notify(ctx context.Context, instance, message string) error {
	_, err := c.call(ctx, "notify", map[string]any{
		"instance": instance,
		"message":  message,
	})
	return err
}

// PushUndo implements host.Connection. The actions stay client-side; the
// host calls back with the command id when the user invokes undo or redo.
func (c *Client) PushUndo(label string, undo, redo host.Action) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.undoEntries[id] = undoEntry{undo: undo, redo: redo}
	c.mu.Unlock()

	if err := c.io.Emit(eventUndoable, map[string]any{"command": id, "label": label}); err != nil {
		ctxlog.FromContext(c.baseCtx).Error("Failed to push undoable action.", "label", label, "error", err)
	}
}

// SaveState implements host.Connection.
func (c *Client) SaveState(ctx context.Context, state json.RawMessage) error {
	_, err := c.call(ctx, "saveState", map[string]any{"state": state})
	return err
}

// LoadState implements host.Connection.
func (c *Client) LoadState(ctx context.Context) (json.RawMessage, error) {
	values, err := c.call(ctx, "loadState", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(values, &payload); err != nil {
		return nil, &host.CallError{Op: "loadState", Err: err}
	}
	return payload.State, nil
}

// Close implements host.Connection.
func (c *Client) Close() error {
	ctxlog.FromContext(c.baseCtx).Debug("Disconnecting host client.")
	c.io.Disconnect()
	return nil
}
