// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EventCallback receives the argument list of an event the connection is
// subscribed to. Callbacks run on the connection's own goroutine: a
// long-running callback must hand work off itself rather than block
// indefinitely, matching §4.1's "Message handling on Open" contract.
type EventCallback func(args []any)

// ConnectionStats is a point-in-time snapshot of an ActorConnection,
// intended for host-language wrappers to surface to their own users. It
// is never persisted, matching the "no persistent storage" Non-goal: it
// is a getter, not a store.
type ConnectionStats struct {
	State            string
	ReconnectCount   int
	PendingActions   int
	SubscribedEvents int
}

// pendingAction is the single-shot delivery slot for one in-flight
// action() call, keyed by its monotonic request id.
type pendingAction struct {
	result chan actionResult
}

type actionResult struct {
	output any
	err    error
}

// ActorConnection is the long-lived, persistent connection to a single
// actor (C7): it discovers/resolves the actor, opens a transport, performs
// the handshake, multiplexes concurrent actions and event subscriptions
// over a single logical stream, buffers sends while disconnected,
// transparently reconnects with bounded exponential backoff, rehydrates
// subscriptions on reconnect, and tears down cleanly on explicit
// disconnect or parent-client shutdown.
type ActorConnection struct {
	target       connectTarget
	connect      connectFunc
	diagnostics  func(actorHint string, err error)
	maxPending   int
	logger       *slog.Logger
	// attemptLimiter caps the rate of connect attempts independently of
	// backoff's delay: backoff only grows on a failed attempt and resets
	// on a successful Init, so a manager that accepts a socket and closes
	// it immediately after handshake would otherwise drive a hot loop of
	// Init-then-reset cycles. This is the floor under that case.
	attemptLimiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          connectionState
	cur            driver
	actorID        string
	nextActionID   int64
	slots          map[int64]*pendingAction
	subs           map[string][]EventCallback
	outbound       []*ToServerFrame
	reconnectCount int

	drainOnce sync.Once
	drain     chan struct{}

	shutdown       <-chan struct{}
	supervisorDone chan struct{}
}

// ConnectOptions configures a single ActorConnection, supplied by a
// Handle's connect() call.
type ConnectOptions struct {
	// Params are optional connection parameters carried on the handshake.
	Params any
	// MaxPendingActions caps the number of concurrent in-flight action()
	// calls; 0 means unbounded. Exceeding the cap fails action()
	// synchronously, locally, without ever reaching the wire.
	MaxPendingActions int
	// Logger receives structured diagnostics for absorbed transport
	// failures. Defaults to slog.Default().
	Logger *slog.Logger
	// OnDiagnostic is called for connection-level errors (unsolicited
	// Error frames without an action correlation) and for every absorbed
	// transport failure, in addition to the log line. Malformed inbound
	// frames, which the drivers skip, are not reported.
	OnDiagnostic func(err error)
}

func newActorConnection(endpoint string, transport TransportKind, encoding EncodingKind, query ActorQuery, opts *ConnectOptions, shutdown <-chan struct{}) *ActorConnection {
	var params any
	logger := slog.Default()
	maxPending := 0
	var onDiag func(error)
	if opts != nil {
		params = opts.Params
		maxPending = opts.MaxPendingActions
		if opts.Logger != nil {
			logger = opts.Logger
		}
		onDiag = opts.OnDiagnostic
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &ActorConnection{
		target:         connectTarget{endpoint: endpoint, encoding: encoding, query: query, params: params},
		connect:        connectFuncFor(transport),
		maxPending:     maxPending,
		logger:         logger,
		attemptLimiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		ctx:            ctx,
		cancel:         cancel,
		state:          stateNew,
		slots:          make(map[int64]*pendingAction),
		subs:           make(map[string][]EventCallback),
		drain:          make(chan struct{}),
		shutdown:       shutdown,
		supervisorDone: make(chan struct{}),
	}
	c.diagnostics = func(actorHint string, err error) {
		c.logger.Warn("actor connection error", "actor", actorHint, "err", err)
		if onDiag != nil {
			onDiag(err)
		}
	}

	go c.supervise()
	return c
}

func connectFuncFor(kind TransportKind) connectFunc {
	switch kind {
	case TransportSSE:
		return connectSSE
	default:
		return connectWebSocket
	}
}

// Action enqueues an ActionRequest with a fresh id and suspends until one
// of: a correlated response (returns its output), a correlated error
// (returns an *ActionError), or terminal close (returns
// ErrClosedDuringCall). Concurrent calls are permitted and independent.
func (c *ActorConnection) Action(ctx context.Context, method string, args []any) (any, error) {
	c.mu.Lock()
	if c.state == stateClosed || c.state == stateDraining {
		c.mu.Unlock()
		return nil, ErrClosedDuringCall
	}
	if c.maxPending > 0 && len(c.slots) >= c.maxPending {
		c.mu.Unlock()
		return nil, fmt.Errorf("actor: too many pending actions (limit %d)", c.maxPending)
	}
	id := c.nextActionID
	c.nextActionID++
	slot := &pendingAction{result: make(chan actionResult, 1)}
	c.slots[id] = slot
	c.mu.Unlock()

	c.sendMsg(actionRequestFrame(id, method, args), false)

	select {
	case res := <-slot.result:
		return res.output, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.slots, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.drain:
		// The slot may still be delivered by disconnect()'s cleanup; wait
		// for whichever arrives, to avoid racing with it.
		select {
		case res := <-slot.result:
			return res.output, res.err
		case <-c.supervisorDone:
			return nil, ErrClosedDuringCall
		}
	}
}

// OnEvent registers callback for name. If name was not previously
// subscribed on this connection, a SubscriptionRequest is sent
// (ephemeral: dropped if disconnected, re-sent on every reconnect from
// the local subscription table).
func (c *ActorConnection) OnEvent(name string, callback EventCallback) {
	c.mu.Lock()
	_, existed := c.subs[name]
	c.subs[name] = append(c.subs[name], callback)
	c.mu.Unlock()

	if !existed {
		c.sendMsg(subscriptionRequestFrame(name, true), true)
	}
}

// Disconnect transitions the connection to Draining, cancels the
// supervisory loop, tears down the driver, clears pending action waiters
// (each receives ErrClosedDuringCall), clears subscriptions, and resolves
// when the supervisory task has observed termination. It is idempotent: a
// second call returns immediately without side effects.
func (c *ActorConnection) Disconnect() {
	c.beginDrain()
	<-c.supervisorDone
}

// beginDrain performs the drain side effects exactly once, without
// waiting for the supervisory task to finish. Disconnect (called from
// any other goroutine) waits afterward; supervise (called from its own
// goroutine, e.g. on observing the shutdown broadcast) cannot wait on
// its own completion and just lets its own return close supervisorDone.
func (c *ActorConnection) beginDrain() {
	c.drainOnce.Do(func() {
		c.mu.Lock()
		c.state = stateDraining
		cur := c.cur
		c.mu.Unlock()

		close(c.drain)
		c.cancel()
		if cur != nil {
			cur.disconnect()
		}

		c.mu.Lock()
		for id, slot := range c.slots {
			slot.result <- actionResult{err: ErrClosedDuringCall}
			delete(c.slots, id)
		}
		c.subs = make(map[string][]EventCallback)
		c.mu.Unlock()
	})
}

// Stats returns a point-in-time snapshot of the connection.
func (c *ActorConnection) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionStats{
		State:            c.state.String(),
		ReconnectCount:   c.reconnectCount,
		PendingActions:   len(c.slots),
		SubscribedEvents: len(c.subs),
	}
}

// ActorID returns the id of the actor this connection has handshaked
// with, or "" before the first Init frame is observed.
func (c *ActorConnection) ActorID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actorID
}

// sendMsg implements the send discipline of §4.1: if a driver is
// attached, hand the frame to it directly; otherwise queue non-ephemeral
// frames for delivery after the next Open, and silently drop ephemeral
// ones.
func (c *ActorConnection) sendMsg(frame *ToServerFrame, ephemeral bool) {
	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()

	if cur != nil {
		if err := cur.send(c.ctx, frame); err == nil {
			return
		}
		// Driver refused the frame (e.g. a write raced its own teardown);
		// fall through to the disconnected-queue discipline below.
	}

	if ephemeral {
		return
	}
	c.mu.Lock()
	c.outbound = append(c.outbound, frame)
	c.mu.Unlock()
}

// supervise is the single task that owns the connection lifecycle,
// implementing §4.1's supervisory loop.
func (c *ActorConnection) supervise() {
	defer close(c.supervisorDone)

	bo := newBackoff()
	for {
		if c.draining() {
			c.beginDrain()
			c.finishClose()
			return
		}

		if err := c.attemptLimiter.Wait(c.ctx); err != nil {
			c.beginDrain()
			c.finishClose()
			return
		}

		didOpen := c.connectOnce()

		if c.draining() {
			c.beginDrain()
			c.finishClose()
			return
		}

		if didOpen {
			bo.reset()
			continue
		}

		select {
		case <-c.drain:
			c.beginDrain()
			c.finishClose()
			return
		case <-c.shutdown:
			c.beginDrain()
			c.finishClose()
			return
		default:
		}

		if err := bo.tick(c.ctx); err != nil {
			// ctx was canceled by Disconnect(); loop head will observe
			// draining and exit.
			continue
		}
	}
}

func (c *ActorConnection) draining() bool {
	select {
	case <-c.drain:
		return true
	default:
	}
	select {
	case <-c.shutdown:
		return true
	default:
	}
	return false
}

func (c *ActorConnection) finishClose() {
	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()
}

// connectOnce performs one connect attempt and, if it succeeds, drives
// the receive loop until the driver terminates. It returns whether an
// Init frame was observed (protocol-level openness), which governs
// whether the caller resets backoff.
func (c *ActorConnection) connectOnce() bool {
	c.mu.Lock()
	c.state = stateConnecting
	target := c.target
	c.mu.Unlock()

	d, err := c.connect(c.ctx, target)
	if err != nil {
		c.diagnostics("", fmt.Errorf("connect: %w", err))
		return false
	}

	c.mu.Lock()
	c.cur = d
	c.reconnectCount++
	c.mu.Unlock()

	didOpen, reason := c.receiveLoop(d)

	c.mu.Lock()
	c.cur = nil
	if c.state != stateDraining && c.state != stateClosed {
		c.state = stateConnecting
	}
	c.mu.Unlock()

	if !reason.isTerminal() {
		c.diagnostics(c.target.query.hint(), fmt.Errorf("connection lost: %s", reason))
	}

	return didOpen
}

// receiveLoop handles frames decoded by d until it terminates, per §4.1's
// "Message handling on Open". It returns whether an Init frame was
// observed and the reason the driver eventually stopped.
func (c *ActorConnection) receiveLoop(d driver) (bool, DriverStopReason) {
	didOpen := false
	for {
		select {
		case frame, ok := <-d.inbound():
			if !ok {
				return didOpen, <-d.stopped()
			}
			if frame.B.Init != nil {
				didOpen = true
				c.handleOpen(d, frame.B.Init)
				continue
			}
			c.handleFrame(frame)
		case reason := <-d.stopped():
			return didOpen, reason
		}
	}
}

// handleOpen marks the connection Open, rehydrates subscriptions, and
// drains the outbound queue, per §4.1 and the rehydration invariant in
// §3/§8 (invariant 2).
func (c *ActorConnection) handleOpen(d driver, init *InitToClient) {
	c.mu.Lock()
	c.state = stateOpen
	c.actorID = init.ActorID
	names := make([]string, 0, len(c.subs))
	for name := range c.subs {
		names = append(names, name)
	}
	queued := c.outbound
	c.outbound = nil
	c.mu.Unlock()

	for _, name := range names {
		d.send(c.ctx, subscriptionRequestFrame(name, true))
	}
	for i, frame := range queued {
		if err := d.send(c.ctx, frame); err != nil {
			// Driver died mid-drain; re-queue this frame and everything
			// still behind it for the next Open to retry.
			c.mu.Lock()
			c.outbound = append(append([]*ToServerFrame(nil), queued[i:]...), c.outbound...)
			c.mu.Unlock()
			return
		}
	}
}

func (c *ActorConnection) handleFrame(frame *ToClientFrame) {
	switch {
	case frame.B.Response != nil:
		c.deliverAction(frame.B.Response.ID, actionResult{output: frame.B.Response.Output})
	case frame.B.Error != nil:
		c.handleError(frame.B.Error)
	case frame.B.Event != nil:
		c.dispatchEvent(frame.B.Event)
	}
}

func (c *ActorConnection) handleError(e *ErrorBody) {
	if e.ActionID != nil {
		c.deliverAction(*e.ActionID, actionResult{err: &ActionError{Code: e.Code, Message: e.Message, Metadata: e.Metadata}})
		return
	}
	c.diagnostics(c.target.query.hint(), &ConnectionError{Code: e.Code, Message: e.Message, Metadata: e.Metadata})
}

func (c *ActorConnection) deliverAction(id int64, res actionResult) {
	c.mu.Lock()
	slot, ok := c.slots[id]
	if ok {
		delete(c.slots, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("actor: response for unknown action id", "id", id)
		return
	}
	slot.result <- res
}

// dispatchEvent snapshots the callback list under the subscription lock,
// releases the lock, then invokes each callback with the event's
// arguments, isolating panics so one bad callback cannot tear down the
// connection task.
func (c *ActorConnection) dispatchEvent(e *EventMessageBody) {
	c.mu.Lock()
	callbacks := append([]EventCallback(nil), c.subs[e.Name]...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		c.invokeCallback(cb, e.Args)
	}
}

func (c *ActorConnection) invokeCallback(cb EventCallback, args []any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("actor: event callback panicked", "recovered", r)
		}
	}()
	cb(args)
}

// hint returns a short human-readable description of the query, for
// diagnostics only.
func (q ActorQuery) hint() string {
	name, _ := q.variant()
	switch {
	case q.GetForID != nil:
		return fmt.Sprintf("%s(%s)", name, q.GetForID.ActorID)
	case q.GetForKey != nil:
		return fmt.Sprintf("%s(%s)", name, q.GetForKey.Name)
	case q.GetOrCreateForKey != nil:
		return fmt.Sprintf("%s(%s)", name, q.GetOrCreateForKey.Name)
	case q.Create != nil:
		return fmt.Sprintf("%s(%s)", name, q.Create.Name)
	default:
		return "unknown"
	}
}
