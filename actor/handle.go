// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"sync"
)

// Handle is a local reference to a remote actor, carrying the query used
// to address it (C9). It bundles a Stateless handle for fire-and-forget
// actions with a Connect factory that opens a persistent ActorConnection.
// A Handle never opens a connection on its own; only Connect does.
type Handle struct {
	client *Client
	query  ActorQuery

	mu        sync.Mutex
	stateless *StatelessHandle
}

// Action performs a single fire-and-forget action over HTTP, without
// opening or reusing any persistent connection. Equivalent to
// Stateless().Action(ctx, name, args).
func (h *Handle) Action(ctx context.Context, name string, args []any) (any, error) {
	return h.Stateless().Action(ctx, name, args)
}

// Stateless returns the StatelessHandle bundled with this Handle,
// constructing it on first use.
func (h *Handle) Stateless() *StatelessHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stateless == nil {
		h.stateless = newStatelessHandle(h.client.endpoint, h.client.encoding, h.query, nil)
	}
	return h.stateless
}

// Connect opens a persistent ActorConnection for this Handle's query,
// wired to the owning Client's shutdown broadcast. Each call produces an
// independent connection; callers that want a single shared connection
// should hold onto the returned *ActorConnection themselves.
func (h *Handle) Connect(ctx context.Context, opts *ConnectOptions) (*ActorConnection, error) {
	return h.client.newConnection(ctx, h.query, opts)
}
