// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Transport selects the persistent-connection transport used by
	// Handle.Connect. Defaults to TransportWebSocket.
	Transport TransportKind
	// Encoding selects the wire encoding for both persistent connections
	// and stateless HTTP calls. Defaults to EncodingJSON.
	Encoding EncodingKind
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// OnDiagnostic, if set, additionally receives every connection-level
	// and absorbed transport error across every connection the client
	// opens. Malformed inbound frames, which the drivers skip, are not
	// reported.
	OnDiagnostic func(err error)
}

// Client is the entry point for reaching actors hosted behind a single
// manager endpoint (C8). It mints Handles, which in turn open
// ActorConnections or perform stateless actions, and it broadcasts a
// single shutdown signal to every live connection it has produced.
type Client struct {
	endpoint  string
	transport TransportKind
	encoding  EncodingKind
	logger    *slog.Logger
	onDiag    func(error)

	mu       sync.Mutex
	closed   bool
	shutdown chan struct{}
	conns    map[*ActorConnection]struct{}
}

// NewClient builds a Client addressing the manager at endpoint, an
// http(s):// base URL under which /actors/... routes are served.
func NewClient(endpoint string, opts *ClientOptions) *Client {
	transport := TransportWebSocket
	encoding := EncodingJSON
	logger := slog.Default()
	var onDiag func(error)
	if opts != nil {
		if opts.Transport != "" {
			transport = opts.Transport
		}
		if opts.Encoding != "" {
			encoding = opts.Encoding
		}
		if opts.Logger != nil {
			logger = opts.Logger
		}
		onDiag = opts.OnDiagnostic
	}
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		encoding:  encoding,
		logger:    logger,
		onDiag:    onDiag,
		shutdown:  make(chan struct{}),
		conns:     make(map[*ActorConnection]struct{}),
	}
}

// GetForID returns a Handle addressing the actor with the given id.
func (c *Client) GetForID(actorID string) *Handle {
	return c.handle(QueryForID(actorID))
}

// GetForKey returns a Handle addressing the actor with the given name and
// key, which must already exist.
func (c *Client) GetForKey(name string, key ActorKey) *Handle {
	return c.handle(QueryForKey(name, key))
}

// GetOrCreateForKey returns a Handle that creates the actor with the
// given name and key if it does not already exist.
func (c *Client) GetOrCreateForKey(name string, key ActorKey, input any, region string) *Handle {
	return c.handle(QueryGetOrCreate(name, key, input, region))
}

// Create unconditionally creates a new actor of the given name and
// returns a Handle pinned to its resolved id. Unlike the other factory
// methods, Create performs a synchronous resolve call: a
// persistent-connection handle must be stable across reconnects, and a
// create query re-sent on every reconnect would create a fresh actor
// each time.
func (c *Client) Create(ctx context.Context, name string, key ActorKey, input any, region string) (*Handle, error) {
	id, err := resolve(ctx, c.endpoint, c.encoding, QueryCreate(name, key, input, region))
	if err != nil {
		return nil, err
	}
	return c.handle(QueryForID(id)), nil
}

func (c *Client) handle(query ActorQuery) *Handle {
	return &Handle{client: c, query: query}
}

// Disconnect closes every live connection this client has produced and
// prevents new ones from opening. It is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conns := make([]*ActorConnection, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	close(c.shutdown)
	// Every connection's Disconnect() blocks until its supervisory task
	// has fully unwound; tearing them down concurrently keeps
	// Client.Disconnect's latency at the slowest single connection
	// rather than their sum.
	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			conn.Disconnect()
			return nil
		})
	}
	g.Wait()
}

func (c *Client) register(conn *ActorConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn] = struct{}{}
}

func (c *Client) unregister(conn *ActorConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, conn)
}

func (c *Client) newConnection(ctx context.Context, query ActorQuery, opts *ConnectOptions) (*ActorConnection, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("actor: client is disconnected")
	}

	mergedOpts := &ConnectOptions{Logger: c.logger, OnDiagnostic: c.onDiag}
	if opts != nil {
		mergedOpts.Params = opts.Params
		mergedOpts.MaxPendingActions = opts.MaxPendingActions
		if opts.Logger != nil {
			mergedOpts.Logger = opts.Logger
		}
		if opts.OnDiagnostic != nil {
			userDiag := opts.OnDiagnostic
			clientDiag := c.onDiag
			mergedOpts.OnDiagnostic = func(err error) {
				if clientDiag != nil {
					clientDiag(err)
				}
				userDiag(err)
			}
		}
	}

	conn := newActorConnection(c.endpoint, c.transport, c.encoding, query, mergedOpts, c.shutdown)
	c.register(conn)

	go func() {
		<-conn.supervisorDone
		c.unregister(conn)
	}()

	return conn, nil
}
