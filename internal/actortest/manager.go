// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package actortest implements a minimal in-process actor manager, used
// by the actor package's tests in place of a real manager deployment. It
// speaks the same wire protocol as a production manager (resolve,
// stateless actions, websocket and SSE persistent connections) but keeps
// all actor state in memory and lets tests script action behavior and
// push events directly.
package actortest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	json "github.com/segmentio/encoding/json"

	"github.com/actor-sdk/go-client/actor"
)

// ActionFunc implements the behavior of a single named action.
type ActionFunc func(actorID string, args []any) (any, error)

// Manager is a tiny in-memory stand-in for a production actor manager.
type Manager struct {
	mu         sync.Mutex
	byKey      map[string]string // name/key -> actor id
	nextSerial int

	// maxBodyBytes bounds request bodies accepted by the stateless-action
	// and message endpoints; see effectiveMaxBodyBytes for its zero/negative
	// semantics. Tests leave it at 0 (DefaultMaxBodyBytes).
	maxBodyBytes int64

	actions map[string]ActionFunc

	sessions map[string]*session // conn id -> session
	upgrader websocket.Upgrader

	mux *http.ServeMux
}

// NewManager constructs an empty Manager. Register action behavior with
// Handle before starting the server.
func NewManager() *Manager {
	m := &Manager{
		byKey:    make(map[string]string),
		actions:  make(map[string]ActionFunc),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	m.mux = http.NewServeMux()
	m.mux.HandleFunc("/actors/resolve", m.handleResolve)
	m.mux.HandleFunc("/actors/actions/", m.handleStatelessAction)
	m.mux.HandleFunc("/actors/connect/websocket", m.handleConnectWebSocket)
	m.mux.HandleFunc("/actors/connect/sse", m.handleConnectSSE)
	m.mux.HandleFunc("/actors/message", m.handleMessage)
	return m
}

// ServeHTTP implements http.Handler.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) { m.mux.ServeHTTP(w, r) }

// NewServer starts m on an httptest.Server and returns it. Callers must
// Close() the server themselves.
func (m *Manager) NewServer() *httptest.Server {
	return httptest.NewServer(m)
}

// SetMaxBodyBytes overrides the request body size limit enforced by the
// stateless-action and message endpoints; see effectiveMaxBodyBytes.
func (m *Manager) SetMaxBodyBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxBodyBytes = n
}

// Handle registers the behavior of a named action. Calling Handle for a
// name that is already registered replaces it.
func (m *Manager) Handle(name string, fn ActionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[name] = fn
}

// Emit pushes a named event with args to every live session attached to
// actorID that is currently subscribed to it.
func (m *Manager) Emit(actorID, event string, args []any) {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.actorID == actorID {
			sessions = append(sessions, s)
		}
	}
	m.mu.Unlock()

	body := &actor.EventMessageBody{Name: event, Args: args}
	for _, s := range sessions {
		if s.isSubscribed(event) {
			s.sendToClient(&actor.ToClientFrame{B: actor.ToClientBody{Event: body}})
		}
	}
}

// SessionCount returns the number of live persistent-connection sessions,
// for tests asserting reconnect behavior.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// DropSession forcibly tears down one live session attached to actorID,
// simulating a server-side disconnect (crash, restart, load-balancer
// eviction) so tests can exercise the client's supervisory reconnect path.
// It reports whether a session was found to drop.
func (m *Manager) DropSession(actorID string) bool {
	m.mu.Lock()
	var target *session
	for _, s := range m.sessions {
		if s.actorID == actorID {
			target = s
			break
		}
	}
	m.mu.Unlock()
	if target == nil {
		return false
	}
	target.close()
	return true
}

func (m *Manager) resolveActorID(q actor.ActorQuery) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case q.GetForID != nil:
		return q.GetForID.ActorID, nil
	case q.GetForKey != nil:
		id, ok := m.byKey[keyOf(q.GetForKey.Name, q.GetForKey.Key)]
		if !ok {
			return "", fmt.Errorf("actor %q not found", keyOf(q.GetForKey.Name, q.GetForKey.Key))
		}
		return id, nil
	case q.GetOrCreateForKey != nil:
		k := keyOf(q.GetOrCreateForKey.Name, q.GetOrCreateForKey.Key)
		if id, ok := m.byKey[k]; ok {
			return id, nil
		}
		id := m.mintLocked()
		m.byKey[k] = id
		return id, nil
	case q.Create != nil:
		k := keyOf(q.Create.Name, q.Create.Key)
		id := m.mintLocked()
		m.byKey[k] = id
		return id, nil
	default:
		return "", fmt.Errorf("query has no populated variant")
	}
}

func (m *Manager) mintLocked() string {
	m.nextSerial++
	return fmt.Sprintf("actor-%d", m.nextSerial)
}

func keyOf(name string, key actor.ActorKey) string {
	return name + "/" + strings.Join(key, "/")
}

func (m *Manager) dispatchAction(actorID, name string, args []any) (any, error) {
	m.mu.Lock()
	fn, ok := m.actions[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	return fn(actorID, args)
}

func (m *Manager) handleResolve(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQueryHeader(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := m.resolveActorID(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		ActorID string `json:"i"`
	}{ActorID: id})
}

func (m *Manager) handleStatelessAction(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/actors/actions/")
	q, err := decodeQueryHeader(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actorID, err := m.resolveActorID(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var in struct {
		Args []any `json:"a"`
	}
	body, ok := m.readLimitedBody(w, r)
	if !ok {
		return
	}
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := m.dispatchAction(actorID, name, in.Args)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Output any `json:"o"`
	}{Output: out})
}

func decodeQueryHeader(r *http.Request) (actor.ActorQuery, error) {
	raw := r.Header.Get("X-AC-Query")
	if raw == "" {
		return actor.ActorQuery{}, fmt.Errorf("missing X-AC-Query header")
	}
	return actor.DecodeQuery([]byte(raw))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}
