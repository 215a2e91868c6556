// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actortest

import (
	"encoding/base64"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/actor-sdk/go-client/actor"
)

// session is one live persistent connection, websocket or SSE, attached
// to a single actor.
type session struct {
	id       string
	token    string
	actorID  string
	encoding actor.EncodingKind

	mu   sync.Mutex
	subs map[string]bool

	sendFn  func(*actor.ToClientFrame) error
	closeFn func()
}

func newSession(actorID string, encoding actor.EncodingKind, sendFn func(*actor.ToClientFrame) error) *session {
	return &session{
		id:       uuid.NewString(),
		token:    uuid.NewString(),
		actorID:  actorID,
		encoding: encoding,
		subs:     make(map[string]bool),
		sendFn:   sendFn,
	}
}

// close tears down the session's underlying transport, simulating a
// server-initiated disconnect (crash, restart, load-balancer drop) for
// tests exercising the supervisory reconnect path.
func (s *session) close() {
	s.mu.Lock()
	fn := s.closeFn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *session) isSubscribed(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[event]
}

func (s *session) setSubscribed(event string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.subs[event] = true
	} else {
		delete(s.subs, event)
	}
}

func (s *session) sendToClient(f *actor.ToClientFrame) error {
	return s.sendFn(f)
}

// handleServerFrame dispatches one decoded client-to-manager frame,
// invoking the action handler or updating the subscription table as
// needed. It replies synchronously over the same session.
func (m *Manager) handleServerFrame(s *session, frame *actor.ToServerFrame) {
	switch {
	case frame.B.Action != nil:
		out, err := m.dispatchAction(s.actorID, frame.B.Action.Name, frame.B.Action.Args)
		if err != nil {
			id := frame.B.Action.ID
			s.sendToClient(&actor.ToClientFrame{B: actor.ToClientBody{Error: &actor.ErrorBody{
				Code: "actionFailed", Message: err.Error(), ActionID: &id,
			}}})
			return
		}
		s.sendToClient(&actor.ToClientFrame{B: actor.ToClientBody{Response: &actor.ActionResponseBody{
			ID: frame.B.Action.ID, Output: out,
		}}})
	case frame.B.Subscription != nil:
		s.setSubscribed(frame.B.Subscription.Event, frame.B.Subscription.Subscribe)
	}
}

func (m *Manager) handleConnectWebSocket(w http.ResponseWriter, r *http.Request) {
	encoding := actor.EncodingKind(r.URL.Query().Get("encoding"))
	q, err := actor.DecodeQuery([]byte(r.URL.Query().Get("query")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actorID, err := m.resolveActorID(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	s := newSession(actorID, encoding, func(f *actor.ToClientFrame) error {
		data, err := actor.EncodeToClientFrame(encoding, f)
		if err != nil {
			return err
		}
		messageType := websocket.TextMessage
		if encoding == actor.EncodingCBOR {
			messageType = websocket.BinaryMessage
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	})
	s.closeFn = func() { conn.Close() }

	// First inbound message must be Init; reply with InitToClient.
	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	first, err := actor.DecodeToServerFrame(encoding, data)
	if err != nil || first.B.Init == nil {
		return
	}
	if err := s.sendToClient(&actor.ToClientFrame{B: actor.ToClientBody{Init: &actor.InitToClient{
		ActorID: actorID, ConnID: s.id, ConnToken: s.token,
	}}}); err != nil {
		return
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.sessions, s.id)
		m.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := actor.DecodeToServerFrame(encoding, data)
		if err != nil {
			continue
		}
		m.handleServerFrame(s, frame)
	}
}

func (m *Manager) handleConnectSSE(w http.ResponseWriter, r *http.Request) {
	encoding := actor.EncodingKind(r.Header.Get("X-AC-Encoding"))
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

	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var writeMu sync.Mutex
	s := newSession(actorID, encoding, func(f *actor.ToClientFrame) error {
		data, err := actor.EncodeToClientFrame(encoding, f)
		if err != nil {
			return err
		}
		if encoding == actor.EncodingCBOR {
			data = []byte(base64.StdEncoding.EncodeToString(data))
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err = actor.WriteEvent(w, actor.Event{Data: data})
		return err
	})
	closed := make(chan struct{})
	s.closeFn = func() {
		select {
		case <-closed:
		default:
			close(closed)
		}
	}

	if err := s.sendToClient(&actor.ToClientFrame{B: actor.ToClientBody{Init: &actor.InitToClient{
		ActorID: actorID, ConnID: s.id, ConnToken: s.token,
	}}}); err != nil {
		return
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.sessions, s.id)
		m.mu.Unlock()
	}()

	select {
	case <-r.Context().Done():
	case <-closed:
	}
}

func (m *Manager) handleMessage(w http.ResponseWriter, r *http.Request) {
	connID := r.Header.Get("X-AC-Conn")
	token := r.Header.Get("X-AC-Conn-Token")
	encoding := actor.EncodingKind(r.Header.Get("X-AC-Encoding"))

	m.mu.Lock()
	s, ok := m.sessions[connID]
	m.mu.Unlock()
	if !ok || s.token != token {
		http.Error(w, "unknown connection", http.StatusNotFound)
		return
	}

	body, bodyOK := m.readLimitedBody(w, r)
	if !bodyOK {
		return
	}
	frame, err := actor.DecodeToServerFrame(encoding, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.handleServerFrame(s, frame)
	w.WriteHeader(http.StatusNoContent)
}
