// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/actor-sdk/go-client/actor"
	"github.com/actor-sdk/go-client/internal/actortest"
)

// S1 — happy path: create, open a websocket connection, perform a
// correlated action, receive a matching response.
func TestConnectionActionRoundTrip(t *testing.T) {
	mgr := actortest.NewManager()
	counters := map[string]int{}
	var mu sync.Mutex
	mgr.Handle("increment", func(actorID string, args []any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		delta := 1
		if len(args) > 0 {
			if f, ok := args[0].(float64); ok {
				delta = int(f)
			}
		}
		counters[actorID] += delta
		return counters[actorID], nil
	})
	srv := mgr.NewServer()
	defer srv.Close()

	client := actor.NewClient(srv.URL, &actor.ClientOptions{Transport: actor.TransportWebSocket, Encoding: actor.EncodingJSON})
	defer client.Disconnect()

	handle := client.GetOrCreateForKey("counter", actor.ActorKey{"a"}, nil, "")
	conn, err := handle.Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := conn.Action(ctx, "increment", []any{float64(2)})
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if got, want := fmt.Sprintf("%v", out), "2"; got != want {
		t.Errorf("Action output = %v, want %v", got, want)
	}
}

// Event delivery over a stable websocket connection: a subscription
// registered via OnEvent receives events the manager pushes for the
// connection's actor.
func TestConnectionEventDelivery(t *testing.T) {
	mgr := actortest.NewManager()
	srv := mgr.NewServer()
	defer srv.Close()

	client := actor.NewClient(srv.URL, &actor.ClientOptions{Transport: actor.TransportWebSocket, Encoding: actor.EncodingJSON})
	defer client.Disconnect()

	handle := client.GetOrCreateForKey("room", actor.ActorKey{"lobby"}, nil, "")
	conn, err := handle.Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	received := make(chan []any, 1)
	conn.OnEvent("tick", func(args []any) {
		received <- args
	})

	actorID := waitForActorID(t, conn)
	// Give the subscription request a brief moment to reach the manager
	// after Open, since OnEvent's send races the handshake completing.
	time.Sleep(50 * time.Millisecond)

	mgr.Emit(actorID, "tick", []any{"hello"})

	select {
	case args := <-received:
		if len(args) != 1 || args[0] != "hello" {
			t.Errorf("received args = %v, want [hello]", args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

// waitForActorID blocks until conn has completed its handshake, or fails t.
func waitForActorID(t *testing.T, conn *actor.ActorConnection) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if id := conn.ActorID(); id != "" {
			return id
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("connection never opened")
	return ""
}

// S3 — reconnect preserves subscriptions: a session killed out from under
// the client (server crash/restart/LB eviction) triggers the supervisory
// loop's backoff-and-redial, and events subscribed to before the drop are
// still delivered afterward because the subscription table is rehydrated
// on the new Open, without the caller re-registering anything.
func TestConnectionReconnectAfterForcedDisconnect(t *testing.T) {
	mgr := actortest.NewManager()
	srv := mgr.NewServer()
	defer srv.Close()

	client := actor.NewClient(srv.URL, &actor.ClientOptions{Transport: actor.TransportWebSocket, Encoding: actor.EncodingJSON})
	defer client.Disconnect()

	handle := client.GetOrCreateForKey("room", actor.ActorKey{"lobby"}, nil, "")
	conn, err := handle.Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	received := make(chan []any, 4)
	conn.OnEvent("tick", func(args []any) {
		received <- args
	})

	actorID := waitForActorID(t, conn)
	time.Sleep(50 * time.Millisecond) // let the subscription request land

	before := conn.Stats().ReconnectCount
	if !mgr.DropSession(actorID) {
		t.Fatal("DropSession found no live session to drop")
	}

	// Wait for the supervisory loop to redial and reopen.
	deadline := time.Now().Add(5 * time.Second)
	for conn.Stats().ReconnectCount <= before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if conn.Stats().ReconnectCount <= before {
		t.Fatalf("ReconnectCount = %d, want > %d after forced disconnect", conn.Stats().ReconnectCount, before)
	}
	waitForActorID(t, conn)
	time.Sleep(50 * time.Millisecond) // let the rehydrated subscription land

	// The callback was never re-registered; delivery after reconnect proves
	// the subscription table was rehydrated automatically.
	mgr.Emit(actorID, "tick", []any{"still-here"})

	select {
	case args := <-received:
		if len(args) != 1 || args[0] != "still-here" {
			t.Errorf("received args = %v, want [still-here]", args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-reconnect event delivery")
	}
}

// End-to-end over the SSE transport: a stateless action call followed by a
// persistent SSE connection receiving a pushed event, mirroring
// TestConnectionActionRoundTrip/TestConnectionEventDelivery but exercising
// sse.go's GET-stream-plus-paired-POST driver instead of the websocket one.
func TestSSEActionAndEventRoundTrip(t *testing.T) {
	mgr := actortest.NewManager()
	mgr.Handle("increment", func(actorID string, args []any) (any, error) {
		delta := 1
		if len(args) > 0 {
			if f, ok := args[0].(float64); ok {
				delta = int(f)
			}
		}
		return delta * 10, nil
	})
	srv := mgr.NewServer()
	defer srv.Close()

	client := actor.NewClient(srv.URL, &actor.ClientOptions{Transport: actor.TransportSSE, Encoding: actor.EncodingJSON})
	defer client.Disconnect()

	handle := client.GetOrCreateForKey("room", actor.ActorKey{"sse-lobby"}, nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := handle.Action(ctx, "increment", []any{float64(3)})
	if err != nil {
		t.Fatalf("stateless Action over SSE: %v", err)
	}
	if got, want := fmt.Sprintf("%v", out), "30"; got != want {
		t.Errorf("Action output = %v, want %v", got, want)
	}

	conn, err := handle.Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	received := make(chan []any, 1)
	conn.OnEvent("tick", func(args []any) {
		received <- args
	})

	actorID := waitForActorID(t, conn)
	time.Sleep(50 * time.Millisecond)

	mgr.Emit(actorID, "tick", []any{"via-sse"})

	select {
	case args := <-received:
		if len(args) != 1 || args[0] != "via-sse" {
			t.Errorf("received args = %v, want [via-sse]", args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event delivery")
	}
}
