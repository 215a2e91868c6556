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

// S2 — stateless action over HTTP: create an actor, then call an action
// on it without ever opening a persistent connection.
func TestStatelessActionWithoutPersistentConnection(t *testing.T) {
	mgr := actortest.NewManager()
	var mu sync.Mutex
	counters := map[string]int{}
	mgr.Handle("increment", func(actorID string, args []any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		delta := 0
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

	client := actor.NewClient(srv.URL, nil)
	defer client.Disconnect()

	ctx := context.Background()
	handle, err := client.Create(ctx, "counter", actor.ActorKey{"a"}, map[string]any{"start": 5}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := handle.Action(ctx, "increment", []any{float64(2)})
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if got, want := fmt.Sprintf("%v", out), "2"; got != want {
		t.Errorf("Action = %v, want %v", got, want)
	}

	if mgr.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0 (no persistent connection should have opened)", mgr.SessionCount())
	}
}

func TestClientDisconnectClosesConnections(t *testing.T) {
	mgr := actortest.NewManager()
	mgr.Handle("noop", func(string, []any) (any, error) { return nil, nil })
	srv := mgr.NewServer()
	defer srv.Close()

	client := actor.NewClient(srv.URL, &actor.ClientOptions{Transport: actor.TransportWebSocket})
	handle := client.GetOrCreateForKey("room", actor.ActorKey{"x"}, nil, "")
	conn, err := handle.Connect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Action(ctx, "noop", nil); err == nil {
		t.Error("expected Action on a disconnected connection to fail")
	}
}
