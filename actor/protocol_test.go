// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"strings"
	"testing"
)

func TestActorKeyValidateAcceptsWithinLimit(t *testing.T) {
	key := ActorKey{"tenant-1", "room-42"}
	if err := key.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestActorKeyValidateRejectsOverLongElement(t *testing.T) {
	key := ActorKey{strings.Repeat("x", MaxKeyElementBytes+1)}
	if err := key.Validate(); err == nil {
		t.Fatal("expected error for over-long key element")
	}
}

func TestActorKeyValidateAcceptsEmptyKey(t *testing.T) {
	if err := (ActorKey{}).Validate(); err != nil {
		t.Errorf("Validate() on empty key = %v, want nil", err)
	}
}

func TestQueryConstructorsSetExactlyOneVariant(t *testing.T) {
	cases := []ActorQuery{
		QueryForID("a"),
		QueryForKey("room", ActorKey{"x"}),
		QueryGetOrCreate("room", ActorKey{"x"}, nil, ""),
		QueryCreate("room", ActorKey{"x"}, nil, ""),
	}
	for i, q := range cases {
		if _, count := q.variant(); count != 1 {
			t.Errorf("case %d: variant count = %d, want 1", i, count)
		}
	}
}
