// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	bo := &backoff{delay: 1 * time.Millisecond, max: 4 * time.Millisecond}

	for i, want := range []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond} {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		start := time.Now()
		if err := bo.tick(ctx); err != nil {
			cancel()
			t.Fatalf("tick %d: %v", i, err)
		}
		cancel()
		if elapsed := time.Since(start); elapsed < 0 {
			t.Fatalf("tick %d: negative elapsed", i)
		}
		if bo.delay != want {
			t.Errorf("tick %d: delay = %v, want %v", i, bo.delay, want)
		}
	}
}

func TestBackoffResetRestoresInitialDelay(t *testing.T) {
	bo := &backoff{delay: 8 * time.Millisecond, max: 100 * time.Millisecond}
	bo.reset()
	if bo.delay != defaultBackoffInitial {
		t.Errorf("delay after reset = %v, want %v", bo.delay, defaultBackoffInitial)
	}
}

func TestBackoffTickRespectsContextCancellation(t *testing.T) {
	bo := newBackoff()
	bo.delay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bo.tick(ctx); err == nil {
		t.Fatal("expected context error from canceled tick")
	}
}
