// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"time"
)

// backoff generates exponentially increasing delays capped at a maximum,
// with no jitter: this keeps reconnect timing deterministic for tests. An
// embedder wanting jitter can wrap tick() externally.
type backoff struct {
	delay time.Duration
	max   time.Duration
}

const (
	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 30 * time.Second
)

func newBackoff() *backoff {
	return &backoff{delay: defaultBackoffInitial, max: defaultBackoffMax}
}

// tick suspends for the current delay, then doubles it (capped at max),
// and returns nil. It returns ctx.Err() if ctx is canceled before the
// delay elapses.
func (b *backoff) tick(ctx context.Context) error {
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.delay *= 2
	if b.delay > b.max {
		b.delay = b.max
	}
	return nil
}

// reset restores the delay to its initial value. Called after the
// connection observes protocol-level openness (an Init frame), not on
// mere TCP success, so repeated handshake failures do not hot-loop.
func (b *backoff) reset() {
	b.delay = defaultBackoffInitial
}
