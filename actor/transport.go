// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import "context"

// driver is the capability set common to both persistent-connection
// transports (WebSocket, SSE). The two implementations are tagged variants
// of this single capability set, chosen at ActorConnection construction
// time, not per call.
type driver interface {
	// send hands a frame to the driver's outbound side. Neither driver
	// queues outbound frames: the WebSocket driver writes the frame to the
	// socket before returning and the SSE driver performs the HTTP POST
	// before returning, so send blocks for the duration of that write. Only
	// the inbound side is a bounded channel (capacity 32).
	send(ctx context.Context, frame *ToServerFrame) error
	// disconnect aborts the driver, causing its termination future to
	// resolve with StopUserAborted.
	disconnect()
	// inbound is the stream of decoded to-client frames.
	inbound() <-chan *ToClientFrame
	// stopped resolves exactly once, with the reason the driver stopped.
	stopped() <-chan DriverStopReason
}

// connectTarget bundles everything a driver needs to dial the manager:
// the endpoint, the resolved wire encoding, the actor query, and optional
// connection params carried on the handshake.
type connectTarget struct {
	endpoint string
	encoding EncodingKind
	query    ActorQuery
	params   any
}

// connectFunc dials a transport and returns a live driver, or an error if
// the dial failed. The WebSocket variant also fails if sending its Init
// frame fails; the SSE variant waits for the server's Init event and fails
// if that handshake does not complete.
type connectFunc func(ctx context.Context, target connectTarget) (driver, error)

// connectionState is the lifecycle state of an ActorConnection.
type connectionState int

const (
	stateNew connectionState = iota
	stateConnecting
	stateOpen
	stateDraining
	stateClosed
)

func (s connectionState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
