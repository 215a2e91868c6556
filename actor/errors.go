// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"errors"
	"fmt"
)

// ActionError is the structured, correlated failure returned by action()
// when the manager answers with an Error frame carrying the action's id.
type ActionError struct {
	Code     string
	Message  string
	Metadata map[string]any
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("actor: action error %s: %s", e.Code, e.Message)
}

// ConnectionError is an unsolicited, non-correlated Error frame surfaced
// through a Client's diagnostics sink rather than returned from an action
// call. It does not by itself terminate the connection.
type ConnectionError struct {
	Code     string
	Message  string
	Metadata map[string]any
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("actor: connection error %s: %s", e.Code, e.Message)
}

// ResolveFailure wraps a failed call to the manager's resolve HTTP
// endpoint: a request error, a non-2xx status, or a malformed response.
// Stateless actions report their HTTP failures as plain errors instead.
type ResolveFailure struct {
	StatusCode int
	Err        error
}

func (e *ResolveFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("actor: resolve failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("actor: resolve failed with status %d", e.StatusCode)
}

func (e *ResolveFailure) Unwrap() error { return e.Err }

// ErrClosedDuringCall is returned by a pending action() call that was
// still in flight when the connection reached its terminal closed state,
// either via disconnect() or a parent Client shutdown.
var ErrClosedDuringCall = errors.New("actor: connection closed while action was in flight")

// DriverStopReason classifies why a transport driver's termination future
// resolved, distinguishing local cancellation (terminal) from remote
// failure shapes (all of which trigger a supervised reconnect).
type DriverStopReason int

const (
	// StopUserAborted means the driver was torn down by a local
	// disconnect(); the supervisory loop does not reconnect.
	StopUserAborted DriverStopReason = iota
	// StopServerDisconnect means the server closed the transport cleanly.
	StopServerDisconnect
	// StopServerError means the server emitted a transport-level error.
	StopServerError
	// StopTaskError means the driver's own I/O or transport library
	// failed (a read error on the SSE event stream). Dial errors are not
	// stop reasons: the connect function returns them directly.
	StopTaskError
)

func (r DriverStopReason) String() string {
	switch r {
	case StopUserAborted:
		return "userAborted"
	case StopServerDisconnect:
		return "serverDisconnect"
	case StopServerError:
		return "serverError"
	case StopTaskError:
		return "taskError"
	default:
		return "unknown"
	}
}

// isTerminal reports whether a stop reason should end the supervisory
// loop outright, rather than trigger a reconnect attempt.
func (r DriverStopReason) isTerminal() bool {
	return r == StopUserAborted
}
