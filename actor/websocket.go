// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer is the WebSocket dialer used by connectWebSocket. Exposed so
// callers can supply TLS config, proxies, or a custom handshake timeout; a
// nil Dialer falls back to websocket.DefaultDialer.
var Dialer *websocket.Dialer

// websocketDriver is the WebSocket variant of the persistent-connection
// driver (C3). It opens a single duplex socket, sends an Init frame
// immediately after connecting, and thereafter serializes outbound frames
// as text (JSON) or binary (CBOR) messages, decoding inbound frames the
// same way.
type websocketDriver struct {
	conn *websocket.Conn
	cdc  codec

	mu sync.Mutex // serializes writes; gorilla/websocket requires a single writer

	in   chan *ToClientFrame
	done chan DriverStopReason

	closeOnce sync.Once
	cancel    context.CancelFunc
}

func connectWebSocket(ctx context.Context, target connectTarget) (driver, error) {
	dialer := Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	u, err := websocketURL(target)
	if err != nil {
		return nil, err
	}

	conn, resp, err := dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("actor: websocket connect failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("actor: websocket connect failed: %w", err)
	}

	driverCtx, cancel := context.WithCancel(context.Background())
	d := &websocketDriver{
		conn:   conn,
		cdc:    newCodec(target.encoding),
		in:     make(chan *ToClientFrame, 32),
		done:   make(chan DriverStopReason, 1),
		cancel: cancel,
	}

	if err := d.writeFrame(initToServerFrame(target.params)); err != nil {
		conn.Close()
		cancel()
		return nil, fmt.Errorf("actor: websocket init send failed: %w", err)
	}

	go d.readLoop(driverCtx)
	return d, nil
}

func websocketURL(target connectTarget) (string, error) {
	q, err := EncodeQuery(target.query)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(target.endpoint)
	if err != nil {
		return "", fmt.Errorf("actor: invalid endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "/actors/connect/websocket")
	values := u.Query()
	values.Set("encoding", string(target.encoding))
	values.Set("query", string(q))
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// readLoop decodes inbound frames until the socket fails or is aborted.
// ProtocolDecode failures (malformed frames) are skipped rather than
// fatal. They are dropped silently: neither the log nor the connection's
// diagnostics sink sees them.
func (d *websocketDriver) readLoop(ctx context.Context) {
	for {
		messageType, data, err := d.conn.ReadMessage()
		if err != nil {
			reason := StopServerError
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = StopServerDisconnect
			}
			select {
			case <-ctx.Done():
				reason = StopUserAborted
			default:
			}
			d.finish(reason)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		frame, err := d.cdc.DecodeToClient(data)
		if err != nil {
			continue
		}
		select {
		case d.in <- frame:
		case <-ctx.Done():
			d.finish(StopUserAborted)
			return
		}
	}
}

func (d *websocketDriver) send(ctx context.Context, frame *ToServerFrame) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return d.writeFrame(frame)
}

func (d *websocketDriver) writeFrame(frame *ToServerFrame) error {
	data, err := d.cdc.EncodeToServer(frame)
	if err != nil {
		return fmt.Errorf("actor: encode frame: %w", err)
	}

	messageType := websocket.TextMessage
	if d.cdc.encoding == EncodingCBOR {
		messageType = websocket.BinaryMessage
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer d.conn.SetWriteDeadline(time.Time{})
	if err := d.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("actor: websocket write error: %w", err)
	}
	return nil
}

func (d *websocketDriver) disconnect() {
	d.cancel()
	d.conn.Close()
	d.finish(StopUserAborted)
}

func (d *websocketDriver) finish(reason DriverStopReason) {
	d.closeOnce.Do(func() {
		d.done <- reason
		close(d.done)
	})
}

func (d *websocketDriver) inbound() <-chan *ToClientFrame   { return d.in }
func (d *websocketDriver) stopped() <-chan DriverStopReason { return d.done }

func joinPath(base, suffix string) string {
	if base == "" || base == "/" {
		return suffix
	}
	trimmed := base
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed + suffix
}
