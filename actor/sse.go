// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// HTTPClient is the http.Client used by the SSE driver and the stateless
// HTTP paths (resolver, stateless handle). A nil value falls back to
// http.DefaultClient.
var HTTPClient *http.Client

func httpClient() *http.Client {
	if HTTPClient != nil {
		return HTTPClient
	}
	return http.DefaultClient
}

const (
	headerEncoding   = "X-AC-Encoding"
	headerQuery      = "X-AC-Query"
	headerConnParams = "X-AC-Conn-Params"
	headerActor      = "X-AC-Actor"
	headerConn       = "X-AC-Conn"
	headerConnToken  = "X-AC-Conn-Token"
)

// sseDriver is the SSE variant of the persistent-connection driver (C3): a
// server-to-client event stream paired with an HTTP request channel for
// outbound frames.
//
// Unlike a general-purpose resilient SSE client, this driver does not
// retry internally: §4.2 specifies that server reconnect is disabled at
// the transport level because the supervisory loop in ActorConnection
// already owns reconnection and backoff. A stream break here simply stops
// the driver with StopServerDisconnect or StopTaskError, and the
// supervisory loop redials from scratch (including a fresh handshake).
type sseDriver struct {
	endpoint string
	cdc      codec

	mu        sync.Mutex
	actorID   string
	connID    string
	connToken string

	in   chan *ToClientFrame
	done chan DriverStopReason

	closeOnce sync.Once
	cancel    context.CancelFunc
}

func connectSSE(ctx context.Context, target connectTarget) (driver, error) {
	q, err := EncodeQuery(target.query)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(target.endpoint)
	if err != nil {
		return nil, fmt.Errorf("actor: invalid endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "/actors/connect/sse")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("actor: build sse request: %w", err)
	}
	req.Header.Set(headerEncoding, string(target.encoding))
	req.Header.Set(headerQuery, string(q))
	if target.params != nil {
		params, err := jsonMarshal(target.params)
		if err != nil {
			return nil, fmt.Errorf("actor: encode conn params: %w", err)
		}
		req.Header.Set(headerConnParams, string(params))
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor: sse connect failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("actor: sse connect returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	driverCtx, cancel := context.WithCancel(context.Background())
	d := &sseDriver{
		endpoint: target.endpoint,
		cdc:      newCodec(target.encoding),
		in:       make(chan *ToClientFrame, 32),
		done:     make(chan DriverStopReason, 1),
		cancel:   cancel,
	}

	handshake := make(chan error, 1)
	go d.readLoop(driverCtx, resp.Body, handshake)

	select {
	case err := <-handshake:
		if err != nil {
			cancel()
			return nil, err
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return d, nil
}

// readLoop decodes the SSE stream into frames. The first frame must be an
// Init; readLoop reports its handshake outcome on handshake exactly once,
// then continues delivering subsequent frames to in until the stream
// ends.
func (d *sseDriver) readLoop(ctx context.Context, body io.ReadCloser, handshake chan<- error) {
	defer body.Close()

	first := true
	reportHandshake := func(err error) {
		if first {
			handshake <- err
			first = false
		}
	}

	var stopReason = StopServerDisconnect
	scanEvents(body, func(ev event, err error) bool {
		if err != nil {
			if err == io.EOF {
				return false
			}
			stopReason = StopTaskError
			reportHandshake(fmt.Errorf("actor: sse stream error: %w", err))
			return false
		}
		if ev.name != "" && ev.name != "message" {
			return true // ignore comment/keepalive-style events
		}

		data := ev.data
		if d.cdc.encoding == EncodingCBOR {
			decoded, decErr := base64.StdEncoding.DecodeString(string(ev.data))
			if decErr != nil {
				return true // ProtocolDecode: skip malformed event
			}
			data = decoded
		}

		frame, decErr := d.cdc.DecodeToClient(data)
		if decErr != nil {
			return true
		}

		if first {
			if frame.B.Init == nil {
				reportHandshake(fmt.Errorf("actor: sse stream's first event was not Init"))
				return false
			}
			d.mu.Lock()
			d.actorID = frame.B.Init.ActorID
			d.connID = frame.B.Init.ConnID
			d.connToken = frame.B.Init.ConnToken
			d.mu.Unlock()
			reportHandshake(nil)
		}

		select {
		case d.in <- frame:
		case <-ctx.Done():
			return false
		}
		return true
	})

	select {
	case <-ctx.Done():
		d.finish(StopUserAborted)
	default:
		reportHandshake(fmt.Errorf("actor: sse stream ended before handshake"))
		d.finish(stopReason)
	}
}

// send posts a single outbound frame to the paired message endpoint.
// Per §9's open question, a POST failure here is not surfaced to the
// caller of action(): the correlated response (or the driver's eventual
// termination) is the authoritative signal, matching the manager HTTP
// API's fire-and-forget framing for this channel.
func (d *sseDriver) send(ctx context.Context, frame *ToServerFrame) error {
	data, err := d.cdc.EncodeToServer(frame)
	if err != nil {
		return fmt.Errorf("actor: encode frame: %w", err)
	}

	u, err := url.Parse(d.endpoint)
	if err != nil {
		return fmt.Errorf("actor: invalid endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "/actors/message")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("actor: build message request: %w", err)
	}

	d.mu.Lock()
	actorID, connID, connToken := d.actorID, d.connID, d.connToken
	d.mu.Unlock()

	req.Header.Set(headerEncoding, string(d.cdc.encoding))
	req.Header.Set(headerActor, actorID)
	req.Header.Set(headerConn, connID)
	req.Header.Set(headerConnToken, connToken)

	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("actor: send message failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("actor: send message returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *sseDriver) disconnect() {
	d.cancel()
	d.finish(StopUserAborted)
}

func (d *sseDriver) finish(reason DriverStopReason) {
	d.closeOnce.Do(func() {
		d.done <- reason
		close(d.done)
	})
}

func (d *sseDriver) inbound() <-chan *ToClientFrame   { return d.in }
func (d *sseDriver) stopped() <-chan DriverStopReason { return d.done }
