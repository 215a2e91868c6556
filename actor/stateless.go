// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// StatelessHandle performs fire-and-forget actions over HTTP using a
// query, without ever opening a persistent connection or maintaining
// subscriptions (C6).
type StatelessHandle struct {
	endpoint string
	encoding EncodingKind

	mu     sync.Mutex
	query  ActorQuery
	params any
}

func newStatelessHandle(endpoint string, encoding EncodingKind, query ActorQuery, params any) *StatelessHandle {
	return &StatelessHandle{endpoint: endpoint, encoding: encoding, query: query, params: params}
}

// Action invokes a named action on the actor described by the handle's
// current query and returns its decoded result.
func (h *StatelessHandle) Action(ctx context.Context, name string, args []any) (any, error) {
	h.mu.Lock()
	query, params := h.query, h.params
	h.mu.Unlock()

	queryBytes, err := EncodeQuery(query)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("actor: invalid endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "/actors/actions/"+url.PathEscape(name))

	body, err := jsonMarshal(struct {
		Args []any `json:"a"`
	}{Args: args})
	if err != nil {
		return nil, fmt.Errorf("actor: encode action args: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("actor: build action request: %w", err)
	}
	req.Header.Set(headerEncoding, string(h.encoding))
	req.Header.Set(headerQuery, string(queryBytes))
	if params != nil {
		p, err := jsonMarshal(params)
		if err != nil {
			return nil, fmt.Errorf("actor: encode conn params: %w", err)
		}
		req.Header.Set(headerConnParams, string(p))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor: stateless action failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("actor: read action response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("actor: stateless action %q returned status %d: %s", name, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var out struct {
		Output any `json:"o"`
	}
	if err := jsonUnmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("actor: decode action response: %w", err)
	}
	return out.Output, nil
}

// Resolve pins this handle to the actor currently selected by its query,
// by resolving it once and swapping the query for a getForId query.
// Subsequent Action calls then target the same actor even if the
// original query was a getOrCreate or create that might otherwise select
// a different actor on a later call.
func (h *StatelessHandle) Resolve(ctx context.Context) error {
	h.mu.Lock()
	query := h.query
	h.mu.Unlock()

	id, err := resolve(ctx, h.endpoint, h.encoding, query)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.query = QueryForID(id)
	h.mu.Unlock()
	return nil
}
