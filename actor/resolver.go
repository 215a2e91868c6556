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
)

// resolve performs the one-shot HTTP call that turns a query into an
// actor id (C5). It is used to collapse a create query into a subsequent
// getForId query, so that a persistent-connection handle's identity is
// fixed at create time and reconnects do not re-create the actor.
func resolve(ctx context.Context, endpoint string, encoding EncodingKind, q ActorQuery) (string, error) {
	queryBytes, err := EncodeQuery(q)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", &ResolveFailure{Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	u.Path = joinPath(u.Path, "/actors/resolve")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", &ResolveFailure{Err: err}
	}
	req.Header.Set(headerEncoding, string(encoding))
	req.Header.Set(headerQuery, string(queryBytes))
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		return "", &ResolveFailure{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ResolveFailure{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ResolveFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(body))}
	}

	var out struct {
		ActorID string `json:"i"`
	}
	if err := jsonUnmarshal(body, &out); err != nil {
		return "", &ResolveFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed resolve response: %w", err)}
	}
	if out.ActorID == "" {
		return "", &ResolveFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("resolve response missing actor id")}
	}
	return out.ActorID, nil
}
