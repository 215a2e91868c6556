// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	json "github.com/segmentio/encoding/json"
)

// codec encodes and decodes wire frames in either JSON or CBOR. Unknown
// discriminator keys are rejected on decode; unknown non-discriminator
// fields are ignored, matching the forward-compatibility rule in the wire
// contract.
type codec struct {
	encoding EncodingKind
}

func newCodec(enc EncodingKind) codec {
	return codec{encoding: enc}
}

// EncodeToServer serializes a client-to-manager frame.
func (c codec) EncodeToServer(f *ToServerFrame) ([]byte, error) {
	switch c.encoding {
	case EncodingJSON:
		return json.Marshal(f)
	case EncodingCBOR:
		return cbor.Marshal(f)
	default:
		return nil, fmt.Errorf("actor: unknown encoding %q", c.encoding)
	}
}

// EncodeToClient serializes a manager-to-client frame. It exists
// symmetrically with EncodeToServer for use by test servers and the mock
// manager harness; production clients only ever decode this direction.
func (c codec) EncodeToClient(f *ToClientFrame) ([]byte, error) {
	switch c.encoding {
	case EncodingJSON:
		return json.Marshal(f)
	case EncodingCBOR:
		return cbor.Marshal(f)
	default:
		return nil, fmt.Errorf("actor: unknown encoding %q", c.encoding)
	}
}

// DecodeToServer deserializes a client-to-manager frame, as done by a
// manager implementation or test harness.
func (c codec) DecodeToServer(data []byte) (*ToServerFrame, error) {
	raw, err := decodeEnvelope(c.encoding, data)
	if err != nil {
		return nil, err
	}
	if err := validateDiscriminator(raw.body, toServerDiscriminators); err != nil {
		return nil, err
	}
	f := new(ToServerFrame)
	if err := unmarshalFor(c.encoding, data, f); err != nil {
		return nil, fmt.Errorf("actor: decode to-server frame: %w", err)
	}
	return f, nil
}

// DecodeToClient deserializes a manager-to-client frame.
func (c codec) DecodeToClient(data []byte) (*ToClientFrame, error) {
	raw, err := decodeEnvelope(c.encoding, data)
	if err != nil {
		return nil, err
	}
	if err := validateDiscriminator(raw.body, toClientDiscriminators); err != nil {
		return nil, err
	}
	f := new(ToClientFrame)
	if err := unmarshalFor(c.encoding, data, f); err != nil {
		return nil, fmt.Errorf("actor: decode to-client frame: %w", err)
	}
	return f, nil
}

var toServerDiscriminators = []string{"init", "action", "subscription"}
var toClientDiscriminators = []string{"init", "response", "error", "event"}

type envelope struct {
	body map[string]struct{}
}

// decodeEnvelope decodes only as far as the "b" wrapper's key set, to check
// the discriminator before committing to a typed unmarshal. JSON and CBOR
// need distinct raw-message types (json.RawMessage vs cbor.RawMessage), so
// each encoding gets its own wrapper shape; only the resulting key set is
// kept.
func decodeEnvelope(enc EncodingKind, data []byte) (*envelope, error) {
	keys := make(map[string]struct{})
	switch enc {
	case EncodingJSON:
		var wrapper struct {
			B map[string]json.RawMessage `json:"b"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("actor: decode frame envelope: %w", err)
		}
		for k := range wrapper.B {
			keys[k] = struct{}{}
		}
	case EncodingCBOR:
		var wrapper struct {
			B map[string]cbor.RawMessage `cbor:"b"`
		}
		if err := cbor.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("actor: decode frame envelope: %w", err)
		}
		for k := range wrapper.B {
			keys[k] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("actor: unknown encoding %q", enc)
	}
	return &envelope{body: keys}, nil
}

// validateDiscriminator enforces that exactly one recognized key is
// present in the frame body, rejecting unknown discriminators outright.
// This mirrors the case-sensitive, smuggling-resistant field validation in
// the jsonrpc2 strict decoder, narrowed to the single discriminator field
// this protocol actually needs checked strictly.
func validateDiscriminator(body map[string]struct{}, known []string) error {
	if len(body) == 0 {
		return fmt.Errorf("actor: frame body has no discriminator key")
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	var present []string
	for k := range body {
		if !knownSet[k] {
			return fmt.Errorf("actor: unknown frame discriminator %q", k)
		}
		present = append(present, k)
	}
	if len(present) != 1 {
		return fmt.Errorf("actor: frame body must have exactly one discriminator, got %v", present)
	}
	return nil
}

func unmarshalFor(enc EncodingKind, data []byte, v any) error {
	switch enc {
	case EncodingJSON:
		return json.Unmarshal(data, v)
	case EncodingCBOR:
		return cbor.Unmarshal(data, v)
	default:
		return fmt.Errorf("actor: unknown encoding %q", enc)
	}
}

// EncodeToClientFrame serializes a manager-to-client frame in the given
// encoding. Exported for use by manager test harnesses (see
// internal/actortest), which play the server side of this protocol.
func EncodeToClientFrame(enc EncodingKind, f *ToClientFrame) ([]byte, error) {
	return newCodec(enc).EncodeToClient(f)
}

// DecodeToServerFrame deserializes a client-to-manager frame in the given
// encoding. Exported for use by manager test harnesses.
func DecodeToServerFrame(enc EncodingKind, data []byte) (*ToServerFrame, error) {
	return newCodec(enc).DecodeToServer(data)
}

// EncodeQuery serializes an ActorQuery for transport in the X-AC-Query
// header or the websocket connect URL's query parameter. Queries are
// always carried as JSON, independent of the frame encoding, since they
// travel in HTTP headers and URLs rather than the frame stream.
func EncodeQuery(q ActorQuery) ([]byte, error) {
	if name, count := q.variant(); count != 1 {
		return nil, fmt.Errorf("actor: query must set exactly one variant, got %d (%s)", count, name)
	}
	return json.Marshal(q)
}

// DecodeQuery parses a query previously serialized by EncodeQuery.
func DecodeQuery(data []byte) (ActorQuery, error) {
	var q ActorQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return ActorQuery{}, fmt.Errorf("actor: decode query: %w", err)
	}
	if _, count := q.variant(); count != 1 {
		return ActorQuery{}, fmt.Errorf("actor: decoded query does not have exactly one variant set")
	}
	return q, nil
}
