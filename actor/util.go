// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	json "github.com/segmentio/encoding/json"
)

// jsonMarshal is a thin wrapper so call sites don't need to decide between
// the stdlib encoding/json and segmentio/encoding/json import aliases.
func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// jsonUnmarshal is jsonMarshal's decode-side counterpart.
func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Decode converts a loosely typed value — an ActionResponse's Output or
// an EventMessage's Args element, both decoded generically off the wire
// — into a caller-specified Go type, by marshaling to JSON and
// unmarshaling into to, which must be a pointer.
func Decode(from any, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}
