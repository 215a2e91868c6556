// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodecRoundTripJSON(t *testing.T) {
	cdc := newCodec(EncodingJSON)
	id := int64(7)
	want := &ToServerFrame{B: ToServerBody{Action: &ActionRequestBody{ID: id, Name: "increment", Args: []any{float64(2)}}}}

	data, err := cdc.EncodeToServer(want)
	if err != nil {
		t.Fatalf("EncodeToServer: %v", err)
	}
	got, err := cdc.DecodeToServer(data)
	if err != nil {
		t.Fatalf("DecodeToServer: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodecRoundTripCBOR(t *testing.T) {
	cdc := newCodec(EncodingCBOR)
	want := &ToClientFrame{B: ToClientBody{Event: &EventMessageBody{Name: "tick", Args: []any{"a", "b"}}}}

	data, err := cdc.EncodeToClient(want)
	if err != nil {
		t.Fatalf("EncodeToClient: %v", err)
	}
	got, err := cdc.DecodeToClient(data)
	if err != nil {
		t.Fatalf("DecodeToClient: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownDiscriminator(t *testing.T) {
	cdc := newCodec(EncodingJSON)
	_, err := cdc.DecodeToServer([]byte(`{"b":{"bogus":{}}}`))
	if err == nil {
		t.Fatal("expected error for unknown discriminator")
	}
}

func TestDecodeRejectsMultipleDiscriminators(t *testing.T) {
	cdc := newCodec(EncodingJSON)
	_, err := cdc.DecodeToServer([]byte(`{"b":{"init":{},"action":{"i":1,"n":"x","a":[]}}}`))
	if err == nil {
		t.Fatal("expected error for multiple discriminators")
	}
}

func TestDecodeRejectsEmptyBody(t *testing.T) {
	cdc := newCodec(EncodingJSON)
	_, err := cdc.DecodeToServer([]byte(`{"b":{}}`))
	if err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestEncodeQueryRequiresExactlyOneVariant(t *testing.T) {
	if _, err := EncodeQuery(ActorQuery{}); err == nil {
		t.Fatal("expected error for empty query")
	}
	q := QueryForID("abc")
	data, err := EncodeQuery(q)
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}
	got, err := DecodeQuery(data)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if diff := cmp.Diff(q, got); diff != "" {
		t.Errorf("query round trip mismatch (-want +got):\n%s", diff)
	}
}
