// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package actor

import "fmt"

// Protocol types for the actor wire protocol: the query language used to
// address an actor, and the tagged-union frames exchanged between client
// and manager over a persistent connection.

// TransportKind selects the persistent-connection transport a Client uses.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportSSE       TransportKind = "sse"
)

// EncodingKind selects the wire encoding for frames.
type EncodingKind string

const (
	EncodingJSON EncodingKind = "json"
	EncodingCBOR EncodingKind = "cbor"
)

// ActorKey is an ordered sequence of short strings that, together with an
// actor name, forms the identity-forming tuple for name-based lookup.
//
// Each element must be at most MaxKeyElementBytes long.
type ActorKey []string

// MaxKeyElementBytes is the limit on a single ActorKey element, per the
// Manager HTTP API contract.
const MaxKeyElementBytes = 128

// Validate reports whether every element of the key is within the size
// limit. It does not reject an empty key: a zero-length key is a valid
// (if unusual) identity tuple.
func (k ActorKey) Validate() error {
	for i, part := range k {
		if len(part) > MaxKeyElementBytes {
			return &keyElementTooLongError{index: i, length: len(part)}
		}
	}
	return nil
}

// ActorQuery is a tagged union describing how to select or create an
// actor. Exactly one of the four fields is set; it is serialized as an
// untagged union with a single discriminator field at the top level.
type ActorQuery struct {
	GetForID          *GetForIDQuery          `json:"getForId,omitempty" cbor:"getForId,omitempty"`
	GetForKey         *GetForKeyQuery         `json:"getForKey,omitempty" cbor:"getForKey,omitempty"`
	GetOrCreateForKey *GetOrCreateForKeyQuery `json:"getOrCreateForKey,omitempty" cbor:"getOrCreateForKey,omitempty"`
	Create            *CreateQuery            `json:"create,omitempty" cbor:"create,omitempty"`
}

type GetForIDQuery struct {
	ActorID string `json:"actorId" cbor:"actorId"`
}

type GetForKeyQuery struct {
	Name string   `json:"name" cbor:"name"`
	Key  ActorKey `json:"key" cbor:"key"`
}

type GetOrCreateForKeyQuery struct {
	Name   string   `json:"name" cbor:"name"`
	Key    ActorKey `json:"key" cbor:"key"`
	Input  any      `json:"input,omitempty" cbor:"input,omitempty"`
	Region string   `json:"region,omitempty" cbor:"region,omitempty"`
}

type CreateQuery struct {
	Name   string   `json:"name" cbor:"name"`
	Key    ActorKey `json:"key" cbor:"key"`
	Input  any      `json:"input,omitempty" cbor:"input,omitempty"`
	Region string   `json:"region,omitempty" cbor:"region,omitempty"`
}

// QueryForID builds a query selecting an actor by its resolved id.
func QueryForID(actorID string) ActorQuery {
	return ActorQuery{GetForID: &GetForIDQuery{ActorID: actorID}}
}

// QueryForKey builds a query selecting an actor by name and key.
func QueryForKey(name string, key ActorKey) ActorQuery {
	return ActorQuery{GetForKey: &GetForKeyQuery{Name: name, Key: key}}
}

// QueryGetOrCreate builds a query that creates the actor if it does not
// already exist.
func QueryGetOrCreate(name string, key ActorKey, input any, region string) ActorQuery {
	return ActorQuery{GetOrCreateForKey: &GetOrCreateForKeyQuery{Name: name, Key: key, Input: input, Region: region}}
}

// QueryCreate builds a query that unconditionally creates a new actor.
func QueryCreate(name string, key ActorKey, input any, region string) ActorQuery {
	return ActorQuery{Create: &CreateQuery{Name: name, Key: key, Input: input, Region: region}}
}

// variant reports which single field of the union is populated, and the
// count of populated fields (for validating the one-of invariant).
func (q ActorQuery) variant() (name string, count int) {
	if q.GetForID != nil {
		name, count = "getForId", count+1
	}
	if q.GetForKey != nil {
		name, count = "getForKey", count+1
	}
	if q.GetOrCreateForKey != nil {
		name, count = "getOrCreateForKey", count+1
	}
	if q.Create != nil {
		name, count = "create", count+1
	}
	return name, count
}

// --- Frames: to-server ---

// ToServerFrame is the envelope for every client-to-manager frame sent over
// a persistent connection. Its body is a tagged union with exactly one
// populated field.
type ToServerFrame struct {
	B ToServerBody `json:"b" cbor:"b"`
}

type ToServerBody struct {
	Init         *InitToServer            `json:"init,omitempty" cbor:"init,omitempty"`
	Action       *ActionRequestBody       `json:"action,omitempty" cbor:"action,omitempty"`
	Subscription *SubscriptionRequestBody `json:"subscription,omitempty" cbor:"subscription,omitempty"`
}

// InitToServer is the first frame sent on a bidirectional transport.
type InitToServer struct {
	Params any `json:"p,omitempty" cbor:"p,omitempty"`
}

// ActionRequestBody requests invocation of a named action, correlated by
// a monotonically increasing id.
type ActionRequestBody struct {
	ID     int64  `json:"i" cbor:"i"`
	Name   string `json:"n" cbor:"n"`
	Args   []any  `json:"a" cbor:"a"`
}

// SubscriptionRequestBody registers or deregisters interest in a named
// event.
type SubscriptionRequestBody struct {
	Event     string `json:"e" cbor:"e"`
	Subscribe bool   `json:"s" cbor:"s"`
}

func initToServerFrame(params any) *ToServerFrame {
	return &ToServerFrame{B: ToServerBody{Init: &InitToServer{Params: params}}}
}

func actionRequestFrame(id int64, name string, args []any) *ToServerFrame {
	return &ToServerFrame{B: ToServerBody{Action: &ActionRequestBody{ID: id, Name: name, Args: args}}}
}

func subscriptionRequestFrame(event string, subscribe bool) *ToServerFrame {
	return &ToServerFrame{B: ToServerBody{Subscription: &SubscriptionRequestBody{Event: event, Subscribe: subscribe}}}
}

// --- Frames: to-client ---

// ToClientFrame is the envelope for every manager-to-client frame.
type ToClientFrame struct {
	B ToClientBody `json:"b" cbor:"b"`
}

type ToClientBody struct {
	Init     *InitToClient      `json:"init,omitempty" cbor:"init,omitempty"`
	Response *ActionResponseBody `json:"response,omitempty" cbor:"response,omitempty"`
	Error    *ErrorBody         `json:"error,omitempty" cbor:"error,omitempty"`
	Event    *EventMessageBody  `json:"event,omitempty" cbor:"event,omitempty"`
}

// InitToClient completes the handshake, carrying the actor id and the
// connection identity used by the SSE transport's paired send channel.
type InitToClient struct {
	ActorID    string `json:"ai" cbor:"ai"`
	ConnID     string `json:"ci" cbor:"ci"`
	ConnToken  string `json:"ct" cbor:"ct"`
}

// ActionResponseBody carries the successful result of a correlated action.
type ActionResponseBody struct {
	ID     int64 `json:"i" cbor:"i"`
	Output any   `json:"o" cbor:"o"`
}

// ErrorBody carries either a correlated action failure (ActionID set) or
// an unsolicited connection-level error (ActionID unset).
type ErrorBody struct {
	Code     string         `json:"c" cbor:"c"`
	Message  string         `json:"m" cbor:"m"`
	Metadata map[string]any `json:"md,omitempty" cbor:"md,omitempty"`
	ActionID *int64         `json:"ai,omitempty" cbor:"ai,omitempty"`
}

// EventMessageBody is a server-originated named message delivered to every
// local subscriber of Name.
type EventMessageBody struct {
	Name string `json:"n" cbor:"n"`
	Args []any  `json:"a" cbor:"a"`
}

type keyElementTooLongError struct {
	index  int
	length int
}

func (e *keyElementTooLongError) Error() string {
	return fmt.Sprintf("actor key element %d is %d bytes, exceeds the %d byte limit", e.index, e.length, MaxKeyElementBytes)
}
