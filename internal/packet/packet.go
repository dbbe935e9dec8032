// Package packet defines the wire packet format exchanged between routing
// lab nodes and the codec that (de)serializes it.
package packet

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/netsim/routelab/internal/identity"
)

// json is a drop-in encoding/json replacement, matching the pack's own
// precedent (rockstar-0000-aistore/cmn/cos uses jsoniter the same way).
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedPacket is returned when a packet fails to decode or is
// missing a required field.
var ErrMalformedPacket = errors.New("malformed packet")

// Proto is the informational protocol tag carried by every packet.
type Proto string

const (
	ProtoDijkstra Proto = "dijkstra"
	ProtoFlooding Proto = "flooding"
	ProtoLSR      Proto = "lsr"
	ProtoDVR      Proto = "dvr"
)

// Type identifies the shape of a packet's payload.
type Type string

const (
	TypeMessage Type = "message"
	TypeHello   Type = "hello"
	TypeEcho    Type = "echo"
	TypeInfo    Type = "info"
	TypeLSA     Type = "lsa"
	TypeDVTable Type = "dv_table"
)

// Header is one small key->string map of per-protocol metadata.
// Packets carry an ordered list of these (spec.md §3: "seq", "seen", "ttl").
type Header map[string]string

// Packet is the record exchanged between nodes. Payload is a tagged sum:
// its concrete type is determined by Type and is one of MessagePayload,
// HelloPayload, EchoPayload, InfoPayload, LSAPayload, DVTablePayload.
type Packet struct {
	Proto   Proto           `json:"proto"`
	Type    Type            `json:"type"`
	From    identity.NodeID `json:"from"`
	To      string          `json:"to"`
	TTL     int             `json:"ttl"`
	Hops    int             `json:"hops"`
	Headers []Header        `json:"headers"`
	Payload Payload         `json:"payload"`
	Ts      float64         `json:"ts"`
}

// Payload is implemented by every concrete per-type payload.
type Payload interface {
	payloadType() Type
}

// MessagePayload carries a user-level text message.
type MessagePayload struct {
	Text string
}

func (MessagePayload) payloadType() Type { return TypeMessage }

// HelloPayload is a liveness probe; Ts records when it was sent.
type HelloPayload struct {
	Ts float64 `json:"ts"`
}

func (HelloPayload) payloadType() Type { return TypeHello }

// EchoPayload is a HelloPayload's reply.
type EchoPayload struct {
	Ts float64 `json:"ts"`
}

func (EchoPayload) payloadType() Type { return TypeEcho }

// InfoPayload carries an arbitrary administrative object, e.g. a
// replacement topology pushed to a running flood-routed mesh
// (see SPEC_FULL.md §9).
type InfoPayload struct {
	Data map[string]any
}

func (InfoPayload) payloadType() Type { return TypeInfo }

// LSAPayload carries an origin's neighbor list for link-state flooding.
type LSAPayload struct {
	Neighbors []identity.NodeID
}

func (LSAPayload) payloadType() Type { return TypeLSA }

// DVTablePayload carries a distance-vector cost table: dest id -> cost.
type DVTablePayload struct {
	Costs map[identity.NodeID]int
}

func (DVTablePayload) payloadType() Type { return TypeDVTable }

// envelope is the wire shape of Packet: Payload flattened to raw JSON so
// it can be decoded per Type (the tagged-sum dispatch described in
// SPEC_FULL.md §4.1).
type envelope struct {
	Proto   Proto               `json:"proto"`
	Type    Type                `json:"type"`
	From    identity.NodeID     `json:"from"`
	To      string              `json:"to"`
	TTL     int                 `json:"ttl"`
	Hops    int                 `json:"hops"`
	Headers []Header            `json:"headers"`
	Payload jsoniter.RawMessage `json:"payload"`
	Ts      float64             `json:"ts"`
}

// MarshalJSON flattens Payload back into the envelope's payload field.
func (p Packet) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(payloadBody(p.Payload))
	if err != nil {
		return nil, fmt.Errorf("packet: marshal payload: %w", err)
	}
	env := envelope{
		Proto:   p.Proto,
		Type:    p.Type,
		From:    p.From,
		To:      p.To,
		TTL:     p.TTL,
		Hops:    p.Hops,
		Headers: p.Headers,
		Payload: raw,
		Ts:      p.Ts,
	}
	return json.Marshal(env)
}

// UnmarshalJSON dispatches on Type to decode Payload into the matching
// concrete type.
func (p *Packet) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if env.Type == "" || env.From == "" {
		return fmt.Errorf("%w: missing type or from", ErrMalformedPacket)
	}

	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}

	p.Proto = env.Proto
	p.Type = env.Type
	p.From = env.From
	p.To = env.To
	p.TTL = env.TTL
	p.Hops = env.Hops
	p.Headers = env.Headers
	p.Payload = payload
	p.Ts = env.Ts
	return nil
}

// payloadBody returns the bare value to marshal for a given Payload,
// matching the shapes spec.md §3 describes (string, id->cost map, etc).
func payloadBody(p Payload) any {
	switch v := p.(type) {
	case MessagePayload:
		return v.Text
	case HelloPayload:
		return v
	case EchoPayload:
		return v
	case InfoPayload:
		return v.Data
	case LSAPayload:
		return v.Neighbors
	case DVTablePayload:
		return v.Costs
	default:
		return nil
	}
}

func decodePayload(t Type, raw jsoniter.RawMessage) (Payload, error) {
	switch t {
	case TypeMessage:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		return MessagePayload{Text: text}, nil
	case TypeHello:
		var h HelloPayload
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, err
		}
		return h, nil
	case TypeEcho:
		var e EchoPayload
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return e, nil
	case TypeInfo:
		var data map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, err
			}
		}
		return InfoPayload{Data: data}, nil
	case TypeLSA:
		var neighbors []identity.NodeID
		if err := json.Unmarshal(raw, &neighbors); err != nil {
			return nil, err
		}
		return LSAPayload{Neighbors: neighbors}, nil
	case TypeDVTable:
		var costs map[identity.NodeID]int
		if err := json.Unmarshal(raw, &costs); err != nil {
			return nil, err
		}
		return DVTablePayload{Costs: costs}, nil
	default:
		return nil, fmt.Errorf("unknown packet type %q", t)
	}
}

// HeaderTTL scans every header for a decimal-string "ttl" entry and
// returns the first one found, mirroring original_source/flooding.py's
// `any(h.get('ttl') for h in headers)` (it does not assume the entry
// lives at headers[0]). See SPEC_FULL.md §3.
func HeaderTTL(headers []Header) (int, bool) {
	for _, h := range headers {
		v, ok := h["ttl"]
		if !ok {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// SetHeaderTTL rewrites whichever header entry already carries a "ttl"
// key in place, leaving headers without one untouched (the historical
// dual-write only refreshes a copy that already exists; see
// SPEC_FULL.md §3).
func SetHeaderTTL(headers []Header, ttl int) {
	for _, h := range headers {
		if _, ok := h["ttl"]; ok {
			h["ttl"] = fmt.Sprintf("%d", ttl)
			return
		}
	}
}

// CloneHeaders returns a deep copy of a header list, so forwarding a
// packet never mutates the sender's copy.
func CloneHeaders(headers []Header) []Header {
	if headers == nil {
		return nil
	}
	out := make([]Header, len(headers))
	for i, h := range headers {
		nh := make(Header, len(h))
		for k, v := range h {
			nh[k] = v
		}
		out[i] = nh
	}
	return out
}

// Clone returns a copy of the packet whose scalar fields and headers can
// be mutated independently (spec.md §3 Ownership: forwarding hands a
// packet off). The Payload value is not copied: payload maps and slices
// are shared with the original.
func (p Packet) Clone() Packet {
	clone := p
	clone.Headers = CloneHeaders(p.Headers)
	return clone
}
