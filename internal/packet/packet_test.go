package packet

import (
	"errors"
	"testing"

	"github.com/netsim/routelab/internal/identity"
)

func TestEncodeDecode_Message(t *testing.T) {
	p := Packet{
		Proto:   ProtoFlooding,
		Type:    TypeMessage,
		From:    "A",
		To:      "C",
		TTL:     9,
		Hops:    1,
		Headers: []Header{{"ttl": "9"}},
		Payload: MessagePayload{Text: "hello"},
		Ts:      1234.5,
	}

	raw, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.From != p.From || got.To != p.To || got.TTL != p.TTL {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
	msg, ok := got.Payload.(MessagePayload)
	if !ok || msg.Text != "hello" {
		t.Fatalf("expected MessagePayload{hello}, got %#v", got.Payload)
	}
}

func TestDecode_TrailingNewlineTolerated(t *testing.T) {
	p := Packet{Proto: ProtoLSR, Type: TypeLSA, From: "A", Payload: LSAPayload{Neighbors: []identity.NodeID{"B", "C"}}}
	raw, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Encode already appends one newline; add a second to check that more
	// than one trailing newline is tolerated.
	withExtra := append(append([]byte{}, raw...), '\n')

	got, err := Decode(withExtra)
	if err != nil {
		t.Fatalf("Decode with extra trailing newline: %v", err)
	}
	lsa, ok := got.Payload.(LSAPayload)
	if !ok || len(lsa.Neighbors) != 2 {
		t.Fatalf("expected LSAPayload with 2 neighbors, got %#v", got.Payload)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("\n"),
		[]byte("{not json"),
		[]byte(`{"proto":"flooding","to":"B"}`),          // missing type/from
		[]byte(`{"proto":"flooding","type":"bogus","from":"A"}`), // unknown type
	}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Errorf("Decode(%q): expected error, got nil", c)
		} else if !errors.Is(err, ErrMalformedPacket) {
			// unknown-type case wraps a plain error from decodePayload via
			// UnmarshalJSON, which always wraps with ErrMalformedPacket.
			t.Errorf("Decode(%q): expected ErrMalformedPacket, got %v", c, err)
		}
	}
}

func TestDVTablePayload_RoundTrip(t *testing.T) {
	p := Packet{
		Proto: ProtoDVR,
		Type:  TypeDVTable,
		From:  "B",
		Payload: DVTablePayload{Costs: map[identity.NodeID]int{
			"A": 1,
			"C": 1,
		}},
	}
	raw, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dv, ok := got.Payload.(DVTablePayload)
	if !ok {
		t.Fatalf("expected DVTablePayload, got %#v", got.Payload)
	}
	if dv.Costs["A"] != 1 || dv.Costs["C"] != 1 {
		t.Fatalf("unexpected costs: %+v", dv.Costs)
	}
}

func TestClone_HeadersIndependent(t *testing.T) {
	p := Packet{Headers: []Header{{"ttl": "5"}}}
	clone := p.Clone()
	clone.Headers[0]["ttl"] = "4"
	if p.Headers[0]["ttl"] != "5" {
		t.Fatalf("expected original packet headers untouched, got %q", p.Headers[0]["ttl"])
	}
}

func TestHeaderTTL(t *testing.T) {
	headers := []Header{{"ttl": "7"}}
	ttl, ok := HeaderTTL(headers)
	if !ok || ttl != 7 {
		t.Fatalf("HeaderTTL = (%d, %v), want (7, true)", ttl, ok)
	}

	SetHeaderTTL(headers, 6)
	ttl, ok = HeaderTTL(headers)
	if !ok || ttl != 6 {
		t.Fatalf("after SetHeaderTTL, HeaderTTL = (%d, %v), want (6, true)", ttl, ok)
	}

	var noHeaders []Header
	if _, ok := HeaderTTL(noHeaders); ok {
		t.Fatal("expected HeaderTTL(nil) to report ok=false")
	}
}

// TestHeaderTTL_NotAtIndexZero guards against HeaderTTL/SetHeaderTTL
// assuming the ttl entry lives at headers[0]: spec.md §4.3 and
// flooding.py scan every header for a "ttl" key.
func TestHeaderTTL_NotAtIndexZero(t *testing.T) {
	headers := []Header{{"seq": "1"}, {"ttl": "9"}}
	ttl, ok := HeaderTTL(headers)
	if !ok || ttl != 9 {
		t.Fatalf("HeaderTTL = (%d, %v), want (9, true)", ttl, ok)
	}

	SetHeaderTTL(headers, 8)
	ttl, ok = HeaderTTL(headers)
	if !ok || ttl != 8 {
		t.Fatalf("after SetHeaderTTL, HeaderTTL = (%d, %v), want (8, true)", ttl, ok)
	}
	if _, ok := headers[0]["ttl"]; ok {
		t.Fatal("expected SetHeaderTTL to leave headers[0] untouched")
	}
}
