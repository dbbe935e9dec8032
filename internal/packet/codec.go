package packet

import (
	"bytes"
	"errors"
	"fmt"
)

// Encode serializes a packet to a single line of JSON, newline-terminated,
// suitable for both pub/sub message bodies and line-delimited TCP framing.
func Encode(p Packet) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("packet: encode: %w", err)
	}
	return append(raw, '\n'), nil
}

// Decode parses a packet from raw bytes. Trailing newlines (as produced
// by Encode, or left over from bufio.Scanner line splitting) and any
// carriage returns before them are stripped before parsing. Every
// failure wraps ErrMalformedPacket.
func Decode(raw []byte) (Packet, error) {
	raw = bytes.TrimRight(raw, "\n")
	raw = bytes.TrimRight(raw, "\r")
	var p Packet
	if len(bytes.TrimSpace(raw)) == 0 {
		return Packet{}, fmt.Errorf("%w: empty input", ErrMalformedPacket)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		if errors.Is(err, ErrMalformedPacket) {
			return Packet{}, err
		}
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return p, nil
}
