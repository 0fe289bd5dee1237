package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrMalformedOrder reports a structural defect in the inbound data
	// stream: a bad record envelope, an unknown or truncated order, or
	// a structured field that contradicts its own length.
	ErrMalformedOrder = errors.New("malformed data stream")

	// ErrRecordTooLarge reports a record that cannot be framed within
	// the 16-bit length field.
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
)

// Record is one logical record with its envelope decoded. Data aliases
// the parsed buffer; callers that keep a Record must not reuse the
// buffer it was parsed from.
type Record struct {
	Flags  uint16
	Opcode Opcode
	Data   []byte
}

// Flag reports whether all bits of f are set in the record flags.
func (r *Record) Flag(f uint16) bool {
	return r.Flags&f == f
}

// ParseRecord validates the envelope of a de-framed logical record. raw
// is the record as accumulated between telnet end-of-record marks, with
// IAC doubling already undone.
func ParseRecord(raw []byte) (*Record, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: record of %d bytes, header needs %d", ErrMalformedOrder, len(raw), HeaderSize)
	}
	size := int(binary.BigEndian.Uint16(raw[0:2]))
	if size != len(raw) {
		return nil, fmt.Errorf("%w: declared length %d, received %d", ErrMalformedOrder, size, len(raw))
	}
	if magic := binary.BigEndian.Uint16(raw[2:4]); magic != GDSMagic {
		return nil, fmt.Errorf("%w: record type %#04x, want %#04x", ErrMalformedOrder, magic, GDSMagic)
	}
	varHdr := int(raw[6])
	if varHdr < MinVarHeader {
		return nil, fmt.Errorf("%w: variable header length %d below minimum %d", ErrMalformedOrder, varHdr, MinVarHeader)
	}
	if 6+varHdr > len(raw) {
		return nil, fmt.Errorf("%w: variable header of %d runs past record end", ErrMalformedOrder, varHdr)
	}
	return &Record{
		Flags:  binary.BigEndian.Uint16(raw[7:9]),
		Opcode: Opcode(raw[9]),
		Data:   raw[6+varHdr:],
	}, nil
}

// AppendGDS appends one framed client record to dst and returns the
// extended slice. The length field covers the envelope and payload;
// IAC doubling and the trailing end-of-record mark are the transport's
// concern.
func AppendGDS(dst []byte, flags uint16, op Opcode, payload []byte) ([]byte, error) {
	total := HeaderSize + len(payload)
	if total > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, total)
	}
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(total))
	binary.BigEndian.PutUint16(hdr[2:4], GDSMagic)
	hdr[6] = MinVarHeader
	binary.BigEndian.PutUint16(hdr[7:9], flags)
	hdr[9] = byte(op)
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

// BuildRecord frames one client record into a fresh slice.
func BuildRecord(flags uint16, op Opcode, payload []byte) ([]byte, error) {
	return AppendGDS(make([]byte, 0, HeaderSize+len(payload)), flags, op, payload)
}

// EscapeIAC doubles 0xFF bytes so record data survives the binary
// telnet stream. Returns p unchanged when nothing needs escaping.
func EscapeIAC(p []byte) []byte {
	n := 0
	for _, b := range p {
		if b == IAC {
			n++
		}
	}
	if n == 0 {
		return p
	}
	out := make([]byte, 0, len(p)+n)
	for _, b := range p {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}
