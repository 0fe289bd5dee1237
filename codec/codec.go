// Package codec translates between EBCDIC code units and Unicode runes.
//
// A Codec is a stateless byte/rune mapping for one code page. Stateful
// concerns, double-byte shift sequences in particular, live in Decoder,
// which each session owns privately; codecs themselves are safe to use
// from any goroutine.
//
// Unmappable input is never dropped or silently blanked: lenient decode
// yields U+FFFD, lenient encode yields the EBCDIC substitute byte, and
// the strict helpers report ErrUnmappable instead.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Substitute is the EBCDIC byte emitted for runes the target code page
// cannot represent (a question mark in the common EBCDIC pages).
const Substitute byte = 0x6F

// Double-byte shift controls. ShiftIn switches the data stream to
// two-byte code units until ShiftOut switches it back.
const (
	ShiftIn  byte = 0x0E
	ShiftOut byte = 0x0F
)

// ErrUnmappable is returned by the strict conversion helpers when a
// byte or rune has no mapping in the code page.
var ErrUnmappable = errors.New("unmappable character")

// Codec converts single code units for one code page.
type Codec interface {
	// Decode maps one EBCDIC byte to a rune, yielding U+FFFD when the
	// byte has no mapping.
	Decode(b byte) rune
	// Encode maps a rune to its EBCDIC byte, yielding Substitute when
	// the rune has no mapping.
	Encode(r rune) byte
	// Name returns the canonical code page name, e.g. "37".
	Name() string
}

// Strict is implemented by codecs that can distinguish a real mapping
// from a replacement.
type Strict interface {
	Codec
	DecodeStrict(b byte) (rune, error)
	EncodeStrict(r rune) (byte, error)
}

// DoubleByte is implemented by codecs whose code page has a
// shift-controlled two-byte range.
type DoubleByte interface {
	Codec
	// DecodePair maps one two-byte code unit, yielding U+FFFD when the
	// pair has no mapping.
	DecodePair(hi, lo byte) rune
}

// DecodeStrict decodes through c, reporting ErrUnmappable instead of
// substituting U+FFFD.
func DecodeStrict(c Codec, b byte) (rune, error) {
	if s, ok := c.(Strict); ok {
		return s.DecodeStrict(b)
	}
	r := c.Decode(b)
	if r == utf8.RuneError {
		return 0, fmt.Errorf("%w: byte %#02x in %s", ErrUnmappable, b, c.Name())
	}
	return r, nil
}

// EncodeStrict encodes through c, reporting ErrUnmappable instead of
// substituting.
func EncodeStrict(c Codec, r rune) (byte, error) {
	if s, ok := c.(Strict); ok {
		return s.EncodeStrict(r)
	}
	b := c.Encode(r)
	if b == Substitute && r != '?' {
		return 0, fmt.Errorf("%w: %q in %s", ErrUnmappable, r, c.Name())
	}
	return b, nil
}

// Decoder feeds a byte stream through a codec one unit at a time,
// tracking the shift state for double-byte code pages. The state is
// plain fields on purpose: a Decoder belongs to exactly one reader and
// must not be shared between goroutines.
type Decoder struct {
	codec   Codec
	double  DoubleByte // nil for single-byte code pages
	shifted bool
	hi      byte
	pending bool
}

// NewDecoder returns a decoder in single-byte state.
func NewDecoder(c Codec) *Decoder {
	d := &Decoder{codec: c}
	d.double, _ = c.(DoubleByte)
	return d
}

// Next consumes one byte. ok reports whether r is a completed rune;
// shift controls and the first byte of a double-byte pair complete
// nothing.
func (d *Decoder) Next(b byte) (r rune, ok bool) {
	if d.double != nil {
		switch b {
		case ShiftIn:
			d.shifted, d.pending = true, false
			return 0, false
		case ShiftOut:
			d.shifted, d.pending = false, false
			return 0, false
		}
		if d.shifted {
			if !d.pending {
				d.hi, d.pending = b, true
				return 0, false
			}
			d.pending = false
			return d.double.DecodePair(d.hi, b), true
		}
	}
	return d.codec.Decode(b), true
}

// Shifted reports whether the decoder is inside a double-byte run.
func (d *Decoder) Shifted() bool {
	return d.shifted
}

// Reset returns the decoder to single-byte state. Callers reset at
// record boundaries so a truncated double-byte run cannot bleed into
// the next record.
func (d *Decoder) Reset() {
	d.shifted, d.pending = false, false
}
