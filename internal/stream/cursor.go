// Package stream provides a bounds-checked cursor over one received
// data-stream record. Every read validates the position in both
// directions and fails without moving the cursor, so a malformed record
// can never walk a reader off the end of the buffer or desynchronize it.
package stream

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a read would touch a position outside
// the underlying buffer. The cursor position is unchanged after the
// failed read.
var ErrOutOfBounds = errors.New("read position out of bounds")

// Cursor walks a byte buffer one read at a time. The zero value is an
// empty cursor; use New for a cursor over real data.
type Cursor struct {
	buf []byte
	pos int
}

// New returns a cursor positioned at the start of buf.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// HasNext reports whether at least one unread byte remains.
func (c *Cursor) HasNext() bool {
	return c.pos < len(c.buf)
}

// Pos returns the current read position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Len returns the total buffer length.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Next consumes and returns the byte at the current position.
func (c *Cursor) Next() (byte, error) {
	if c.pos < 0 || c.pos >= len(c.buf) {
		return 0, fmt.Errorf("%w: next at %d of %d", ErrOutOfBounds, c.pos, len(c.buf))
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Peek returns the byte at the given offset from the current position
// without consuming anything. Negative offsets look backward; both
// directions are bounds-checked.
func (c *Cursor) Peek(off int) (byte, error) {
	i := c.pos + off
	if i < 0 || i >= len(c.buf) {
		return 0, fmt.Errorf("%w: peek %d from %d of %d", ErrOutOfBounds, off, c.pos, len(c.buf))
	}
	return c.buf[i], nil
}

// Take consumes n bytes and returns them as a subslice of the
// underlying buffer. On failure the position is unchanged.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("%w: take %d at %d of %d", ErrOutOfBounds, n, c.pos, len(c.buf))
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Uint16 consumes a 2-byte big-endian value.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// Seek moves the cursor to an absolute position. Seeking to Len is
// allowed and leaves the cursor exhausted.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return fmt.Errorf("%w: seek to %d of %d", ErrOutOfBounds, pos, len(c.buf))
	}
	c.pos = pos
	return nil
}
