package screen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Typing errors. The session maps these to operator error states; they
// never terminate a connection.
var (
	ErrNoField        = errors.New("no input field at cursor")
	ErrProtectedField = errors.New("field is protected")
	ErrNumericField   = errors.New("field accepts numeric characters only")
)

// Attr is the field attribute bitset carried by the start-of-field
// order and stored on the attribute position that precedes field
// content.
type Attr byte

const (
	AttrModified   Attr = 0x01 // modified data tag preset by the host
	AttrNonDisplay Attr = 0x04 // content renders blank
	AttrIntense    Attr = 0x08
	AttrNumeric    Attr = 0x10 // digits and numeric punctuation only
	AttrProtected  Attr = 0x20 // rejects local typing
)

func (a Attr) Protected() bool  { return a&AttrProtected != 0 }
func (a Attr) Numeric() bool    { return a&AttrNumeric != 0 }
func (a Attr) Intense() bool    { return a&AttrIntense != 0 }
func (a Attr) NonDisplay() bool { return a&AttrNonDisplay != 0 }

func (a Attr) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	if a.Protected() {
		parts = append(parts, "protected")
	}
	if a.Numeric() {
		parts = append(parts, "numeric")
	}
	if a.Intense() {
		parts = append(parts, "intense")
	}
	if a.NonDisplay() {
		parts = append(parts, "non-display")
	}
	if a&AttrModified != 0 {
		parts = append(parts, "modified")
	}
	return strings.Join(parts, "|")
}

// Field is one entry of the format table. Row and Col address the
// first content cell; the attribute byte occupies the position just
// before it. Content runs Length cells from there, row-wrapping but
// never wrapping past the screen end.
type Field struct {
	Row, Col int
	Length   int
	Attr     Attr

	modified bool
}

// Input reports whether the field accepts local typing.
func (f *Field) Input() bool { return !f.Attr.Protected() }

// Modified reports the modified data tag.
func (f *Field) Modified() bool { return f.modified }

// SetModified sets or clears the modified data tag.
func (f *Field) SetModified(on bool) { f.modified = on }

// --- Format table ---

// OpenField places an attribute byte at the cursor and registers a
// field whose content begins at the following position. Existing fields
// overlapping the new extent are dropped. The cursor ends at the first
// content cell.
func (b *Buffer) OpenField(attr Attr, length int) (*Field, error) {
	if length <= 0 {
		return nil, fmt.Errorf("field length %d", length)
	}
	start := b.cursor + 1
	if start+length > len(b.cells) {
		row, col := b.Cursor()
		return nil, fmt.Errorf("field of %d at row %d col %d runs past screen end", length, row, col)
	}
	b.removeOverlapping(b.cursor, start+length)
	b.WriteAttr(attr)
	f := &Field{
		Row:      start / b.cols,
		Col:      start % b.cols,
		Length:   length,
		Attr:     attr,
		modified: attr&AttrModified != 0,
	}
	b.fields = append(b.fields, f)
	sort.Slice(b.fields, func(i, j int) bool {
		return b.fieldStart(b.fields[i]) < b.fieldStart(b.fields[j])
	})
	return f, nil
}

func (b *Buffer) fieldStart(f *Field) int {
	return b.index(f.Row, f.Col)
}

// removeOverlapping drops fields whose attribute or content range
// intersects [lo, hi). The attribute position is start-1.
func (b *Buffer) removeOverlapping(lo, hi int) {
	kept := b.fields[:0]
	for _, f := range b.fields {
		s := b.fieldStart(f) - 1
		e := b.fieldStart(f) + f.Length
		if e <= lo || s >= hi {
			kept = append(kept, f)
		}
	}
	b.fields = kept
}

// ClearFields drops the format table without touching cell content.
func (b *Buffer) ClearFields() {
	b.fields = nil
}

// Fields returns the format table ordered by screen position.
func (b *Buffer) Fields() []*Field {
	return b.fields
}

// fieldAtIndex returns the field containing the linear position, or
// nil. The attribute position belongs to no field.
func (b *Buffer) fieldAtIndex(i int) *Field {
	for _, f := range b.fields {
		s := b.fieldStart(f)
		if i >= s && i < s+f.Length {
			return f
		}
	}
	return nil
}

// FieldAt returns the field containing the position, or nil.
func (b *Buffer) FieldAt(row, col int) *Field {
	if !b.valid(row, col) {
		return nil
	}
	return b.fieldAtIndex(b.index(row, col))
}

// FieldText returns a field's visible content: trailing blanks and
// nulls trimmed, embedded nulls rendered as spaces. Non-display fields
// yield a fixed mask of the field length so the underlying value never
// leaves the buffer through this accessor.
func (b *Buffer) FieldText(f *Field) string {
	if f.Attr.NonDisplay() {
		return strings.Repeat("*", f.Length)
	}
	runes := b.FieldRunes(f)
	end := len(runes)
	for end > 0 && (runes[end-1] == 0 || runes[end-1] == ' ') {
		end--
	}
	out := make([]rune, end)
	for i, r := range runes[:end] {
		if r == 0 {
			r = ' '
		}
		out[i] = r
	}
	return string(out)
}

// FieldRunes returns the raw cell contents of a field, nulls included,
// with no masking applied. It exists for response building; everything
// user-facing goes through FieldText.
func (b *Buffer) FieldRunes(f *Field) []rune {
	s := b.fieldStart(f)
	out := make([]rune, f.Length)
	for i := 0; i < f.Length && s+i < len(b.cells); i++ {
		out[i] = b.cells[s+i].Ch
	}
	return out
}

// InputFields returns the non-protected fields in screen order.
func (b *Buffer) InputFields() []*Field {
	var out []*Field
	for _, f := range b.fields {
		if f.Input() {
			out = append(out, f)
		}
	}
	return out
}

// ModifiedFields returns the input fields with the modified data tag
// set, in screen order.
func (b *Buffer) ModifiedFields() []*Field {
	var out []*Field
	for _, f := range b.fields {
		if f.Input() && f.Modified() {
			out = append(out, f)
		}
	}
	return out
}

// ResetMDT clears the modified data tag on input fields, or on every
// field when all is set.
func (b *Buffer) ResetMDT(all bool) {
	for _, f := range b.fields {
		if all || f.Input() {
			f.SetModified(false)
		}
	}
}

// NullModifiedFields blanks the content of modified input fields.
func (b *Buffer) NullModifiedFields() {
	for _, f := range b.fields {
		if !f.Input() || !f.Modified() {
			continue
		}
		s := b.fieldStart(f)
		for i := s; i < s+f.Length && i < len(b.cells); i++ {
			b.cells[i].Ch = 0
		}
	}
}

// --- Local typing ---

// numericRune reports whether r is allowed in a numeric-only field.
func numericRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '+', '-', '.', ',', ' ':
		return true
	}
	return false
}

// TypeRune writes one character at the cursor as a local keystroke:
// the position must be inside an input field, numeric-only fields
// reject non-numeric characters, and a successful write sets the
// modified data tag and advances the cursor. Leaving the field's last
// cell moves the cursor to the next input field.
func (b *Buffer) TypeRune(r rune) error {
	f := b.fieldAtIndex(b.cursor)
	if f == nil {
		return ErrNoField
	}
	if !f.Input() {
		return ErrProtectedField
	}
	if f.Attr.Numeric() && !numericRune(r) {
		return fmt.Errorf("%w: %q", ErrNumericField, r)
	}
	b.cells[b.cursor] = Cell{Ch: r}
	f.SetModified(true)
	if b.cursor == b.fieldStart(f)+f.Length-1 {
		b.moveToNextInput(b.cursor)
	} else {
		b.advance()
	}
	return nil
}

// FieldExit nulls the rest of the current field from the cursor on,
// marks it modified, and moves to the next input field.
func (b *Buffer) FieldExit() error {
	f := b.fieldAtIndex(b.cursor)
	if f == nil {
		return ErrNoField
	}
	if !f.Input() {
		return ErrProtectedField
	}
	s := b.fieldStart(f)
	for i := b.cursor; i < s+f.Length && i < len(b.cells); i++ {
		b.cells[i].Ch = 0
	}
	f.SetModified(true)
	b.moveToNextInput(s + f.Length - 1)
	return nil
}

// Tab moves the cursor to the start of the next input field, wrapping
// past the screen end. Without input fields the cursor is left alone.
func (b *Buffer) Tab() {
	b.moveToNextInput(b.cursor)
}

// Backtab moves the cursor to the start of the previous input field.
func (b *Buffer) Backtab() {
	inputs := b.InputFields()
	if len(inputs) == 0 {
		return
	}
	for i := len(inputs) - 1; i >= 0; i-- {
		if b.fieldStart(inputs[i]) < b.cursor {
			b.cursor = b.fieldStart(inputs[i])
			return
		}
	}
	b.cursor = b.fieldStart(inputs[len(inputs)-1])
}

// Home moves the cursor to the first input field, or to the top-left
// corner when the screen has none.
func (b *Buffer) Home() {
	inputs := b.InputFields()
	if len(inputs) == 0 {
		b.cursor = 0
		return
	}
	b.cursor = b.fieldStart(inputs[0])
}

// moveToNextInput places the cursor at the first input field starting
// after the linear position, wrapping to the first input field.
func (b *Buffer) moveToNextInput(after int) {
	inputs := b.InputFields()
	if len(inputs) == 0 {
		b.advance()
		return
	}
	for _, f := range inputs {
		if b.fieldStart(f) > after {
			b.cursor = b.fieldStart(f)
			return
		}
	}
	b.cursor = b.fieldStart(inputs[0])
}
