// Package screen models the 5250 display: the cell grid, the field
// format table, GUI constructs placed by structured fields, and the
// operator information area. Nothing here is self-synchronizing; the
// session serializes all access.
package screen

import (
	"fmt"
	"strings"

	"github.com/fieldexit/go5250/internal/stream"
)

// Default display geometry used before negotiation settles on a size.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// Cell is one display position. Ch 0 is the null character and renders
// blank. A nonzero Attr marks the position as a field attribute byte;
// attribute positions render blank and hold no character.
type Cell struct {
	Ch   rune
	Attr Attr
}

// Region selects a rectangle of the display. The zero value selects the
// entire screen.
type Region struct {
	Row, Col   int
	Rows, Cols int
}

// Buffer is the in-memory display: cells in row-major order plus the
// format table and cursor.
type Buffer struct {
	rows, cols int
	cells      []Cell
	fields     []*Field
	constructs []Construct
	cursor     int
	pendingIC  int
	errorRow   int
	savedError []Cell
	freeCursor bool
}

// NewBuffer returns a cleared buffer of the given size. Non-positive
// dimensions fall back to the 24x80 default.
func NewBuffer(rows, cols int) *Buffer {
	if rows <= 0 || cols <= 0 {
		rows, cols = DefaultRows, DefaultCols
	}
	b := &Buffer{}
	b.init(rows, cols)
	return b
}

func (b *Buffer) init(rows, cols int) {
	b.rows, b.cols = rows, cols
	b.cells = make([]Cell, rows*cols)
	b.fields = nil
	b.constructs = nil
	b.cursor = 0
	b.pendingIC = -1
	b.errorRow = rows - 1
	b.savedError = nil
	b.freeCursor = false
}

// Rows returns the display height.
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the display width.
func (b *Buffer) Cols() int { return b.cols }

func (b *Buffer) valid(row, col int) bool {
	return row >= 0 && row < b.rows && col >= 0 && col < b.cols
}

func (b *Buffer) index(row, col int) int {
	return row*b.cols + col
}

func (b *Buffer) boundsErr(row, col int) error {
	return fmt.Errorf("%w: row %d col %d outside %dx%d", stream.ErrOutOfBounds, row, col, b.rows, b.cols)
}

// CellAt returns the cell at a position, failing on out-of-range
// coordinates in either direction.
func (b *Buffer) CellAt(row, col int) (Cell, error) {
	if !b.valid(row, col) {
		return Cell{}, b.boundsErr(row, col)
	}
	return b.cells[b.index(row, col)], nil
}

// SetCursor moves the cursor, rejecting positions outside the display.
func (b *Buffer) SetCursor(row, col int) error {
	if !b.valid(row, col) {
		return b.boundsErr(row, col)
	}
	b.cursor = b.index(row, col)
	return nil
}

// Cursor returns the cursor position.
func (b *Buffer) Cursor() (row, col int) {
	return b.cursor / b.cols, b.cursor % b.cols
}

// advance moves the cursor one position, wrapping from the last cell to
// the first.
func (b *Buffer) advance() {
	b.cursor++
	if b.cursor >= len(b.cells) {
		b.cursor = 0
	}
}

// WriteRune places display data at the cursor and advances. Writing
// over an attribute position demotes it back to an ordinary cell.
func (b *Buffer) WriteRune(r rune) {
	b.cells[b.cursor] = Cell{Ch: r}
	b.advance()
}

// WriteAttr places a field attribute byte at the cursor and advances.
func (b *Buffer) WriteAttr(a Attr) {
	b.cells[b.cursor] = Cell{Attr: a}
	b.advance()
}

// RepeatTo fills with r from the cursor through the target position
// inclusive, leaving the cursor after the target. A target before the
// cursor would wrap around the screen end and is rejected.
func (b *Buffer) RepeatTo(row, col int, r rune) error {
	if !b.valid(row, col) {
		return b.boundsErr(row, col)
	}
	target := b.index(row, col)
	if target < b.cursor {
		return fmt.Errorf("%w: repeat target %d,%d behind cursor", stream.ErrOutOfBounds, row, col)
	}
	for i := b.cursor; i <= target; i++ {
		b.cells[i] = Cell{Ch: r}
	}
	b.cursor = target
	b.advance()
	return nil
}

// EraseTo nulls cells from the cursor through the target position
// inclusive, with the same no-wrap rule as RepeatTo.
func (b *Buffer) EraseTo(row, col int) error {
	return b.RepeatTo(row, col, 0)
}

// Clear blanks the display, discards the format table and constructs,
// and homes the cursor. The geometry is kept.
func (b *Buffer) Clear() {
	b.init(b.rows, b.cols)
}

// Resize reallocates the display at a new geometry and clears it. Only
// negotiation and explicit host commands change the screen size.
func (b *Buffer) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	b.init(rows, cols)
}

// --- Rendering ---

// renderAt returns the visible rune for one position: attribute bytes
// and nulls render blank, and cells inside a non-display field render
// blank regardless of content.
func (b *Buffer) renderAt(i int) rune {
	c := b.cells[i]
	if c.Attr != 0 || c.Ch == 0 {
		return ' '
	}
	if f := b.fieldAtIndex(i); f != nil && f.Attr.NonDisplay() {
		return ' '
	}
	return c.Ch
}

// TextRegion renders a rectangle as visible text, rows joined with
// newlines. The zero Region renders the whole screen.
func (b *Buffer) TextRegion(reg Region) (string, error) {
	if reg == (Region{}) {
		reg = Region{Rows: b.rows, Cols: b.cols}
	}
	if reg.Rows <= 0 || reg.Cols <= 0 ||
		!b.valid(reg.Row, reg.Col) ||
		!b.valid(reg.Row+reg.Rows-1, reg.Col+reg.Cols-1) {
		return "", fmt.Errorf("%w: region %+v outside %dx%d", stream.ErrOutOfBounds, reg, b.rows, b.cols)
	}
	var sb strings.Builder
	sb.Grow(reg.Rows * (reg.Cols + 1))
	for r := reg.Row; r < reg.Row+reg.Rows; r++ {
		if r > reg.Row {
			sb.WriteByte('\n')
		}
		for c := reg.Col; c < reg.Col+reg.Cols; c++ {
			sb.WriteRune(b.renderAt(b.index(r, c)))
		}
	}
	return sb.String(), nil
}

// Snapshot renders the whole screen; it never fails and is safe for
// use inside error values.
func (b *Buffer) Snapshot() string {
	s, _ := b.TextRegion(Region{})
	return s
}

// --- Error row ---

// SetErrorRow records the row used for host error messages.
func (b *Buffer) SetErrorRow(row int) {
	if row >= 0 && row < b.rows {
		b.errorRow = row
	}
}

// ErrorRow returns the current error message row.
func (b *Buffer) ErrorRow() int { return b.errorRow }

// ShowError writes an operator error message on the error row, saving
// the row content so ClearError can put it back. A second message
// before ClearError keeps the original saved content.
func (b *Buffer) ShowError(text string) {
	start := b.index(b.errorRow, 0)
	if b.savedError == nil {
		b.savedError = make([]Cell, b.cols)
		copy(b.savedError, b.cells[start:start+b.cols])
	}
	msg := []rune(text)
	for i := 0; i < b.cols; i++ {
		var r rune
		if i < len(msg) {
			r = msg[i]
		}
		b.cells[start+i] = Cell{Ch: r}
	}
}

// ClearError restores the error row to its pre-message content.
func (b *Buffer) ClearError() {
	if b.savedError == nil {
		return
	}
	start := b.index(b.errorRow, 0)
	copy(b.cells[start:start+b.cols], b.savedError)
	b.savedError = nil
}

// --- Insert cursor ---

// SetInsertCursor records where the cursor should land when the
// keyboard next unlocks.
func (b *Buffer) SetInsertCursor(row, col int) error {
	if !b.valid(row, col) {
		return b.boundsErr(row, col)
	}
	b.pendingIC = b.index(row, col)
	return nil
}

// CommitInsertCursor applies a pending insert-cursor position, if any.
func (b *Buffer) CommitInsertCursor() {
	if b.pendingIC >= 0 && b.pendingIC < len(b.cells) {
		b.cursor = b.pendingIC
	}
	b.pendingIC = -1
}

// --- Roll ---

// Roll shifts the rows of the inclusive window [top, bottom] by lines,
// blanking the vacated rows. Fields are left alone; hosts rewrite the
// format table after rolling.
func (b *Buffer) Roll(top, bottom, lines int, down bool) error {
	if top < 0 || bottom >= b.rows || top > bottom || lines <= 0 {
		return fmt.Errorf("%w: roll window %d..%d by %d", stream.ErrOutOfBounds, top, bottom, lines)
	}
	height := bottom - top + 1
	if lines > height {
		lines = height
	}
	lo := b.index(top, 0)
	hi := b.index(bottom, b.cols-1) + 1
	window := b.cells[lo:hi]
	shift := lines * b.cols
	if down {
		copy(window[shift:], window[:len(window)-shift])
		clearCells(window[:shift])
	} else {
		copy(window, window[shift:])
		clearCells(window[len(window)-shift:])
	}
	return nil
}

func clearCells(cells []Cell) {
	for i := range cells {
		cells[i] = Cell{}
	}
}

// --- GUI constructs ---

// ConstructKind discriminates the GUI constructs a host can place.
type ConstructKind int

const (
	KindWindow ConstructKind = iota + 1
	KindScrollbar
	KindSelection
)

func (k ConstructKind) String() string {
	switch k {
	case KindWindow:
		return "window"
	case KindScrollbar:
		return "scrollbar"
	case KindSelection:
		return "selection field"
	default:
		return "unknown"
	}
}

// Construct is a GUI element anchored at a display position.
type Construct struct {
	Kind       ConstructKind
	Row, Col   int
	Rows, Cols int
}

// AddConstruct records a GUI construct.
func (b *Buffer) AddConstruct(c Construct) {
	b.constructs = append(b.constructs, c)
}

// Constructs returns the recorded GUI constructs in placement order.
func (b *Buffer) Constructs() []Construct {
	return b.constructs
}

// RemoveWindowAt removes the most recent window anchored at the given
// position and blanks its area. When no window matches, the most
// recent window of any position is removed. It reports whether a
// window was removed.
func (b *Buffer) RemoveWindowAt(row, col int) bool {
	match := -1
	newest := -1
	for i, c := range b.constructs {
		if c.Kind != KindWindow {
			continue
		}
		newest = i
		if c.Row == row && c.Col == col {
			match = i
		}
	}
	if match < 0 {
		match = newest
	}
	if match < 0 {
		return false
	}
	w := b.constructs[match]
	b.constructs = append(b.constructs[:match], b.constructs[match+1:]...)
	b.eraseRect(w.Row, w.Col, w.Rows, w.Cols)
	return true
}

// ClearConstructs drops every recorded GUI construct without touching
// cell content.
func (b *Buffer) ClearConstructs() {
	b.constructs = nil
}

// eraseRect blanks a clamped rectangle and discards fields fully
// contained in it.
func (b *Buffer) eraseRect(row, col, rows, cols int) {
	for r := row; r < row+rows && r < b.rows; r++ {
		if r < 0 {
			continue
		}
		for c := col; c < col+cols && c < b.cols; c++ {
			if c < 0 {
				continue
			}
			b.cells[b.index(r, c)] = Cell{}
		}
	}
	kept := b.fields[:0]
	for _, f := range b.fields {
		if !b.fieldInRect(f, row, col, rows, cols) {
			kept = append(kept, f)
		}
	}
	b.fields = kept
}

// fieldInRect reports whether every position of a field, which may span
// rows, lies inside the rectangle.
func (b *Buffer) fieldInRect(f *Field, row, col, rows, cols int) bool {
	start := b.index(f.Row, f.Col)
	for i := start; i < start+f.Length && i < len(b.cells); i++ {
		r, c := i/b.cols, i%b.cols
		if r < row || r >= row+rows || c < col || c >= col+cols {
			return false
		}
	}
	return true
}

// SetFreeCursor records whether the host granted unrestricted cursor
// movement.
func (b *Buffer) SetFreeCursor(on bool) { b.freeCursor = on }

// FreeCursor reports whether unrestricted cursor movement is active.
func (b *Buffer) FreeCursor() bool { return b.freeCursor }
