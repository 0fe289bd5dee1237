package screen

import (
	"errors"
	"testing"
)

// openFieldAt is a helper that positions the cursor on the attribute
// cell and opens a field whose content starts one position later.
func openFieldAt(t *testing.T, b *Buffer, row, col int, attr Attr, length int) *Field {
	t.Helper()
	if err := b.SetCursor(row, col); err != nil {
		t.Fatal(err)
	}
	f, err := b.OpenField(attr, length)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestOpenFieldPlacesAttributeAndContent(t *testing.T) {
	b := NewBuffer(24, 80)
	f := openFieldAt(t, b, 4, 8, AttrIntense, 6)
	if f.Row != 4 || f.Col != 9 || f.Length != 6 {
		t.Fatalf("field = %d,%d len %d, want 4,9 len 6", f.Row, f.Col, f.Length)
	}
	cell, err := b.CellAt(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Attr != AttrIntense {
		t.Errorf("attribute cell = %#02x, want intense", byte(cell.Attr))
	}
	if row, col := b.Cursor(); row != 4 || col != 9 {
		t.Errorf("cursor = %d,%d after open, want first content cell 4,9", row, col)
	}
	writeString(b, "ACC001")
	if got := b.FieldText(f); got != "ACC001" {
		t.Errorf("FieldText = %q, want ACC001", got)
	}
}

func TestOpenFieldRejectsBadExtents(t *testing.T) {
	b := NewBuffer(24, 80)
	if err := b.SetCursor(23, 75); err != nil {
		t.Fatal(err)
	}
	if _, err := b.OpenField(0, 10); err == nil {
		t.Error("field running past screen end was accepted")
	}
	if _, err := b.OpenField(0, 0); err == nil {
		t.Error("zero-length field was accepted")
	}
}

func TestOpenFieldReplacesOverlap(t *testing.T) {
	b := NewBuffer(24, 80)
	openFieldAt(t, b, 2, 5, 0, 10)
	// Re-opening at the same spot models a host rebuilding its format
	// table in place.
	openFieldAt(t, b, 2, 5, AttrNumeric, 4)
	if n := len(b.Fields()); n != 1 {
		t.Fatalf("fields = %d after overlapping open, want 1", n)
	}
	if !b.Fields()[0].Attr.Numeric() {
		t.Error("surviving field is not the replacement")
	}
}

func TestFieldAt(t *testing.T) {
	b := NewBuffer(24, 80)
	f := openFieldAt(t, b, 4, 9, 0, 6)
	if got := b.FieldAt(4, 10); got != f {
		t.Errorf("FieldAt(4,10) = %v, want the open field", got)
	}
	if got := b.FieldAt(4, 9+6); got != nil {
		t.Errorf("FieldAt past field end = %v, want nil", got)
	}
	if got := b.FieldAt(4, 9-1); got != nil {
		t.Errorf("FieldAt on attribute cell = %v, want nil", got)
	}
	if got := b.FieldAt(-1, 0); got != nil {
		t.Errorf("FieldAt(-1,0) = %v, want nil", got)
	}
}

// Non-display content must never leave the buffer through the visible
// accessors, only through FieldRunes which response building uses.
func TestNonDisplayFieldMasking(t *testing.T) {
	b := NewBuffer(24, 80)
	f := openFieldAt(t, b, 6, 20, AttrNonDisplay, 8)
	writeString(b, "SECRET")

	if got := b.FieldText(f); got != "********" {
		t.Errorf("FieldText = %q, want fixed-length mask", got)
	}
	row, _ := b.TextRegion(Region{Row: 6, Col: 21, Rows: 1, Cols: 8})
	if row != "        " {
		t.Errorf("screen render of non-display field = %q, want blanks", row)
	}
	raw := string(b.FieldRunes(f)[:6])
	if raw != "SECRET" {
		t.Errorf("FieldRunes = %q, want raw content", raw)
	}
}

func TestFieldTextTrimsTrailingAndRendersNulls(t *testing.T) {
	b := NewBuffer(24, 80)
	f := openFieldAt(t, b, 1, 0, 0, 10)
	writeString(b, "AB")
	b.SetCursor(1, 4)
	writeString(b, "CD")
	if got := b.FieldText(f); got != "AB CD" {
		t.Errorf("FieldText = %q, want %q", got, "AB CD")
	}
}

func TestTypeRuneSemantics(t *testing.T) {
	b := NewBuffer(24, 80)
	openFieldAt(t, b, 0, 10, AttrProtected, 5)
	input := openFieldAt(t, b, 2, 0, 0, 3)
	numeric := openFieldAt(t, b, 3, 0, AttrNumeric, 4)

	// Outside any field.
	b.SetCursor(10, 0)
	if err := b.TypeRune('A'); !errors.Is(err, ErrNoField) {
		t.Errorf("TypeRune outside fields = %v, want ErrNoField", err)
	}
	// Protected field.
	b.SetCursor(0, 11)
	if err := b.TypeRune('A'); !errors.Is(err, ErrProtectedField) {
		t.Errorf("TypeRune in protected field = %v, want ErrProtectedField", err)
	}
	// Numeric-only field.
	b.SetCursor(3, 1)
	if err := b.TypeRune('A'); !errors.Is(err, ErrNumericField) {
		t.Errorf("TypeRune letter in numeric field = %v, want ErrNumericField", err)
	}
	if numeric.Modified() {
		t.Error("rejected keystroke set the modified tag")
	}
	if err := b.TypeRune('7'); err != nil {
		t.Errorf("TypeRune digit in numeric field: %v", err)
	}
	// Plain input field sets MDT and advances.
	b.SetCursor(2, 1)
	if err := b.TypeRune('X'); err != nil {
		t.Fatal(err)
	}
	if !input.Modified() {
		t.Error("keystroke did not set the modified tag")
	}
	if row, col := b.Cursor(); row != 2 || col != 2 {
		t.Errorf("cursor = %d,%d, want 2,2", row, col)
	}
	// Typing through the last cell advances to the next input field.
	if err := b.TypeRune('Y'); err != nil {
		t.Fatal(err)
	}
	if err := b.TypeRune('Z'); err != nil {
		t.Fatal(err)
	}
	if row, col := b.Cursor(); row != 3 || col != 1 {
		t.Errorf("cursor = %d,%d after field end, want next input field 3,1", row, col)
	}
}

func TestFieldExit(t *testing.T) {
	b := NewBuffer(24, 80)
	first := openFieldAt(t, b, 2, 0, 0, 6)
	openFieldAt(t, b, 4, 0, 0, 3)

	b.SetCursor(2, 1)
	writeString(b, "JUNK")
	b.SetCursor(2, 3)
	if err := b.FieldExit(); err != nil {
		t.Fatal(err)
	}
	if got := b.FieldText(first); got != "JU" {
		t.Errorf("FieldText after exit = %q, want JU", got)
	}
	if !first.Modified() {
		t.Error("FieldExit did not set the modified tag")
	}
	if row, col := b.Cursor(); row != 4 || col != 1 {
		t.Errorf("cursor = %d,%d, want next input field 4,1", row, col)
	}

	b.SetCursor(10, 0)
	if err := b.FieldExit(); !errors.Is(err, ErrNoField) {
		t.Errorf("FieldExit outside fields = %v, want ErrNoField", err)
	}
}

func TestTabBacktabHome(t *testing.T) {
	b := NewBuffer(24, 80)
	openFieldAt(t, b, 1, 0, AttrProtected, 5) // skipped by navigation
	f1 := openFieldAt(t, b, 2, 0, 0, 3)
	f2 := openFieldAt(t, b, 5, 10, 0, 3)

	b.SetCursor(0, 0)
	b.Tab()
	if row, col := b.Cursor(); row != f1.Row || col != f1.Col {
		t.Errorf("Tab = %d,%d, want first input field", row, col)
	}
	b.Tab()
	if row, col := b.Cursor(); row != f2.Row || col != f2.Col {
		t.Errorf("Tab = %d,%d, want second input field", row, col)
	}
	b.Tab() // wraps
	if row, col := b.Cursor(); row != f1.Row || col != f1.Col {
		t.Errorf("Tab wrap = %d,%d, want first input field", row, col)
	}
	b.Backtab()
	if row, col := b.Cursor(); row != f2.Row || col != f2.Col {
		t.Errorf("Backtab wrap = %d,%d, want last input field", row, col)
	}
	b.SetCursor(23, 79)
	b.Home()
	if row, col := b.Cursor(); row != f1.Row || col != f1.Col {
		t.Errorf("Home = %d,%d, want first input field", row, col)
	}
}

func TestResetAndNullMDT(t *testing.T) {
	b := NewBuffer(24, 80)
	f1 := openFieldAt(t, b, 2, 0, 0, 4)
	writeString(b, "AAAA")
	prot := openFieldAt(t, b, 3, 0, AttrProtected|AttrModified, 4)

	b.SetCursor(2, 1)
	if err := b.TypeRune('Z'); err != nil {
		t.Fatal(err)
	}
	if got := len(b.ModifiedFields()); got != 1 {
		t.Fatalf("modified fields = %d, want 1", got)
	}

	b.NullModifiedFields()
	if got := b.FieldText(f1); got != "" {
		t.Errorf("FieldText after null = %q, want empty", got)
	}

	b.ResetMDT(false)
	if f1.Modified() {
		t.Error("input field still modified after reset")
	}
	if !prot.Modified() {
		t.Error("protected field lost its host-set tag on input-only reset")
	}
	b.ResetMDT(true)
	if prot.Modified() {
		t.Error("protected field still modified after full reset")
	}
}
