package go5250

import "github.com/fieldexit/go5250/internal/screen"

// OIAState is the keyboard-inhibit state shown in the operator
// information area. Automation only ever reads it; the host's data
// stream and the session's own typing errors drive the transitions.
type OIAState = screen.OIAState

// Keyboard states.
const (
	Unlocked                  = screen.Unlocked
	LockedSystemWait          = screen.LockedSystemWait
	LockedKeyboardError       = screen.LockedKeyboardError
	LockedCommunicationsError = screen.LockedCommunicationsError
)

// Region selects a screen rectangle in 1-based coordinates: Row and
// Col anchor the top-left corner, Rows and Cols give the extent. The
// zero value selects the whole screen.
type Region struct {
	Row, Col   int
	Rows, Cols int
}

func (r Region) internal() screen.Region {
	if r == (Region{}) {
		return screen.Region{}
	}
	return screen.Region{Row: r.Row - 1, Col: r.Col - 1, Rows: r.Rows, Cols: r.Cols}
}

// Field is a read-only view of one entry of the screen's format table,
// addressed in 1-based coordinates. Row and Col locate the first
// content position; the attribute byte sits just before it.
type Field struct {
	Row, Col   int
	Length     int
	Protected  bool
	Numeric    bool
	Intense    bool
	NonDisplay bool
	Modified   bool

	text string
}

// Text returns the field content with trailing blanks and nulls
// trimmed. Non-display fields yield a fixed mask, never the
// underlying value.
func (f Field) Text() string { return f.text }
