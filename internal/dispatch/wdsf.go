package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
	"github.com/fieldexit/go5250/internal/stream"
)

// subRecord pulls one structured-field header and body off the stream.
// The declared length covers the length bytes themselves; a length too
// small for the class/type header or running past the record end
// rejects the sub-record with the cursor back at its start.
func subRecord(cur *stream.Cursor) (class, sfType byte, body []byte, err error) {
	start := cur.Pos()
	length16, err := cur.Uint16()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: structured field truncated", protocol.ErrMalformedOrder)
	}
	length := int(length16)
	if length < 4 || start+length > cur.Len() {
		cur.Seek(start)
		return 0, 0, nil, fmt.Errorf("%w: structured field length %d at offset %d of %d",
			protocol.ErrMalformedOrder, length, start, cur.Len())
	}
	class, _ = cur.Next()
	sfType, _ = cur.Next()
	body, _ = cur.Take(length - 4)
	return class, sfType, body, nil
}

// structuredField handles the WDSF order: GUI constructs the host draws
// over the display. Unknown types are skipped by their declared length,
// never by guessing at their layout.
func (d *Dispatcher) structuredField(cur *stream.Cursor) error {
	start := cur.Pos()
	class, sfType, body, err := subRecord(cur)
	if err != nil {
		return err
	}
	if class != protocol.SFClassGUI {
		d.log.Debug("skipping structured field", "class", class, "type", sfType)
		return nil
	}
	if err := d.guiField(sfType, body); err != nil {
		cur.Seek(start)
		return err
	}
	return nil
}

func (d *Dispatcher) guiField(sfType byte, body []byte) error {
	switch sfType {
	case protocol.SFCreateWindow:
		return d.createWindow(body)
	case protocol.SFDefineScrollbar:
		return d.defineScrollbar(body)
	case protocol.SFDefineSelection:
		return d.defineSelection(body)
	case protocol.SFUnrestrictedCursor:
		d.buf.SetFreeCursor(true)
	case protocol.SFRemoveWindow:
		row, col := d.buf.Cursor()
		d.buf.RemoveWindowAt(row, col)
	case protocol.SFRemoveAllGUI:
		d.buf.ClearConstructs()
		d.buf.SetFreeCursor(false)
	default:
		d.log.Debug("skipping gui structured field", "type", sfType)
	}
	return nil
}

// createWindow anchors a window at the cursor. The body leads with two
// flag bytes and two reserved bytes, then the usable rows and columns.
func (d *Dispatcher) createWindow(body []byte) error {
	if len(body) < 6 {
		return fmt.Errorf("%w: create window body of %d bytes", protocol.ErrMalformedOrder, len(body))
	}
	rows, cols := int(body[4]), int(body[5])
	row, col := d.buf.Cursor()
	if rows < 1 || cols < 1 || row+rows > d.buf.Rows() || col+cols > d.buf.Cols() {
		return fmt.Errorf("%w: window %dx%d at row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, rows, cols, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	d.buf.AddConstruct(screen.Construct{
		Kind: screen.KindWindow,
		Row:  row, Col: col,
		Rows: rows, Cols: cols,
	})
	return nil
}

// defineScrollbar anchors a scrollbar at the cursor. The body leads
// with a flag byte (low bit selects horizontal) and a reserved byte,
// then the 2-byte extent in display cells.
func (d *Dispatcher) defineScrollbar(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("%w: define scrollbar body of %d bytes", protocol.ErrMalformedOrder, len(body))
	}
	size := int(body[2])<<8 | int(body[3])
	rows, cols := size, 1
	if body[0]&0x01 != 0 {
		rows, cols = 1, size
	}
	row, col := d.buf.Cursor()
	if size < 1 || row+rows > d.buf.Rows() || col+cols > d.buf.Cols() {
		return fmt.Errorf("%w: scrollbar of %d at row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, size, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	d.buf.AddConstruct(screen.Construct{
		Kind: screen.KindScrollbar,
		Row:  row, Col: col,
		Rows: rows, Cols: cols,
	})
	return nil
}

// defineSelection anchors a selection field at the cursor with the same
// bounds header as a window; the choices themselves arrive as ordinary
// display data.
func (d *Dispatcher) defineSelection(body []byte) error {
	if len(body) < 6 {
		return fmt.Errorf("%w: define selection body of %d bytes", protocol.ErrMalformedOrder, len(body))
	}
	rows, cols := int(body[4]), int(body[5])
	row, col := d.buf.Cursor()
	if rows < 1 || cols < 1 || row+rows > d.buf.Rows() || col+cols > d.buf.Cols() {
		return fmt.Errorf("%w: selection field %dx%d at row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, rows, cols, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	d.buf.AddConstruct(screen.Construct{
		Kind: screen.KindSelection,
		Row:  row, Col: col,
		Rows: rows, Cols: cols,
	})
	return nil
}

// --- Write structured field ---

// writeStructured handles the write-structured-field command. The only
// structured field a display answers is the 5250 query; everything else
// is skipped by its declared length.
func (d *Dispatcher) writeStructured(cur *stream.Cursor, res *Result) error {
	class, sfType, _, err := subRecord(cur)
	if err != nil {
		return err
	}
	if class == protocol.SFClassGUI && sfType == protocol.SFQuery {
		res.Replies = append(res.Replies, Reply{Data: d.queryReply()})
		return nil
	}
	d.log.Debug("ignoring structured field", "class", class, "type", sfType)
	return nil
}

// queryReply answers the 5250 query with the device description hosts
// use to pick a data stream level: a 5251-class display at the current
// geometry.
func (d *Dispatcher) queryReply() []byte {
	out := make([]byte, 0, 61)
	// Null cursor address, then the query-reply AID.
	out = append(out, 0x00, 0x00, protocol.QueryAID)

	sf := make([]byte, 0, 58)
	sf = append(sf, 0x00, 0x00) // length, patched below
	sf = append(sf, protocol.SFClassGUI, protocol.SFQuery, 0x80)
	sf = append(sf, 0x06, 0x00)          // workstation control unit class
	sf = append(sf, 0x01, 0x01, 0x00)    // code level
	sf = append(sf, make([]byte, 16)...) // reserved
	sf = append(sf, 0x01)                // display emulation
	sf = d.appendEncoded(sf, "5251")     // machine type
	sf = d.appendEncoded(sf, "011")      // model
	sf = append(sf, 0x02)                // standard keyboard
	sf = append(sf, 0x00, 0x00)             // extended keyboard id, reserved
	sf = append(sf, 0x00, 0x00, 0x00, 0x00) // serial number
	sf = append(sf, 0x01, 0x00)             // maximum input fields (256)
	sf = append(sf, 0x00, 0x00, 0x00) // customization, reserved
	caps := byte(0x10)                // writes to row 1 column 1 allowed
	if d.buf.Rows() == protocol.WideRows && d.buf.Cols() == protocol.WideCols {
		caps |= 0x01 // alternate 27x132 geometry
	}
	sf = append(sf, caps)
	sf = append(sf, make([]byte, 11)...)
	binary.BigEndian.PutUint16(sf[0:2], uint16(len(sf)))
	return append(out, sf...)
}
