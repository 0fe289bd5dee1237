package dispatch

import (
	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
)

// --- Inbound records (client to host) ---

// ReadPending reports whether an invited read is outstanding.
func (d *Dispatcher) ReadPending() bool { return d.readCmd != 0 }

// TakeAIDResponse builds the record payload answering the pending read
// with the given AID key and closes the read. Without a pending read
// the response carries modified fields, which is what a host expects
// from an unsolicited key.
func (d *Dispatcher) TakeAIDResponse(aid protocol.AID) []byte {
	cmd := d.readCmd
	if cmd == 0 {
		cmd = protocol.CmdReadMDTFields
	}
	d.readCmd = 0
	return d.fieldResponse(aid, cmd)
}

// aidSendsFields reports whether an AID key carries field data. Keys
// that only steer the host send the bare cursor/AID header.
func aidSendsFields(aid protocol.AID) bool {
	switch aid {
	case protocol.AIDClear, protocol.AIDHelp, protocol.AIDRollDown, protocol.AIDRollUp, protocol.AIDPrint:
		return false
	}
	return true
}

// fieldResponse serializes the cursor, the AID, and one SBA-led entry
// per reported field.
func (d *Dispatcher) fieldResponse(aid protocol.AID, cmd protocol.Command) []byte {
	row, col := d.buf.Cursor()
	out := []byte{byte(row + 1), byte(col + 1), byte(aid)}
	if !aidSendsFields(aid) {
		return out
	}
	var fields []*screen.Field
	if cmd == protocol.CmdReadInputFields {
		fields = d.buf.InputFields()
	} else {
		fields = d.buf.ModifiedFields()
	}
	for _, f := range fields {
		out = append(out, byte(protocol.OrderSBA), byte(f.Row+1), byte(f.Col+1))
		out = d.appendFieldContent(out, f)
	}
	return out
}

// appendFieldContent encodes a field's cells with trailing nulls and
// blanks dropped and embedded nulls sent as blanks.
func (d *Dispatcher) appendFieldContent(out []byte, f *screen.Field) []byte {
	runes := d.buf.FieldRunes(f)
	end := len(runes)
	for end > 0 && (runes[end-1] == 0 || runes[end-1] == ' ') {
		end--
	}
	for _, r := range runes[:end] {
		if r == 0 {
			r = ' '
		}
		out = append(out, d.cdc.Encode(r))
	}
	return out
}

// appendEncoded encodes a string through the session code page.
func (d *Dispatcher) appendEncoded(dst []byte, s string) []byte {
	for _, r := range s {
		dst = append(dst, d.cdc.Encode(r))
	}
	return dst
}

// screenImage serializes the display for a read-screen command: one
// byte per position, attribute bytes as themselves, nulls as 0x00 and
// characters through the session code page. No cursor/AID header leads
// the image.
func (d *Dispatcher) screenImage() []byte {
	rows, cols := d.buf.Rows(), d.buf.Cols()
	out := make([]byte, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell, _ := d.buf.CellAt(r, c)
			switch {
			case cell.Attr != 0:
				out = append(out, byte(cell.Attr))
			case cell.Ch == 0:
				out = append(out, 0x00)
			default:
				out = append(out, d.cdc.Encode(cell.Ch))
			}
		}
	}
	return out
}

// saveScreen serializes the display as a command stream that rebuilds
// it when a restore-screen command plays it back: a clear at the right
// geometry, then one write to display carrying the image, the format
// table with its MDT state, and finally the cursor.
func (d *Dispatcher) saveScreen() []byte {
	rows, cols := d.buf.Rows(), d.buf.Cols()
	var out []byte
	if rows == protocol.WideRows && cols == protocol.WideCols {
		out = append(out, protocol.ESC, byte(protocol.CmdClearUnitAlternate), 0x00)
	} else {
		out = append(out, protocol.ESC, byte(protocol.CmdClearUnit))
	}
	out = append(out, protocol.ESC, byte(protocol.CmdWriteToDisplay), 0x00, 0x00)
	out = append(out, byte(protocol.OrderSBA), 1, 1)

	attrAt := make(map[int]*screen.Field, len(d.buf.Fields()))
	for _, f := range d.buf.Fields() {
		attrAt[f.Row*cols+f.Col-1] = f
	}
	for i := 0; i < rows*cols; i++ {
		if f, ok := attrAt[i]; ok {
			attr := f.Attr &^ screen.AttrModified
			if f.Modified() {
				attr |= screen.AttrModified
			}
			out = append(out, byte(protocol.OrderSF), byte(attr), byte(f.Length>>8), byte(f.Length))
			continue
		}
		cell, _ := d.buf.CellAt(i/cols, i%cols)
		switch {
		case cell.Attr != 0:
			// Orphaned attribute with no field behind it; restores blank.
			out = append(out, 0x00)
		case cell.Ch == 0:
			out = append(out, 0x00)
		default:
			out = append(out, d.cdc.Encode(cell.Ch))
		}
	}
	row, col := d.buf.Cursor()
	out = append(out, byte(protocol.OrderMC), byte(row+1), byte(col+1))
	return out
}
