// Package dispatch interprets the host data stream: display commands,
// write-to-display orders and structured fields. A Dispatcher mutates
// one session's screen buffer and OIA and builds the records the host
// expects back. It runs on the session's receive goroutine and is not
// safe for concurrent use.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/fieldexit/go5250/codec"
	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
	"github.com/fieldexit/go5250/internal/stream"
)

// Config carries the collaborators a Dispatcher works against. Screen,
// OIA and Codec are required.
type Config struct {
	Screen *screen.Buffer
	OIA    *screen.OIA
	Codec  codec.Codec
	// Strict makes unmappable code units fail the record instead of
	// writing U+FFFD.
	Strict      bool
	Logger      *slog.Logger
	Diagnostics Sink
}

// Dispatcher applies inbound records to the display state.
type Dispatcher struct {
	buf    *screen.Buffer
	oia    *screen.OIA
	cdc    codec.Codec
	dec    *codec.Decoder
	dbcs   bool
	strict bool
	log    *slog.Logger
	diag   Sink

	// readCmd is the outstanding invited read, zero when none.
	readCmd protocol.Command

	// cmd and order hold the position in the stream for diagnostics.
	cmd   protocol.Command
	order protocol.Order
}

// New returns a dispatcher over the given display state.
func New(cfg Config) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		buf:    cfg.Screen,
		oia:    cfg.OIA,
		cdc:    cfg.Codec,
		dec:    codec.NewDecoder(cfg.Codec),
		strict: cfg.Strict,
		log:    log.With("component", "dispatch"),
		diag:   cfg.Diagnostics,
	}
	_, d.dbcs = cfg.Codec.(codec.DoubleByte)
	return d
}

// Reply is one record the host expects back, ready for framing.
type Reply struct {
	Opcode protocol.Opcode
	Data   []byte
}

// Result reports what a record asked for beyond mutating the screen.
type Result struct {
	// Replies must be transmitted in order without operator action:
	// immediate reads, query replies, saved screens.
	Replies []Reply
	// ReadPending reports that the record left an invited read open,
	// answered by the next AID key.
	ReadPending bool
}

// Dispatch interprets one inbound record. Errors reject the record and
// leave the screen in whatever state the stream reached; the connection
// itself stays usable.
func (d *Dispatcher) Dispatch(rec *protocol.Record) (*Result, error) {
	res := &Result{}
	d.cmd, d.order = 0, 0

	if rec.Flag(protocol.FlagERR) {
		detail := "host reports a data stream error"
		if len(rec.Data) > 0 {
			detail = fmt.Sprintf("host error code % X", rec.Data)
		}
		d.log.Warn("host negative response", "detail", detail)
		d.oia.Lock(screen.LockedKeyboardError, screen.StatusProgCheck)
		d.emit(KindHostError, detail)
		return res, nil
	}

	switch rec.Opcode {
	case protocol.OpMsgLightOn:
		d.oia.SetMessageLight(true)
	case protocol.OpMsgLightOff:
		d.oia.SetMessageLight(false)
	case protocol.OpCancelInvite:
		d.readCmd = 0
		res.Replies = append(res.Replies, Reply{Opcode: protocol.OpCancelInvite})
	}

	cur := stream.New(rec.Data)
	d.dec.Reset()
	for cur.HasNext() {
		lead, _ := cur.Next()
		if lead != protocol.ESC {
			err := fmt.Errorf("%w: command lead-in %#02x, want ESC", protocol.ErrMalformedOrder, lead)
			d.emit(KindMalformedOrder, err.Error())
			return res, err
		}
		cb, err := cur.Next()
		if err != nil {
			err = fmt.Errorf("%w: record ends after ESC", protocol.ErrMalformedOrder)
			d.emit(KindMalformedOrder, err.Error())
			return res, err
		}
		d.cmd, d.order = protocol.Command(cb), 0
		d.log.Debug("command", "cmd", d.cmd.String(), "opcode", rec.Opcode.String())
		if err := d.command(d.cmd, cur, res); err != nil {
			if !errors.Is(err, codec.ErrUnmappable) {
				d.emit(KindMalformedOrder, err.Error())
			}
			return res, err
		}
	}
	return res, nil
}

func (d *Dispatcher) command(cmd protocol.Command, cur *stream.Cursor, res *Result) error {
	switch cmd {
	case protocol.CmdClearUnit:
		d.clearUnit(protocol.DefaultRows, protocol.DefaultCols)
	case protocol.CmdClearUnitAlternate:
		return d.clearUnitAlternate(cur)
	case protocol.CmdClearFormatTable:
		d.buf.ClearFields()
		d.readCmd = 0
		d.oia.Lock(screen.LockedSystemWait, screen.StatusSystemWait)
	case protocol.CmdWriteToDisplay:
		return d.writeToDisplay(cur)
	case protocol.CmdWriteErrorCode:
		return d.writeErrorCode(cur, false)
	case protocol.CmdWriteErrorCodeWin:
		return d.writeErrorCode(cur, true)
	case protocol.CmdReadInputFields, protocol.CmdReadMDTFields, protocol.CmdReadMDTFieldsAlt:
		return d.readFields(cmd, cur, res)
	case protocol.CmdReadScreen:
		res.Replies = append(res.Replies, Reply{Data: d.screenImage()})
	case protocol.CmdReadImmediate:
		res.Replies = append(res.Replies, Reply{Data: d.fieldResponse(protocol.AIDNone, protocol.CmdReadMDTFields)})
	case protocol.CmdSaveScreen:
		res.Replies = append(res.Replies, Reply{Opcode: protocol.OpSaveScreen, Data: d.saveScreen()})
	case protocol.CmdRestoreScreen:
		// The bytes that follow are a previously saved command stream;
		// the dispatch loop replays them as ordinary commands.
	case protocol.CmdRoll:
		return d.roll(cur)
	case protocol.CmdWriteStructured:
		return d.writeStructured(cur, res)
	default:
		return fmt.Errorf("%w: command %#02x", protocol.ErrMalformedOrder, byte(cmd))
	}
	return nil
}

// --- Clear commands ---

func (d *Dispatcher) clearUnit(rows, cols int) {
	if d.buf.Rows() != rows || d.buf.Cols() != cols {
		d.buf.Resize(rows, cols)
	} else {
		d.buf.Clear()
	}
	d.readCmd = 0
	d.dec.Reset()
	d.oia.Lock(screen.LockedSystemWait, screen.StatusSystemWait)
}

func (d *Dispatcher) clearUnitAlternate(cur *stream.Cursor) error {
	p, err := cur.Next()
	if err != nil {
		return fmt.Errorf("%w: clear unit alternate without parameter", protocol.ErrMalformedOrder)
	}
	if p != 0x00 && p != 0x80 {
		return fmt.Errorf("%w: clear unit alternate parameter %#02x", protocol.ErrMalformedOrder, p)
	}
	d.clearUnit(protocol.WideRows, protocol.WideCols)
	return nil
}

// --- Write to display ---

func (d *Dispatcher) writeToDisplay(cur *stream.Cursor) error {
	cc, err := cur.Take(2)
	if err != nil {
		return fmt.Errorf("%w: write to display without control characters", protocol.ErrMalformedOrder)
	}
	d.applyCC1(cc[0])
	if err := d.orders(cur); err != nil {
		return err
	}
	d.applyCC2(cc[1])
	return nil
}

// applyCC1 runs the format-table housekeeping bits before any orders.
// Nulling reads the MDT flags, so it happens before the resets.
func (d *Dispatcher) applyCC1(cc byte) {
	if cc&protocol.CC1NullModified != 0 {
		d.buf.NullModifiedFields()
	}
	if cc&protocol.CC1ResetMDTAll != 0 {
		d.buf.ResetMDT(true)
	} else if cc&protocol.CC1ResetMDT != 0 {
		d.buf.ResetMDT(false)
	}
}

// applyCC2 runs the device-action bits after the order stream. Blink
// has no observable effect on a headless screen.
func (d *Dispatcher) applyCC2(cc byte) {
	if cc&protocol.CC2MsgLightOff != 0 {
		d.oia.SetMessageLight(false)
	}
	if cc&protocol.CC2MsgLightOn != 0 {
		d.oia.SetMessageLight(true)
	}
	if cc&protocol.CC2Alarm != 0 {
		d.oia.SoundAlarm()
	}
	if cc&protocol.CC2Unlock != 0 {
		d.buf.CommitInsertCursor()
		d.oia.Unlock()
	}
}

// orders interprets the write-to-display order stream up to the next
// ESC or the record end. 0x00 and bytes at 0x20 and above are display
// data; anything else below 0x20 must be a known order.
func (d *Dispatcher) orders(cur *stream.Cursor) error {
	for cur.HasNext() {
		b, _ := cur.Peek(0)
		if b == protocol.ESC {
			return nil
		}
		cur.Next()
		// Inside a shifted run every byte is a code unit, not an order.
		if b == 0x00 || b >= 0x20 || d.dec.Shifted() {
			if err := d.writeData(b); err != nil {
				return err
			}
			continue
		}
		if d.dbcs && (b == codec.ShiftIn || b == codec.ShiftOut) {
			if err := d.writeData(b); err != nil {
				return err
			}
			continue
		}
		d.order = protocol.Order(b)
		if err := d.runOrder(d.order, cur); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) runOrder(o protocol.Order, cur *stream.Cursor) error {
	switch o {
	case protocol.OrderSOH:
		return d.startOfHeader(cur)
	case protocol.OrderRA:
		return d.repeatToAddress(cur)
	case protocol.OrderEA:
		return d.eraseToAddress(cur)
	case protocol.OrderTD:
		return d.transparentData(cur)
	case protocol.OrderSBA:
		return d.setBufferAddress(cur)
	case protocol.OrderWEA:
		return d.writeExtendedAttr(cur)
	case protocol.OrderIC:
		return d.insertCursor(cur)
	case protocol.OrderMC:
		return d.moveCursor(cur)
	case protocol.OrderWDSF:
		return d.structuredField(cur)
	case protocol.OrderSF:
		return d.startOfField(cur)
	default:
		return fmt.Errorf("%w: order %#02x", protocol.ErrMalformedOrder, byte(o))
	}
}

// writeData feeds one stream byte through the decoder and writes any
// completed rune at the cursor.
func (d *Dispatcher) writeData(b byte) error {
	r, ok := d.dec.Next(b)
	if !ok {
		return nil
	}
	if r == utf8.RuneError {
		d.emit(KindUnmappable, fmt.Sprintf("code unit %#02x", b))
		if d.strict {
			return fmt.Errorf("%w: code unit %#02x in %s", codec.ErrUnmappable, b, d.cdc.Name())
		}
	}
	d.buf.WriteRune(r)
	return nil
}

// decodeByte maps a single code unit outside the main data path, for
// orders that carry character operands.
func (d *Dispatcher) decodeByte(b byte) (rune, error) {
	r := d.cdc.Decode(b)
	if r == utf8.RuneError {
		d.emit(KindUnmappable, fmt.Sprintf("code unit %#02x", b))
		if d.strict {
			return 0, fmt.Errorf("%w: code unit %#02x in %s", codec.ErrUnmappable, b, d.cdc.Name())
		}
	}
	return r, nil
}

// address consumes a wire address: 1-based row and column bytes,
// returned 0-based.
func (d *Dispatcher) address(cur *stream.Cursor) (row, col int, err error) {
	b, err := cur.Take(2)
	if err != nil {
		return 0, 0, err
	}
	return int(b[0]) - 1, int(b[1]) - 1, nil
}

// --- Orders ---

func (d *Dispatcher) startOfHeader(cur *stream.Cursor) error {
	n, err := cur.Next()
	if err != nil {
		return fmt.Errorf("%w: start of header truncated", protocol.ErrMalformedOrder)
	}
	if n == 0 || n > 7 {
		return fmt.Errorf("%w: start of header length %d", protocol.ErrMalformedOrder, n)
	}
	body, err := cur.Take(int(n))
	if err != nil {
		return fmt.Errorf("%w: start of header of %d runs past record end", protocol.ErrMalformedOrder, n)
	}
	// A new header invalidates the format table and any open read.
	d.buf.ClearFields()
	d.readCmd = 0
	if n >= 4 {
		row := int(body[3])
		if row > d.buf.Rows() {
			return fmt.Errorf("%w: error row %d outside %d rows", protocol.ErrMalformedOrder, row, d.buf.Rows())
		}
		if row > 0 {
			d.buf.SetErrorRow(row - 1)
		}
	}
	return nil
}

func (d *Dispatcher) repeatToAddress(cur *stream.Cursor) error {
	row, col, err := d.address(cur)
	if err != nil {
		return fmt.Errorf("%w: repeat to address truncated", protocol.ErrMalformedOrder)
	}
	ch, err := cur.Next()
	if err != nil {
		return fmt.Errorf("%w: repeat to address without character", protocol.ErrMalformedOrder)
	}
	r, err := d.decodeByte(ch)
	if err != nil {
		return err
	}
	if err := d.buf.RepeatTo(row, col, r); err != nil {
		return fmt.Errorf("%w: repeat to address: %v", protocol.ErrMalformedOrder, err)
	}
	return nil
}

func (d *Dispatcher) eraseToAddress(cur *stream.Cursor) error {
	row, col, err := d.address(cur)
	if err != nil {
		return fmt.Errorf("%w: erase to address truncated", protocol.ErrMalformedOrder)
	}
	if err := d.buf.EraseTo(row, col); err != nil {
		return fmt.Errorf("%w: erase to address: %v", protocol.ErrMalformedOrder, err)
	}
	return nil
}

// transparentData copies its operand to the display without character
// translation.
func (d *Dispatcher) transparentData(cur *stream.Cursor) error {
	n, err := cur.Uint16()
	if err != nil {
		return fmt.Errorf("%w: transparent data truncated", protocol.ErrMalformedOrder)
	}
	body, err := cur.Take(int(n))
	if err != nil {
		return fmt.Errorf("%w: transparent data of %d runs past record end", protocol.ErrMalformedOrder, n)
	}
	for _, b := range body {
		d.buf.WriteRune(rune(b))
	}
	return nil
}

func (d *Dispatcher) setBufferAddress(cur *stream.Cursor) error {
	row, col, err := d.address(cur)
	if err != nil {
		return fmt.Errorf("%w: set buffer address truncated", protocol.ErrMalformedOrder)
	}
	if err := d.buf.SetCursor(row, col); err != nil {
		return fmt.Errorf("%w: set buffer address row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	return nil
}

// writeExtendedAttr parses the extended attribute pair for stream
// integrity; color and outlining have no cell on a headless screen.
func (d *Dispatcher) writeExtendedAttr(cur *stream.Cursor) error {
	if _, err := cur.Take(2); err != nil {
		return fmt.Errorf("%w: extended attribute truncated", protocol.ErrMalformedOrder)
	}
	return nil
}

func (d *Dispatcher) insertCursor(cur *stream.Cursor) error {
	row, col, err := d.address(cur)
	if err != nil {
		return fmt.Errorf("%w: insert cursor truncated", protocol.ErrMalformedOrder)
	}
	if err := d.buf.SetInsertCursor(row, col); err != nil {
		return fmt.Errorf("%w: insert cursor row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	return nil
}

func (d *Dispatcher) moveCursor(cur *stream.Cursor) error {
	row, col, err := d.address(cur)
	if err != nil {
		return fmt.Errorf("%w: move cursor truncated", protocol.ErrMalformedOrder)
	}
	if err := d.buf.SetCursor(row, col); err != nil {
		return fmt.Errorf("%w: move cursor row %d col %d outside %dx%d",
			protocol.ErrMalformedOrder, row+1, col+1, d.buf.Rows(), d.buf.Cols())
	}
	return nil
}

func (d *Dispatcher) startOfField(cur *stream.Cursor) error {
	attr, err := cur.Next()
	if err != nil {
		return fmt.Errorf("%w: start of field truncated", protocol.ErrMalformedOrder)
	}
	length, err := cur.Uint16()
	if err != nil {
		return fmt.Errorf("%w: start of field without length", protocol.ErrMalformedOrder)
	}
	if _, err := d.buf.OpenField(screen.Attr(attr), int(length)); err != nil {
		return fmt.Errorf("%w: start of field: %v", protocol.ErrMalformedOrder, err)
	}
	return nil
}

// --- Reads ---

// readFields arms an invited read. The controls apply like a write to
// display's, and the keyboard opens so the operator can answer.
func (d *Dispatcher) readFields(cmd protocol.Command, cur *stream.Cursor, res *Result) error {
	cc, err := cur.Take(2)
	if err != nil {
		return fmt.Errorf("%w: %s without control characters", protocol.ErrMalformedOrder, cmd)
	}
	d.applyCC1(cc[0])
	d.applyCC2(cc[1])
	d.readCmd = cmd
	d.buf.CommitInsertCursor()
	d.oia.Unlock()
	res.ReadPending = true
	return nil
}

// --- Roll ---

func (d *Dispatcher) roll(cur *stream.Cursor) error {
	b, err := cur.Take(3)
	if err != nil {
		return fmt.Errorf("%w: roll truncated", protocol.ErrMalformedOrder)
	}
	down := b[0]&0x80 != 0
	lines := int(b[0] & 0x1F)
	top, bottom := int(b[1])-1, int(b[2])-1
	if err := d.buf.Roll(top, bottom, lines, down); err != nil {
		return fmt.Errorf("%w: roll: %v", protocol.ErrMalformedOrder, err)
	}
	return nil
}

// --- Error messages ---

// writeErrorCode puts the host's message on the error row and inhibits
// the keyboard until the operator resets. Bytes below 0x40 frame the
// message (attributes, nulls) and are not part of the text.
func (d *Dispatcher) writeErrorCode(cur *stream.Cursor, window bool) error {
	if window {
		if _, err := cur.Take(2); err != nil {
			return fmt.Errorf("%w: write error code to window truncated", protocol.ErrMalformedOrder)
		}
	}
	var text []rune
	for cur.HasNext() {
		b, _ := cur.Peek(0)
		if b == protocol.ESC {
			break
		}
		cur.Next()
		switch {
		case b >= 0x40:
			r, err := d.decodeByte(b)
			if err != nil {
				return err
			}
			text = append(text, r)
		case b == 0x00 || b >= 0x20:
			// framing byte
		default:
			return fmt.Errorf("%w: order %#02x inside error message", protocol.ErrMalformedOrder, b)
		}
	}
	msg := strings.TrimRight(string(text), " ")
	d.buf.ShowError(msg)
	d.oia.Lock(screen.LockedKeyboardError, msg)
	return nil
}
