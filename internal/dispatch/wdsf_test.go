package dispatch

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
)

// wdsfStream wraps one structured field in a write-to-display record
// with the cursor parked at row 5 column 10.
func wdsfStream(sub ...byte) []byte {
	return append([]byte{protocol.ESC, byte(protocol.CmdWriteToDisplay), 0x00, 0x00,
		byte(protocol.OrderSBA), 5, 10,
		byte(protocol.OrderWDSF)}, sub...)
}

func TestCreateWindow(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, wdsfStream(0x00, 0x0A, protocol.SFClassGUI, protocol.SFCreateWindow,
		0x00, 0x00, 0x00, 0x00, 8, 40))

	cs := buf.Constructs()
	if len(cs) != 1 {
		t.Fatalf("%d constructs, want 1", len(cs))
	}
	w := cs[0]
	if w.Kind != screen.KindWindow || w.Row != 4 || w.Col != 9 || w.Rows != 8 || w.Cols != 40 {
		t.Errorf("window = %+v, want 8x40 at 4,9", w)
	}
}

func TestCreateWindowOutsideScreen(t *testing.T) {
	d, _, _ := testDispatcher(t)
	_, err := d.Dispatch(&protocol.Record{Data: wdsfStream(
		0x00, 0x0A, protocol.SFClassGUI, protocol.SFCreateWindow,
		0x00, 0x00, 0x00, 0x00, 25, 40)})
	if !errors.Is(err, protocol.ErrMalformedOrder) {
		t.Errorf("oversize window = %v, want ErrMalformedOrder", err)
	}
}

func TestDefineScrollbar(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, wdsfStream(0x00, 0x08, protocol.SFClassGUI, protocol.SFDefineScrollbar,
		0x00, 0x00, 0x00, 0x08))
	cs := buf.Constructs()
	if len(cs) != 1 || cs[0].Kind != screen.KindScrollbar {
		t.Fatalf("constructs = %+v, want one scrollbar", cs)
	}
	if cs[0].Rows != 8 || cs[0].Cols != 1 {
		t.Errorf("vertical scrollbar = %dx%d, want 8x1", cs[0].Rows, cs[0].Cols)
	}

	dispatch(t, d, wdsfStream(0x00, 0x08, protocol.SFClassGUI, protocol.SFDefineScrollbar,
		0x01, 0x00, 0x00, 0x14))
	cs = buf.Constructs()
	if len(cs) != 2 || cs[1].Rows != 1 || cs[1].Cols != 20 {
		t.Errorf("horizontal scrollbar = %+v, want 1x20", cs[len(cs)-1])
	}
}

func TestDefineSelectionField(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, wdsfStream(0x00, 0x0A, protocol.SFClassGUI, protocol.SFDefineSelection,
		0x00, 0x00, 0x00, 0x00, 4, 16))
	cs := buf.Constructs()
	if len(cs) != 1 {
		t.Fatalf("%d constructs, want 1", len(cs))
	}
	s := cs[0]
	if s.Kind != screen.KindSelection || s.Row != 4 || s.Col != 9 || s.Rows != 4 || s.Cols != 16 {
		t.Errorf("selection field = %+v, want 4x16 at 4,9", s)
	}
}

func TestUnrestrictedCursorAndRemoveAll(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, wdsfStream(0x00, 0x04, protocol.SFClassGUI, protocol.SFUnrestrictedCursor))
	if !buf.FreeCursor() {
		t.Fatal("free cursor not granted")
	}

	dispatch(t, d, wdsfStream(0x00, 0x0A, protocol.SFClassGUI, protocol.SFCreateWindow,
		0x00, 0x00, 0x00, 0x00, 4, 10))
	dispatch(t, d, wdsfStream(0x00, 0x04, protocol.SFClassGUI, protocol.SFRemoveAllGUI))

	if got := buf.Constructs(); len(got) != 0 {
		t.Errorf("constructs survive remove-all: %+v", got)
	}
	if buf.FreeCursor() {
		t.Error("free cursor survives remove-all")
	}
}

func TestRemoveWindowErasesArea(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, cat(
		wdsfStream(0x00, 0x0A, protocol.SFClassGUI, protocol.SFCreateWindow,
			0x00, 0x00, 0x00, 0x00, 3, 20),
		eb(t, "INSIDE"),
	))
	if got := rowText(t, buf, 4)[9:15]; got != "INSIDE" {
		t.Fatalf("setup row = %q, want INSIDE", got)
	}

	dispatch(t, d, wdsfStream(0x00, 0x04, protocol.SFClassGUI, protocol.SFRemoveWindow))

	if got := buf.Constructs(); len(got) != 0 {
		t.Errorf("window survives removal: %+v", got)
	}
	if got := strings.TrimSpace(rowText(t, buf, 4)); got != "" {
		t.Errorf("row 5 = %q, want blanked window area", got)
	}
}

func TestUnknownStructuredFieldSkippedByLength(t *testing.T) {
	d, buf, _ := testDispatcher(t)
	dispatch(t, d, cat(
		wdsfStream(0x00, 0x07, protocol.SFClassGUI, 0x6E, 0xAA, 0xBB, 0xCC),
		eb(t, "NEXT"),
	))
	if got := rowText(t, buf, 4)[9:13]; got != "NEXT" {
		t.Errorf("data after skipped gui field = %q, want NEXT", got)
	}

	// A class the display does not implement at all.
	dispatch(t, d, cat(
		[]byte{protocol.ESC, byte(protocol.CmdWriteToDisplay), 0x00, 0x00,
			byte(protocol.OrderSBA), 6, 1,
			byte(protocol.OrderWDSF), 0x00, 0x06, 0xC1, 0x01, 0xFF, 0xFF},
		eb(t, "SKIP"),
	))
	if got := rowText(t, buf, 5)[:4]; got != "SKIP" {
		t.Errorf("data after skipped class = %q, want SKIP", got)
	}
}

func TestStructuredFieldLengthErrors(t *testing.T) {
	// Too short to hold its own header.
	d, _, _ := testDispatcher(t)
	_, err := d.Dispatch(&protocol.Record{Data: wdsfStream(0x00, 0x03, protocol.SFClassGUI)})
	if !errors.Is(err, protocol.ErrMalformedOrder) {
		t.Errorf("undersized field = %v, want ErrMalformedOrder", err)
	}

	// Declared length past the record end.
	d, _, _ = testDispatcher(t)
	_, err = d.Dispatch(&protocol.Record{Data: wdsfStream(0x00, 0x30, protocol.SFClassGUI, protocol.SFCreateWindow)})
	if !errors.Is(err, protocol.ErrMalformedOrder) {
		t.Errorf("overrunning field = %v, want ErrMalformedOrder", err)
	}

	// A window body shorter than its bounds header.
	d, _, _ = testDispatcher(t)
	_, err = d.Dispatch(&protocol.Record{Data: wdsfStream(
		0x00, 0x08, protocol.SFClassGUI, protocol.SFCreateWindow, 0x00, 0x00, 0x00, 0x00)})
	if !errors.Is(err, protocol.ErrMalformedOrder) {
		t.Errorf("short window body = %v, want ErrMalformedOrder", err)
	}
}

func TestQueryReply(t *testing.T) {
	d, _, _ := testDispatcher(t)
	res := dispatch(t, d, []byte{protocol.ESC, byte(protocol.CmdWriteStructured),
		0x00, 0x04, protocol.SFClassGUI, protocol.SFQuery})
	if len(res.Replies) != 1 {
		t.Fatalf("%d replies, want 1", len(res.Replies))
	}
	reply := res.Replies[0]
	if reply.Opcode != protocol.OpNoOp {
		t.Errorf("opcode = %v, want no-op", reply.Opcode)
	}

	data := reply.Data
	if len(data) != 61 {
		t.Fatalf("reply of %d bytes, want 61", len(data))
	}
	if data[0] != 0x00 || data[1] != 0x00 || data[2] != protocol.QueryAID {
		t.Errorf("header = % X, want 00 00 88", data[:3])
	}
	if sfLen := int(data[3])<<8 | int(data[4]); sfLen != len(data)-3 {
		t.Errorf("declared length %d, reply body %d", sfLen, len(data)-3)
	}
	if data[5] != protocol.SFClassGUI || data[6] != protocol.SFQuery || data[7] != 0x80 {
		t.Errorf("structured field header = % X, want D9 70 80", data[5:8])
	}
	if want := eb(t, "5251"); !bytes.Equal(data[30:34], want) {
		t.Errorf("machine type = % X, want % X", data[30:34], want)
	}
	if want := eb(t, "011"); !bytes.Equal(data[34:37], want) {
		t.Errorf("model = % X, want % X", data[34:37], want)
	}
	if data[49]&0x01 != 0 {
		t.Errorf("capability byte %#02x claims the wide geometry on a 24x80 display", data[49])
	}
}

func TestQueryReplyWideGeometryCapability(t *testing.T) {
	d, _, _ := testDispatcher(t)
	dispatch(t, d, []byte{protocol.ESC, byte(protocol.CmdClearUnitAlternate), 0x00})
	res := dispatch(t, d, []byte{protocol.ESC, byte(protocol.CmdWriteStructured),
		0x00, 0x04, protocol.SFClassGUI, protocol.SFQuery})
	if len(res.Replies) != 1 {
		t.Fatalf("%d replies, want 1", len(res.Replies))
	}
	data := res.Replies[0].Data
	if data[49]&0x01 == 0 {
		t.Errorf("capability byte %#02x missing the wide-geometry bit", data[49])
	}
}
