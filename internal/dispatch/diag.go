package dispatch

import (
	"time"

	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
)

// Kind labels what a diagnostic records.
type Kind int

const (
	KindMalformedOrder Kind = iota + 1
	KindUnmappable
	KindHostError
	KindUnlockTimeout
	KindNegotiationFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformedOrder:
		return "malformed order"
	case KindUnmappable:
		return "unmappable character"
	case KindHostError:
		return "host error"
	case KindUnlockTimeout:
		return "unlock timeout"
	case KindNegotiationFailed:
		return "negotiation failed"
	default:
		return "unknown"
	}
}

// Diagnostic is one observability record: enough context to reconstruct
// what the data stream looked like when something went wrong, without a
// packet capture.
type Diagnostic struct {
	Time    time.Time
	Kind    Kind
	Command protocol.Command
	Order   protocol.Order
	OIA     screen.OIAState
	Screen  string
	Detail  string
}

// Sink receives diagnostics as they are produced. Implementations run
// on the session's receive goroutine and must return quickly; a nil
// sink drops everything.
type Sink func(Diagnostic)

// emit hands a diagnostic to the sink with the dispatcher's current
// command and order context attached.
func (d *Dispatcher) emit(kind Kind, detail string) {
	if d.diag == nil {
		return
	}
	d.diag(Diagnostic{
		Time:    time.Now(),
		Kind:    kind,
		Command: d.cmd,
		Order:   d.order,
		OIA:     d.oia.State(),
		Screen:  d.buf.Snapshot(),
		Detail:  detail,
	})
}
