package go5250

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldexit/go5250/codec"
	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/stream"
	"github.com/fieldexit/go5250/internal/telnet"
	"github.com/fieldexit/go5250/internal/typeahead"
)

// Errors crossing the package boundary. All of them survive wrapping;
// match with errors.Is.
var (
	// ErrOutOfBounds reports a data-stream read outside the received
	// record. The record is dropped; the session continues.
	ErrOutOfBounds = stream.ErrOutOfBounds

	// ErrMalformedOrder reports a command, order or structured field
	// that could not be interpreted or safely skipped. The record is
	// dropped; the session continues.
	ErrMalformedOrder = protocol.ErrMalformedOrder

	// ErrNegotiationFailed reports that the telnet handshake never
	// reached a usable state. Fatal to the session.
	ErrNegotiationFailed = telnet.ErrNegotiationFailed

	// ErrUnmappableCharacter reports a code unit with no mapping in
	// the session code page. Only strict sessions surface it; the
	// default policy writes U+FFFD and records a diagnostic.
	ErrUnmappableCharacter = codec.ErrUnmappable

	// ErrTypeAheadFull reports that SendKeys would overflow the
	// type-ahead queue. Nothing from the rejected call is queued.
	ErrTypeAheadFull = typeahead.ErrFull

	// ErrCommunication reports a transport failure after negotiation.
	// Fatal to the session; reconnecting is the caller's decision.
	ErrCommunication = errors.New("communication error")

	// ErrSessionClosed is returned by calls on a disconnected session
	// and by waits that a disconnect interrupted.
	ErrSessionClosed = errors.New("session closed")
)

// UnlockTimeoutError reports that AwaitUnlock gave up. It carries the
// display state at the deadline so the failure can be diagnosed
// without reproducing it against a live host.
type UnlockTimeoutError struct {
	Timeout  time.Duration
	State    OIAState
	Status   string
	Snapshot string
}

func (e *UnlockTimeoutError) Error() string {
	return fmt.Sprintf("keyboard not restored after %v: %s", e.Timeout, e.State)
}
