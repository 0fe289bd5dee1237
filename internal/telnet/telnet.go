// Package telnet layers the telnet semantics of a 5250 connection over
// a transport conn: option negotiation (binary, end-of-record, terminal
// type, NEW-ENVIRON with the RFC 4777 sign-on variables) and logical
// record framing with IAC escaping.
package telnet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/fieldexit/go5250/internal/protocol"
)

// ErrNegotiationFailed reports that the option handshake could not
// reach a usable state. The connection is unusable for record traffic.
var ErrNegotiationFailed = errors.New("telnet negotiation failed")

// Phase tracks negotiation progress.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not started"
	case PhaseInProgress:
		return "in progress"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Negotiated reports what the handshake agreed on.
type Negotiated struct {
	TerminalType string
	DeviceName   string
	Rows         int
	Cols         int
	Enhanced     bool
}

// Config controls the client side of the handshake.
type Config struct {
	// TerminalType is offered in answer to TTYPE SEND; empty picks
	// protocol.DefaultTerminalType.
	TerminalType string

	// DeviceName, when set, must be delivered through NEW-ENVIRON
	// before negotiation can complete.
	DeviceName string

	// User and Password turn on the RFC 4777 auto-sign-on variables in
	// the NEW-ENVIRON reply.
	User     string
	Password string

	// Enhanced accepts the TN5250E option instead of declining it.
	Enhanced bool

	Logger *slog.Logger
}

// Conn drives telnet over a transport connection. It is not safe for
// concurrent use; the session loop owns it.
type Conn struct {
	nc  net.Conn
	r   *bufio.Reader
	log *slog.Logger
	cfg Config

	phase  Phase
	result Negotiated

	weBinary   bool
	theyBinary bool
	weEOR      bool
	theyEOR    bool
	weTType    bool
	weEnviron  bool
	theySGA    bool
	enhanced   bool

	ttypeSent      bool
	deviceNameSent bool

	serverSeed []byte

	// pending holds record bytes that arrived before negotiation
	// completed; ReadRecord drains it first.
	pending []byte
}

// NewConn wraps a transport connection. Negotiate must run before
// record traffic.
func NewConn(nc net.Conn, cfg Config) *Conn {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.TerminalType == "" {
		cfg.TerminalType = protocol.DefaultTerminalType
	}
	return &Conn{
		nc:  nc,
		r:   bufio.NewReader(nc),
		log: cfg.Logger,
		cfg: cfg,
	}
}

// Phase returns the negotiation state.
func (c *Conn) Phase() Phase { return c.phase }

// Close closes the underlying connection, unblocking any pending read.
func (c *Conn) Close() error { return c.nc.Close() }

func (c *Conn) writeRaw(b ...byte) error {
	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("telnet write: %w", err)
	}
	return nil
}

// send emits a three-byte option command.
func (c *Conn) send(cmd, opt byte) error {
	return c.writeRaw(protocol.IAC, cmd, opt)
}

// sendSubnegotiation frames a payload as IAC SB ... IAC SE, doubling
// any IAC bytes inside it.
func (c *Conn) sendSubnegotiation(payload []byte) error {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, protocol.IAC, protocol.SB)
	for _, b := range payload {
		if b == protocol.IAC {
			out = append(out, protocol.IAC)
		}
		out = append(out, b)
	}
	out = append(out, protocol.IAC, protocol.SE)
	return c.writeRaw(out...)
}

func optionName(opt byte) string {
	switch opt {
	case protocol.OptBinary:
		return "binary"
	case protocol.OptEcho:
		return "echo"
	case protocol.OptSGA:
		return "suppress go ahead"
	case protocol.OptTimingMark:
		return "timing mark"
	case protocol.OptTTYPE:
		return "terminal type"
	case protocol.OptEOR:
		return "end of record"
	case protocol.OptNewEnviron:
		return "new environ"
	case protocol.OptTN5250E:
		return "tn5250e"
	default:
		return fmt.Sprintf("option %d", opt)
	}
}
