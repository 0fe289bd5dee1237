package go5250

import (
	"io"
	"log/slog"
	"time"

	"github.com/fieldexit/go5250/codec"
	"github.com/fieldexit/go5250/internal/protocol"
)

// Defaults applied by Connect when the corresponding Config field is
// zero.
const (
	DefaultTerminalType   = protocol.DefaultTerminalType
	DefaultCodepage       = "37"
	DefaultConnectTimeout = 10 * time.Second
	DefaultUnlockPoll     = 100 * time.Millisecond
)

// Config describes one session. The zero value of every field except
// Host is usable; Connect fills in the defaults.
type Config struct {
	// Host is the controller to dial. Required.
	Host string

	// Port 0 picks the default for the transport mode: 23 plain,
	// 992 TLS.
	Port int

	// TLSMode selects the transport security: "" or "plain" for
	// cleartext, "tls" (or the legacy "ssl") for TLS.
	TLSMode string

	// InsecureSkipVerify accepts any host certificate, for controllers
	// with self-signed certificates.
	InsecureSkipVerify bool

	// Proxy is a SOCKS5 address (host:port); empty dials directly.
	Proxy string

	// DeviceName requests a specific workstation name during
	// negotiation. Empty lets the host assign one.
	DeviceName string

	// TerminalType overrides the terminal model offered to the host;
	// empty offers IBM-3179-2 (24x80). The agreed type fixes the
	// screen geometry.
	TerminalType string

	// User and Password turn on auto-sign-on: the password crosses the
	// wire only as an RFC 4777 hash substitute, never in clear.
	User     string
	Password string

	// Enhanced accepts the TN5250E option instead of declining it.
	Enhanced bool

	// Codepage names the EBCDIC code page for character translation,
	// resolved through Codecs. Default "37".
	Codepage string

	// Codecs resolves Codepage. Nil uses codec.Builtin().
	Codecs *codec.Registry

	// Strict rejects records carrying unmappable characters instead of
	// writing the replacement character.
	Strict bool

	// ConnectTimeout bounds dialing and negotiation together. Default
	// 10s. A context deadline on Connect tightens it further.
	ConnectTimeout time.Duration

	// UnlockPoll is the interval at which AwaitUnlock rechecks the
	// keyboard state. Default 100ms.
	UnlockPoll time.Duration

	// TypeAhead caps the keystrokes queued while the keyboard is
	// locked. Default 256.
	TypeAhead int

	// Logger receives session logs. Nil discards them.
	Logger *slog.Logger

	// TraceWriter, when set, receives a hex dump of every record in
	// both directions. Negotiation traffic is not traced.
	TraceWriter io.Writer

	// Diagnostics receives structured records for malformed orders,
	// unmappable characters, host errors, negotiation failures and
	// unlock timeouts. Nil drops them.
	Diagnostics DiagnosticSink
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Codecs == nil {
		c.Codecs = codec.Builtin()
	}
	if c.Codepage == "" {
		c.Codepage = DefaultCodepage
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.UnlockPoll <= 0 {
		c.UnlockPoll = DefaultUnlockPoll
	}
	return c
}
