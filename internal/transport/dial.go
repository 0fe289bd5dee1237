// Package transport opens the network connection a session runs over:
// plain TCP or TLS, either direct or through a SOCKS5 proxy. It hands
// back a bare net.Conn; telnet framing is layered on top by the caller.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Well-known ports for the two connection modes.
const (
	DefaultPort    = 23
	DefaultTLSPort = 992
)

// Mode selects the connection security.
type Mode int

const (
	ModePlain Mode = iota
	ModeTLS
)

// ParseMode maps configuration strings to a Mode. "ssl" is accepted as
// a legacy spelling of "tls".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none", "plain", "tcp":
		return ModePlain, nil
	case "tls", "ssl":
		return ModeTLS, nil
	default:
		return 0, fmt.Errorf("unknown transport mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Options describe one dial attempt.
type Options struct {
	Host string
	Port int // 0 picks the default for the mode
	Mode Mode

	// ServerName overrides the name verified against the host
	// certificate; it defaults to Host.
	ServerName string
	// InsecureSkipVerify disables certificate verification, for hosts
	// with self-signed controller certificates.
	InsecureSkipVerify bool

	// Proxy is a SOCKS5 address (host:port); empty dials directly.
	Proxy string

	Timeout time.Duration
}

// Address returns the host:port this dial targets.
func (o Options) Address() string {
	port := o.Port
	if port == 0 {
		if o.Mode == ModeTLS {
			port = DefaultTLSPort
		} else {
			port = DefaultPort
		}
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// Dial opens the transport connection, completing the TLS handshake
// before returning when the mode asks for one.
func Dial(ctx context.Context, opts Options) (net.Conn, error) {
	addr := opts.Address()
	nd := &net.Dialer{Timeout: opts.Timeout}

	var conn net.Conn
	var err error
	if opts.Proxy != "" {
		var d proxy.Dialer
		d, err = proxy.SOCKS5("tcp", opts.Proxy, nil, nd)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %s: %w", opts.Proxy, err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			conn, err = cd.DialContext(ctx, "tcp", addr)
		} else {
			conn, err = d.Dial("tcp", addr)
		}
	} else {
		conn, err = nd.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if opts.Mode != ModeTLS {
		return conn, nil
	}
	serverName := opts.ServerName
	if serverName == "" {
		serverName = opts.Host
	}
	tlsConn := tls.Client(conn, ClientTLSConfig(serverName, opts.InsecureSkipVerify))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}

// ClientTLSConfig returns the TLS config used toward a host. TLS 1.2
// is the floor; plenty of midrange controllers stop there.
func ClientTLSConfig(serverName string, insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}
