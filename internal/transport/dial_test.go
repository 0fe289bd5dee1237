package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModePlain},
		{in: "none", want: ModePlain},
		{in: "plain", want: ModePlain},
		{in: "tcp", want: ModePlain},
		{in: "tls", want: ModeTLS},
		{in: "ssl", want: ModeTLS},
		{in: "quic", wantErr: true},
		{in: "TLS", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOptionsAddress(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "default plain port", opts: Options{Host: "as400.example.com"}, want: "as400.example.com:23"},
		{name: "default tls port", opts: Options{Host: "as400.example.com", Mode: ModeTLS}, want: "as400.example.com:992"},
		{name: "explicit port", opts: Options{Host: "10.0.0.9", Port: 2323}, want: "10.0.0.9:2323"},
		{name: "ipv6 host", opts: Options{Host: "::1", Port: 23}, want: "[::1]:23"},
	}
	for _, tt := range tests {
		if got := tt.opts.Address(); got != tt.want {
			t.Errorf("%s: Address() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// listenLoopback opens a TCP listener on an ephemeral port and returns
// it with the port number.
func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestDialPlain(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		got <- buf
	}()

	conn, err := Dial(ctx, Options{Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case buf := <-got:
		if string(buf) != "ping" {
			t.Fatalf("server read %q, want %q", buf, "ping")
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for server read")
	}
}

// generateTestCert creates an ephemeral self-signed certificate for the
// loopback TLS host used in tests.
func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}
}

func TestDialTLS(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	cert := generateTestCert(t)
	serverCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		tlsConn := tls.Server(conn, serverCfg)
		defer tlsConn.Close()
		buf := make([]byte, 5)
		if _, err := tlsConn.Read(buf); err != nil {
			return
		}
		got <- buf
	}()

	conn, err := Dial(ctx, Options{
		Host:               "127.0.0.1",
		Port:               port,
		Mode:               ModeTLS,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, ok := conn.(*tls.Conn); !ok {
		t.Fatalf("expected *tls.Conn, got %T", conn)
	}
	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case buf := <-got:
		if string(buf) != "hello" {
			t.Fatalf("server read %q, want %q", buf, "hello")
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for server read")
	}
}

func TestDialTLSRejectsUntrustedCert(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	cert := generateTestCert(t)
	serverCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		tlsConn := tls.Server(conn, serverCfg)
		tlsConn.Handshake()
		tlsConn.Close()
	}()

	_, err := Dial(ctx, Options{Host: "127.0.0.1", Port: port, Mode: ModeTLS})
	if err == nil {
		t.Fatal("expected handshake error against self-signed certificate, got nil")
	}
}

func TestDialConnectionRefused(t *testing.T) {
	ln, port := listenLoopback(t)
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Dial(ctx, Options{Host: "127.0.0.1", Port: port}); err == nil {
		t.Fatal("expected dial error against closed port, got nil")
	}
}

func TestDialProxyUnreachable(t *testing.T) {
	ln, proxyPort := listenLoopback(t)
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, Options{
		Host:  "as400.example.com",
		Port:  23,
		Proxy: net.JoinHostPort("127.0.0.1", strconv.Itoa(proxyPort)),
	})
	if err == nil {
		t.Fatal("expected dial error through unreachable proxy, got nil")
	}
}
