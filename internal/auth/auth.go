// Package auth computes the password substitutes used for automatic
// sign-on during telnet environment negotiation (RFC 4777). The client
// never sends the password itself: both sides hash it with a pair of
// random seeds, and only the substitute crosses the wire.
package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

// SeedSize is the length of the client and server random seeds.
const SeedSize = 8

// SubstituteSize is the length of the SHA-1 password substitute.
const SubstituteSize = sha1.Size

var (
	ErrEmptyCredential = errors.New("user and password must be non-empty")
	ErrBadSeed         = errors.New("seed must be 8 bytes")
)

// GenerateSeed returns a cryptographically random client seed.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// Substitute computes the SHA-1 password substitute for the given
// credentials and seed pair. The result is deterministic for fixed
// inputs: the server derives the same value and compares.
//
// The hash chain is
//
//	token      = SHA1(ucs2(upper(user)) || ucs2(password))
//	substitute = SHA1(token || serverSeed || clientSeed || ucs2(upper(user)) || sequence)
//
// with an 8-byte big-endian sequence number fixed at 1 for the initial
// sign-on.
func Substitute(user, password string, serverSeed, clientSeed []byte) ([]byte, error) {
	if user == "" || password == "" {
		return nil, ErrEmptyCredential
	}
	if len(serverSeed) != SeedSize || len(clientSeed) != SeedSize {
		return nil, fmt.Errorf("%w: server %d, client %d", ErrBadSeed, len(serverSeed), len(clientSeed))
	}
	u := ucs2(strings.ToUpper(user))
	p := ucs2(password)

	h := sha1.New()
	h.Write(u)
	h.Write(p)
	token := h.Sum(nil)

	var seq [8]byte
	seq[7] = 1

	h = sha1.New()
	h.Write(token)
	h.Write(serverSeed)
	h.Write(clientSeed)
	h.Write(u)
	h.Write(seq[:])
	return h.Sum(nil), nil
}

// ucs2 encodes a string as big-endian two-byte code units, the form
// the host hashes credentials in.
func ucs2(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		out[2*i] = byte(u >> 8)
		out[2*i+1] = byte(u)
	}
	return out
}
