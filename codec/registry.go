package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Registry maps code page names to codec constructors. Lookup builds a
// fresh instance per call so no two sessions ever share codec state.
// Registration happens at startup; Lookup is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]func() Codec)}
}

// Register adds a constructor under the given name, replacing any
// previous registration. The name is normalized like Lookup arguments.
func (r *Registry) Register(name string, ctor func() Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[normalize(name)] = ctor
}

// Lookup returns a new codec instance for the named code page. Names
// are matched loosely: "37", "037", "CP037" and "IBM-037" all resolve
// to the same entry.
func (r *Registry) Lookup(name string) (Codec, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown code page %q", name)
	}
	return ctor(), nil
}

// Names returns the registered canonical names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "ibm-")
	n = strings.TrimPrefix(n, "ibm")
	n = strings.TrimPrefix(n, "ccsid")
	n = strings.TrimPrefix(n, "cp")
	for len(n) > 1 && n[0] == '0' {
		n = n[1:]
	}
	return n
}

// Builtin returns a registry preloaded with the EBCDIC code pages
// shipped with this module: 37 (US/Canada), 1047 (Latin-1 open
// systems) and 1140 (37 with the euro sign).
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("37", func() Codec { return FromCharmap("37", charmap.CodePage037) })
	r.Register("1047", func() Codec { return FromCharmap("1047", charmap.CodePage1047) })
	r.Register("1140", func() Codec { return FromCharmap("1140", charmap.CodePage1140) })
	return r
}

// FromCharmap wraps an x/text character map as a Codec. Callers can use
// it to register additional single-byte EBCDIC pages.
func FromCharmap(name string, cm *charmap.Charmap) Codec {
	return &charmapCodec{name: name, cm: cm}
}

type charmapCodec struct {
	name string
	cm   *charmap.Charmap
}

func (c *charmapCodec) Name() string { return c.name }

func (c *charmapCodec) Decode(b byte) rune {
	return c.cm.DecodeByte(b)
}

func (c *charmapCodec) Encode(r rune) byte {
	if b, ok := c.cm.EncodeRune(r); ok {
		return b
	}
	return Substitute
}

// No charmap maps a byte to U+FFFD, so RuneError always means the byte
// is undefined in this page.
func (c *charmapCodec) DecodeStrict(b byte) (rune, error) {
	r := c.cm.DecodeByte(b)
	if r == utf8.RuneError {
		return 0, fmt.Errorf("%w: byte %#02x in code page %s", ErrUnmappable, b, c.name)
	}
	return r, nil
}

func (c *charmapCodec) EncodeStrict(r rune) (byte, error) {
	b, ok := c.cm.EncodeRune(r)
	if !ok {
		return 0, fmt.Errorf("%w: %q in code page %s", ErrUnmappable, r, c.name)
	}
	return b, nil
}
