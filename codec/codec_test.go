package codec

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func mustLookup(t *testing.T, name string) Codec {
	t.Helper()
	c, err := Builtin().Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return c
}

func TestCodePage37RoundTrip(t *testing.T) {
	c := mustLookup(t, "37")
	tests := []struct {
		r rune
		b byte
	}{
		{'A', 0xC1},
		{'z', 0xA9},
		{'0', 0xF0},
		{'9', 0xF9},
		{' ', 0x40},
		{'?', 0x6F},
		{'$', 0x5B},
	}
	for _, tt := range tests {
		if got := c.Encode(tt.r); got != tt.b {
			t.Errorf("Encode(%q) = %#02x, want %#02x", tt.r, got, tt.b)
		}
		if got := c.Decode(tt.b); got != tt.r {
			t.Errorf("Decode(%#02x) = %q, want %q", tt.b, got, tt.r)
		}
	}
}

func TestEuroSignPerPage(t *testing.T) {
	p37 := mustLookup(t, "37")
	p1140 := mustLookup(t, "1140")

	if _, err := EncodeStrict(p37, '€'); !errors.Is(err, ErrUnmappable) {
		t.Errorf("EncodeStrict(37, euro) = %v, want ErrUnmappable", err)
	}
	if got := p37.Encode('€'); got != Substitute {
		t.Errorf("Encode(37, euro) = %#02x, want substitute %#02x", got, Substitute)
	}
	b, err := EncodeStrict(p1140, '€')
	if err != nil {
		t.Fatalf("EncodeStrict(1140, euro): %v", err)
	}
	if got := p1140.Decode(b); got != '€' {
		t.Errorf("Decode(1140, %#02x) = %q, want euro", b, got)
	}
}

// holeCodec is a minimal codec with an unmapped byte and no Strict
// implementation, to exercise the helper fallbacks.
type holeCodec struct{}

func (holeCodec) Name() string { return "hole" }
func (holeCodec) Decode(b byte) rune {
	if b == 0x41 {
		return utf8.RuneError
	}
	return rune(b)
}
func (holeCodec) Encode(r rune) byte {
	if r > 0xFF {
		return Substitute
	}
	return byte(r)
}

func TestStrictHelpersFallback(t *testing.T) {
	c := holeCodec{}
	if _, err := DecodeStrict(c, 0x41); !errors.Is(err, ErrUnmappable) {
		t.Errorf("DecodeStrict on hole = %v, want ErrUnmappable", err)
	}
	if r, err := DecodeStrict(c, 0x42); err != nil || r != 0x42 {
		t.Errorf("DecodeStrict(0x42) = %q, %v", r, err)
	}
	if _, err := EncodeStrict(c, '€'); !errors.Is(err, ErrUnmappable) {
		t.Errorf("EncodeStrict unmappable = %v, want ErrUnmappable", err)
	}
	if b, err := EncodeStrict(c, '?'); err != nil || b != '?' {
		t.Errorf("EncodeStrict('?') = %#02x, %v; substitute must stay valid for a real question mark", b, err)
	}
}

func TestRegistryLookupNormalization(t *testing.T) {
	r := Builtin()
	for _, name := range []string{"37", "037", "CP037", "IBM-037", "ibm037", "ccsid37"} {
		c, err := r.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if c.Name() != "37" {
			t.Errorf("Lookup(%q).Name() = %q, want 37", name, c.Name())
		}
	}
	if _, err := r.Lookup("930"); err == nil {
		t.Error("Lookup of unregistered page succeeded")
	}
	got := r.Names()
	want := []string{"1047", "1140", "37"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestRegistryLookupReturnsFreshInstances(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func() Codec { return &fakeDBCS{} })
	a, err := r.Lookup("fake")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Lookup("fake")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("Lookup returned the same instance twice")
	}
}

// fakeDBCS maps single bytes to themselves and double-byte pairs into
// the CJK block, enough to drive the shift machinery. The padding
// field keeps the struct non-zero-sized: zero-size allocations share
// one address, which would defeat the instance-identity check in
// TestRegistryLookupReturnsFreshInstances.
type fakeDBCS struct{ _ byte }

func (*fakeDBCS) Name() string       { return "fake-dbcs" }
func (*fakeDBCS) Decode(b byte) rune { return rune(b) }
func (*fakeDBCS) Encode(r rune) byte {
	if r > 0xFF {
		return Substitute
	}
	return byte(r)
}
func (*fakeDBCS) DecodePair(hi, lo byte) rune {
	return 0x4E00 + rune(hi)<<8 + rune(lo)
}

func TestDecoderShiftSequence(t *testing.T) {
	d := NewDecoder(&fakeDBCS{})
	input := []byte{0x41, ShiftIn, 0x01, 0x02, 0x01, 0x03, ShiftOut, 0x42}
	var got []rune
	for _, b := range input {
		if r, ok := d.Next(b); ok {
			got = append(got, r)
		}
	}
	want := []rune{0x41, 0x4F02, 0x4F03, 0x42}
	if len(got) != len(want) {
		t.Fatalf("decoded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("decoded %v, want %v", got, want)
		}
	}
	if d.Shifted() {
		t.Error("decoder still shifted after shift-out")
	}
}

func TestDecoderResetClearsPendingPair(t *testing.T) {
	d := NewDecoder(&fakeDBCS{})
	d.Next(ShiftIn)
	d.Next(0x11) // high byte of an unfinished pair
	d.Reset()
	if d.Shifted() {
		t.Fatal("Reset left decoder shifted")
	}
	r, ok := d.Next(0x41)
	if !ok || r != 0x41 {
		t.Errorf("Next after Reset = %q, %v; want single-byte decode", r, ok)
	}
}

func TestDecoderSingleBytePassThrough(t *testing.T) {
	d := NewDecoder(mustLookup(t, "37"))
	// Shift bytes have no meaning on a single-byte page and decode as
	// ordinary (control) code units.
	r, ok := d.Next(0xC1)
	if !ok || r != 'A' {
		t.Errorf("Next(0xC1) = %q, %v; want 'A'", r, ok)
	}
	if d.Shifted() {
		t.Error("single-byte decoder reports shifted state")
	}
}

// FuzzDecoder streams arbitrary bytes through a double-byte decoder.
// Every byte must be consumed without panic, never yielding more runes
// than bytes, and a reset must always restore single-byte state.
func FuzzDecoder(f *testing.F) {
	f.Add([]byte{0x41, ShiftIn, 0x01, 0x02, ShiftOut, 0x42})
	f.Add([]byte{ShiftIn, ShiftIn, 0x01})
	f.Add([]byte{ShiftOut})
	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder(&fakeDBCS{})
		runes := 0
		for _, b := range data {
			if _, ok := d.Next(b); ok {
				runes++
			}
		}
		if runes > len(data) {
			t.Fatalf("decoded %d runes from %d bytes", runes, len(data))
		}
		d.Reset()
		if d.Shifted() {
			t.Fatal("Reset left the decoder shifted")
		}
	})
}
