package keyboard

import (
	"errors"
	"testing"

	"github.com/fieldexit/go5250/internal/protocol"
)

func chars(s string) []Key {
	var keys []Key
	for _, r := range s {
		keys = append(keys, Key{Mnemonic: Char, Ch: r})
	}
	return keys
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []Key
	}{
		{"plain text", "USER01", chars("USER01")},
		{"single mnemonic", "[enter]", []Key{{Mnemonic: Enter}}},
		{"mixed", "AB[tab]1", append(append(chars("AB"), Key{Mnemonic: Tab}), chars("1")...)},
		{"case insensitive", "[Enter]", []Key{{Mnemonic: Enter}}},
		{"function key", "[f13]", []Key{{Mnemonic: F13}}},
		{"pf alias", "[pf13]", []Key{{Mnemonic: F13}}},
		{"escape alias", "[escape]", []Key{{Mnemonic: SysReq}}},
		{"escaped left bracket", "[[x", append(chars("["), chars("x")...)},
		{"escaped right bracket", "a]]b", append(append(chars("a"), chars("]")...), chars("b")...)},
		{"lone right bracket", "a]b", chars("a]b")},
		{"empty", "", nil},
		{"adjacent mnemonics", "[home][fieldexit]", []Key{{Mnemonic: Home}, {Mnemonic: FieldExit}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.script)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.script, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.script, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Parse(%q)[%d] = %v, want %v", tt.script, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"unknown mnemonic", "[warp]", ErrUnknownMnemonic},
		{"unterminated", "AB[enter", ErrUnterminated},
		{"empty brackets", "[]", ErrUnknownMnemonic},
		{"f0", "[f0]", ErrUnknownMnemonic},
		{"f25", "[f25]", ErrUnknownMnemonic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.script); !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.script, err, tt.want)
			}
		})
	}
}

func TestKeyAID(t *testing.T) {
	tests := []struct {
		key  Key
		want protocol.AID
		ok   bool
	}{
		{Key{Mnemonic: Enter}, protocol.AIDEnter, true},
		{Key{Mnemonic: Clear}, protocol.AIDClear, true},
		{Key{Mnemonic: Help}, protocol.AIDHelp, true},
		{Key{Mnemonic: PageUp}, protocol.AIDRollDown, true},
		{Key{Mnemonic: PageDown}, protocol.AIDRollUp, true},
		{Key{Mnemonic: F1}, 0x31, true},
		{Key{Mnemonic: F12}, 0x3C, true},
		{Key{Mnemonic: F13}, 0xB1, true},
		{Key{Mnemonic: F24}, 0xBC, true},
		{Key{Mnemonic: Tab}, 0, false},
		{Key{Mnemonic: Reset}, 0, false},
		{Key{Mnemonic: Char, Ch: 'A'}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.key.AID()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%v.AID() = %#02x, %v; want %#02x, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func FuzzParse(f *testing.F) {
	f.Add("ACC001[tab]99[enter]")
	f.Add("[[escaped]]")
	f.Add("[f24][pf1]")
	f.Add("][")
	f.Fuzz(func(t *testing.T, script string) {
		keys, err := Parse(script)
		if err != nil {
			if !errors.Is(err, ErrUnknownMnemonic) && !errors.Is(err, ErrUnterminated) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		if len(keys) > len([]rune(script)) {
			t.Fatalf("parsed %d keys from %d runes", len(keys), len([]rune(script)))
		}
	})
}
