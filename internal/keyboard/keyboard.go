// Package keyboard parses automation key scripts into keystrokes.
// Scripts mix literal text with bracketed mnemonics, e.g.
//
//	"ACC001[tab]2026[enter]"
//
// Doubled brackets escape literals: "[[" is a left bracket, "]]" a
// right bracket. Unknown mnemonics and unterminated brackets are
// errors; a script either parses completely or not at all.
package keyboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fieldexit/go5250/internal/protocol"
)

var (
	ErrUnknownMnemonic = errors.New("unrecognized key mnemonic")
	ErrUnterminated    = errors.New("unterminated key mnemonic")
)

// Mnemonic identifies a keystroke kind. Char carries a literal rune;
// everything else is a named key.
type Mnemonic int

const (
	Char Mnemonic = iota
	Enter
	Clear
	Help
	PageUp
	PageDown
	Print
	Tab
	Backtab
	Home
	FieldExit
	Reset
	SysReq
	Attn
	F1 // F1..F24 stay contiguous; AID mapping relies on it
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24
)

// Key is one parsed keystroke.
type Key struct {
	Mnemonic Mnemonic
	Ch       rune // set for Char keys
}

// AID returns the attention identifier the key generates, or false for
// keys handled locally.
func (k Key) AID() (protocol.AID, bool) {
	m := k.Mnemonic
	switch m {
	case Enter:
		return protocol.AIDEnter, true
	case Clear:
		return protocol.AIDClear, true
	case Help:
		return protocol.AIDHelp, true
	case PageUp:
		return protocol.AIDRollDown, true
	case PageDown:
		return protocol.AIDRollUp, true
	case Print:
		return protocol.AIDPrint, true
	}
	if m >= F1 && m <= F24 {
		return protocol.FunctionKeyAID(int(m-F1) + 1)
	}
	return 0, false
}

func (k Key) String() string {
	m := k.Mnemonic
	if m == Char {
		return string(k.Ch)
	}
	if m >= F1 && m <= F24 {
		return fmt.Sprintf("[f%d]", int(m-F1)+1)
	}
	names := map[Mnemonic]string{
		Enter:     "enter",
		Clear:     "clear",
		Help:      "help",
		PageUp:    "pageup",
		PageDown:  "pagedown",
		Print:     "print",
		Tab:       "tab",
		Backtab:   "backtab",
		Home:      "home",
		FieldExit: "fieldexit",
		Reset:     "reset",
		SysReq:    "sysreq",
		Attn:      "attn",
	}
	if n, ok := names[m]; ok {
		return "[" + n + "]"
	}
	return "[?]"
}

var mnemonics = map[string]Mnemonic{
	"enter":     Enter,
	"clear":     Clear,
	"help":      Help,
	"pageup":    PageUp,
	"pgup":      PageUp,
	"pagedown":  PageDown,
	"pgdn":      PageDown,
	"print":     Print,
	"tab":       Tab,
	"backtab":   Backtab,
	"home":      Home,
	"fieldexit": FieldExit,
	"reset":     Reset,
	"sysreq":    SysReq,
	"escape":    SysReq,
	"esc":       SysReq,
	"attn":      Attn,
}

func init() {
	for n := 1; n <= 24; n++ {
		m := F1 + Mnemonic(n-1)
		mnemonics[fmt.Sprintf("f%d", n)] = m
		mnemonics[fmt.Sprintf("pf%d", n)] = m
	}
}

// Parse tokenizes a key script. Mnemonic names are case-insensitive.
func Parse(script string) ([]Key, error) {
	var keys []Key
	rs := []rune(script)
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '[':
			if i+1 < len(rs) && rs[i+1] == '[' {
				keys = append(keys, Key{Mnemonic: Char, Ch: '['})
				i++
				continue
			}
			end := -1
			for j := i + 1; j < len(rs); j++ {
				if rs[j] == ']' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnterminated, string(rs[i:]))
			}
			name := strings.ToLower(string(rs[i+1 : end]))
			m, ok := mnemonics[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownMnemonic, name)
			}
			keys = append(keys, Key{Mnemonic: m})
			i = end
		case ']':
			// A doubled right bracket collapses; a lone one is literal.
			if i+1 < len(rs) && rs[i+1] == ']' {
				i++
			}
			keys = append(keys, Key{Mnemonic: Char, Ch: ']'})
		default:
			keys = append(keys, Key{Mnemonic: Char, Ch: rs[i]})
		}
	}
	return keys, nil
}
