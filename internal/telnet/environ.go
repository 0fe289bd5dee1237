package telnet

import (
	"bytes"

	"github.com/fieldexit/go5250/internal/protocol"
)

// environEntry is one VAR or USERVAR in a NEW-ENVIRON block, with ESC
// escapes already undone.
type environEntry struct {
	tag   byte
	name  []byte
	value []byte
}

// parseEnviron splits a NEW-ENVIRON payload (the bytes after the IS or
// SEND verb) into entries. Malformed trailing bytes are dropped.
func parseEnviron(req []byte) []environEntry {
	var entries []environEntry
	i := 0
	for i < len(req) {
		tag := req[i]
		if tag != protocol.EnvVar && tag != protocol.EnvUserVar {
			break
		}
		i++
		var e environEntry
		e.tag = tag
		e.name, i = environField(req, i)
		if i < len(req) && req[i] == protocol.EnvValue {
			i++
			e.value, i = environField(req, i)
		}
		entries = append(entries, e)
	}
	return entries
}

// environField consumes bytes until the next unescaped structural tag,
// undoing ESC escapes.
func environField(req []byte, i int) ([]byte, int) {
	var out []byte
	for i < len(req) {
		switch req[i] {
		case protocol.EnvVar, protocol.EnvValue, protocol.EnvUserVar:
			return out, i
		case protocol.EnvEsc:
			i++
			if i >= len(req) {
				return out, i
			}
		}
		out = append(out, req[i])
		i++
	}
	return out, i
}

// environSeed pulls the sign-on seed out of a NEW-ENVIRON SEND. RFC
// 4777 glues the seed bytes directly after the IBMRSEED name; some
// hosts put them behind a VALUE tag instead. Both forms are accepted.
func environSeed(req []byte) ([]byte, bool) {
	name := []byte(protocol.EnvNameSeed)
	for _, e := range parseEnviron(req) {
		if e.tag != protocol.EnvUserVar {
			continue
		}
		if bytes.Equal(e.name, name) && len(e.value) > 0 {
			return e.value, true
		}
		if bytes.HasPrefix(e.name, name) && len(e.name) > len(name) {
			return e.name[len(name):], true
		}
	}
	return nil, false
}

// appendEnviron appends one VAR/USERVAR entry with a value, escaping
// the RFC 1572 structural bytes inside the value.
func appendEnviron(dst []byte, tag byte, name string, value []byte) []byte {
	dst = append(dst, tag)
	dst = append(dst, name...)
	dst = append(dst, protocol.EnvValue)
	for _, b := range value {
		if b <= protocol.EnvUserVar {
			dst = append(dst, protocol.EnvEsc)
		}
		dst = append(dst, b)
	}
	return dst
}
