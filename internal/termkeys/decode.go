package termkeys

import (
	"log/slog"

	"voltray/internal/accel"
)

// Event is one decoded key press.
type Event struct {
	Keycode int
	State   accel.Modifier
}

// IsEscape reports a bare Escape press.
func (e Event) IsEscape() bool {
	return e.Keycode == KeyEscape && e.State == 0
}

var csiFinal = map[byte]int{
	'A': KeyUp, 'B': KeyDown, 'C': KeyRight, 'D': KeyLeft,
	'H': KeyHome, 'F': KeyEnd,
	'P': KeyF1, 'Q': KeyF2, 'R': KeyF3, 'S': KeyF4,
}

var csiTilde = map[int]int{
	1: KeyHome, 2: KeyInsert, 3: KeyDelete, 4: KeyEnd, 5: KeyPageUp, 6: KeyPageDown,
	7: KeyHome, 8: KeyEnd,
	11: KeyF1, 12: KeyF2, 13: KeyF3, 14: KeyF4, 15: KeyF5,
	17: KeyF6, 18: KeyF7, 19: KeyF8, 20: KeyF9, 21: KeyF10, 23: KeyF11, 24: KeyF12,
}

// Decode splits one raw terminal read into key events. Control bytes become
// Control+letter, ESC-prefixed bytes become Alt+key, and CSI/SS3 sequences
// (with xterm modifier parameters) become named keys. Bytes that cannot be
// represented (UTF-8 sequences, unknown sequences) are dropped.
func Decode(buf []byte) []Event {
	var out []Event
	for i := 0; i < len(buf); {
		ev, n, ok := decodeOne(buf[i:])
		if ok {
			out = append(out, ev)
		} else {
			slog.Debug("[DEBUG-TERMKEYS] dropping undecodable input", "bytes", buf[i:i+n])
		}
		i += n
	}
	return out
}

func decodeOne(buf []byte) (Event, int, bool) {
	b := buf[0]
	switch {
	case b == KeyEscape:
		if len(buf) == 1 {
			return Event{Keycode: KeyEscape}, 1, true
		}
		switch buf[1] {
		case '[':
			return decodeCSI(buf)
		case 'O':
			if len(buf) >= 3 {
				if code, ok := csiFinal[buf[2]]; ok {
					return Event{Keycode: code}, 3, true
				}
				return Event{}, 3, false
			}
			return Event{Keycode: 'o', State: accel.AltMask | accel.ShiftMask}, 2, true
		case KeyEscape:
			return Event{Keycode: KeyEscape}, 1, true
		}
		ev, n, ok := decodeOne(buf[1:])
		if !ok {
			return Event{}, n + 1, false
		}
		ev.State |= accel.AltMask
		return ev, n + 1, true
	case b == KeyTab || b == KeyReturn || b == KeyBackSpace:
		return Event{Keycode: int(b)}, 1, true
	case b == '\n':
		return Event{Keycode: KeyReturn}, 1, true
	case b == 0x08:
		return Event{Keycode: KeyBackSpace}, 1, true
	case b == 0x00:
		return Event{Keycode: ' ', State: accel.ControlMask}, 1, true
	case b >= 0x01 && b <= 0x1a:
		return Event{Keycode: int('a' + b - 1), State: accel.ControlMask}, 1, true
	case b >= 'A' && b <= 'Z':
		return Event{Keycode: int(b - 'A' + 'a'), State: accel.ShiftMask}, 1, true
	case b >= 0x20 && b <= 0x7e:
		return Event{Keycode: int(b)}, 1, true
	}
	// Skip a whole UTF-8 sequence or any other stray byte.
	n := 1
	for n < len(buf) && buf[n]&0xc0 == 0x80 {
		n++
	}
	return Event{}, n, false
}

// decodeCSI parses ESC [ params final. buf starts at ESC.
func decodeCSI(buf []byte) (Event, int, bool) {
	var params []int
	cur, have := 0, false
	for i := 2; i < len(buf); i++ {
		c := buf[i]
		switch {
		case c >= '0' && c <= '9':
			cur = cur*10 + int(c-'0')
			have = true
		case c == ';':
			params = append(params, cur)
			cur, have = 0, false
		case c >= 0x40 && c <= 0x7e:
			if have {
				params = append(params, cur)
			}
			mods := xtermModifiers(params)
			if c == '~' {
				if len(params) == 0 {
					return Event{}, i + 1, false
				}
				code, ok := csiTilde[params[0]]
				return Event{Keycode: code, State: mods}, i + 1, ok
			}
			code, ok := csiFinal[c]
			return Event{Keycode: code, State: mods}, i + 1, ok
		default:
			return Event{}, i + 1, false
		}
	}
	return Event{}, len(buf), false
}

// xtermModifiers decodes the second CSI parameter: 1 + (Shift=1 | Alt=2 |
// Control=4 | Meta=8).
func xtermModifiers(params []int) accel.Modifier {
	if len(params) < 2 || params[1] < 2 {
		return 0
	}
	bits := params[1] - 1
	var m accel.Modifier
	if bits&1 != 0 {
		m |= accel.ShiftMask
	}
	if bits&2 != 0 {
		m |= accel.AltMask
	}
	if bits&4 != 0 {
		m |= accel.ControlMask
	}
	if bits&8 != 0 {
		m |= accel.MetaMask
	}
	return m
}
