// Package termkeys is a keymap for keys read from a raw-mode terminal.
//
// Terminals deliver characters, not hardware keycodes, so keycodes here are
// synthetic: a printable ASCII key uses its lowercase byte value and named
// keys live above 0x100.
package termkeys

import (
	"fmt"
	"strings"

	"voltray/internal/accel"
)

// Named key codes.
const (
	KeyTab       = 0x09
	KeyReturn    = 0x0d
	KeyEscape    = 0x1b
	KeyBackSpace = 0x7f

	KeyUp = 0x100 + iota
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyInsert
	KeyDelete
	KeyPageUp
	KeyPageDown
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var namedKeys = map[int]string{
	KeyTab:       "Tab",
	KeyReturn:    "Return",
	KeyEscape:    "Escape",
	KeyBackSpace: "BackSpace",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyInsert:    "Insert",
	KeyDelete:    "Delete",
	KeyPageUp:    "Page_Up",
	KeyPageDown:  "Page_Down",
	KeyF1:        "F1",
	KeyF2:        "F2",
	KeyF3:        "F3",
	KeyF4:        "F4",
	KeyF5:        "F5",
	KeyF6:        "F6",
	KeyF7:        "F7",
	KeyF8:        "F8",
	KeyF9:        "F9",
	KeyF10:       "F10",
	KeyF11:       "F11",
	KeyF12:       "F12",
}

// punctuation maps printable non-alphanumeric ASCII to keysym names.
var punctuation = map[byte]string{
	' ': "space", '!': "exclam", '"': "quotedbl", '#': "numbersign",
	'$': "dollar", '%': "percent", '&': "ampersand", '\'': "apostrophe",
	'(': "parenleft", ')': "parenright", '*': "asterisk", '+': "plus",
	',': "comma", '-': "minus", '.': "period", '/': "slash",
	':': "colon", ';': "semicolon", '<': "less", '=': "equal",
	'>': "greater", '?': "question", '@': "at", '[': "bracketleft",
	'\\': "backslash", ']': "bracketright", '^': "asciicircum", '_': "underscore",
	'`': "grave", '{': "braceleft", '|': "bar", '}': "braceright",
	'~': "asciitilde",
}

// Keymap implements accel.Keymap for terminal keys.
type Keymap struct {
	byName map[string]int
}

func NewKeymap() *Keymap {
	km := &Keymap{byName: make(map[string]int, 128)}
	for code, name := range namedKeys {
		km.byName[name] = code
	}
	for b, name := range punctuation {
		km.byName[name] = int(b)
	}
	for b := byte('0'); b <= '9'; b++ {
		km.byName[string(b)] = int(b)
	}
	for b := byte('a'); b <= 'z'; b++ {
		km.byName[string(b)] = int(b)
		km.byName[strings.ToUpper(string(b))] = int(b)
	}
	return km
}

// Translate names keycode. Shift applied to a letter yields the uppercase
// name and is reported as consumed, matching how a desktop keymap behaves.
func (k *Keymap) Translate(keycode int, state accel.Modifier, _ int) (string, accel.Modifier, error) {
	name, ok := k.KeyName(keycode)
	if !ok {
		return "", 0, fmt.Errorf("%w: terminal keycode %#x", accel.ErrUnmappedKey, keycode)
	}
	if keycode >= 'a' && keycode <= 'z' && state&accel.ShiftMask != 0 {
		return strings.ToUpper(name), accel.ShiftMask, nil
	}
	return name, 0, nil
}

// Keycode resolves a key name to its synthetic keycode.
func (k *Keymap) Keycode(key string) (int, bool) {
	code, ok := k.byName[key]
	return code, ok
}

// KeyName returns the unshifted name of keycode.
func (k *Keymap) KeyName(keycode int) (string, bool) {
	if name, ok := namedKeys[keycode]; ok {
		return name, true
	}
	if keycode < 0 || keycode > 0x7e {
		return "", false
	}
	b := byte(keycode)
	switch {
	case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return string(b), true
	}
	if name, ok := punctuation[b]; ok {
		return name, true
	}
	return "", false
}
