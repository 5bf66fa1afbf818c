// Package accel converts key bindings between raw (keycode, modifier state)
// pairs and a canonical accelerator text such as "<Control><Alt>m".
package accel

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Modifier is a keyboard modifier bitmask. Bit positions follow the X11/GDK
// layout so masks read from a platform keymap can be used unchanged.
type Modifier uint32

const (
	ShiftMask   Modifier = 1 << 0
	LockMask    Modifier = 1 << 1
	ControlMask Modifier = 1 << 2
	AltMask     Modifier = 1 << 3 // Mod1
	Mod2Mask    Modifier = 1 << 4
	Mod3Mask    Modifier = 1 << 5
	Mod4Mask    Modifier = 1 << 6
	Mod5Mask    Modifier = 1 << 7
	SuperMask   Modifier = 1 << 26
	HyperMask   Modifier = 1 << 27
	MetaMask    Modifier = 1 << 28
)

// DefaultModMask selects the modifiers that are significant for a binding.
// Lock and the numbered Mod2..Mod5 bits (NumLock and friends) are ignored.
const DefaultModMask = ShiftMask | ControlMask | AltMask | SuperMask | HyperMask | MetaMask

// None is the canonical text of "no binding". No real accelerator encodes to it.
const None = "(None)"

var (
	// ErrInvalidAccelerator reports accelerator text that cannot be parsed.
	// Callers treat it as "no binding".
	ErrInvalidAccelerator = errors.New("invalid accelerator")
	// ErrUnmappedKey reports a key name or keycode the keymap cannot resolve.
	ErrUnmappedKey = errors.New("key not present in keymap")
)

// modifierOrder is the fixed order modifiers are printed in.
var modifierOrder = []struct {
	mask Modifier
	name string
}{
	{ShiftMask, "Shift"},
	{ControlMask, "Control"},
	{AltMask, "Alt"},
	{SuperMask, "Super"},
	{HyperMask, "Hyper"},
	{MetaMask, "Meta"},
}

// modifierAliases is keyed by case-folded name.
var modifierAliases = map[string]Modifier{
	"shift":   ShiftMask,
	"shft":    ShiftMask,
	"control": ControlMask,
	"ctrl":    ControlMask,
	"ctl":     ControlMask,
	"primary": ControlMask,
	"alt":     AltMask,
	"mod1":    AltMask,
	"super":   SuperMask,
	"hyper":   HyperMask,
	"meta":    MetaMask,
}

// Accelerator is a decoded binding. The zero value is "no binding".
type Accelerator struct {
	Mods Modifier
	Key  string
}

// IsNone reports whether a carries no binding.
func (a Accelerator) IsNone() bool { return a.Key == "" }

func (a Accelerator) String() string { return Encode(a.Mods, a.Key) }

// fold returns the case-folded form of s. A Caser is stateful, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// validKeyName reports whether name can appear as the key part of canonical
// text without being mistaken for a modifier or the None sentinel.
func validKeyName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "<>() \t\r\n")
}

// Encode renders the canonical text for (mods, key). Modifiers outside
// DefaultModMask are dropped. An empty or unprintable key encodes to None.
func Encode(mods Modifier, key string) string {
	if !validKeyName(key) {
		return None
	}
	mods &= DefaultModMask
	var b strings.Builder
	for _, m := range modifierOrder {
		if mods&m.mask != 0 {
			b.WriteByte('<')
			b.WriteString(m.name)
			b.WriteByte('>')
		}
	}
	b.WriteString(key)
	return b.String()
}

// Decode parses canonical text. "" and None (in any letter case) decode to
// the zero Accelerator. Modifier names are case-insensitive and accept the
// common aliases (Primary, Ctrl, Ctl, Shft, Mod1); key names are kept as
// written.
func Decode(text string) (Accelerator, error) {
	rest := strings.TrimSpace(text)
	if rest == "" || fold(rest) == fold(None) {
		return Accelerator{}, nil
	}

	var mods Modifier
	for strings.HasPrefix(rest, "<") {
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return Accelerator{}, fmt.Errorf("%w: unterminated modifier in %q", ErrInvalidAccelerator, text)
		}
		name := rest[1:end]
		mask, ok := modifierAliases[fold(name)]
		if !ok {
			return Accelerator{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidAccelerator, name, text)
		}
		mods |= mask
		rest = rest[end+1:]
	}
	if !validKeyName(rest) {
		return Accelerator{}, fmt.Errorf("%w: missing or malformed key in %q", ErrInvalidAccelerator, text)
	}
	return Accelerator{Mods: mods, Key: rest}, nil
}

// IsAbortCombination reports whether text is the reserved Control+C binding
// that clears a hotkey during capture instead of recording it.
func IsAbortCombination(text string) bool {
	a, err := Decode(text)
	if err != nil {
		return false
	}
	return a.Mods == ControlMask && fold(a.Key) == "c"
}
