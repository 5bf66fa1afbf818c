package accel

import (
	"fmt"
	"log/slog"
)

// Keymap is the platform translation service. Implementations own the
// concrete key-symbol tables.
type Keymap interface {
	// Translate resolves a hardware keycode under the given modifier state and
	// keyboard group to a key name, reporting which modifiers the translation
	// consumed (e.g. Shift for an uppercase letter).
	Translate(keycode int, state Modifier, group int) (key string, consumed Modifier, err error)
	// Keycode returns the hardware keycode that produces key.
	Keycode(key string) (int, bool)
	// KeyName returns the unshifted key name of a hardware keycode.
	KeyName(keycode int) (string, bool)
}

// Codec converts between raw key events and canonical text using a Keymap.
type Codec struct {
	keymap Keymap
}

func NewCodec(keymap Keymap) *Codec {
	return &Codec{keymap: keymap}
}

// RawToCanonical translates a key-down event into canonical text. Consumed
// modifiers are removed before masking to DefaultModMask.
func (c *Codec) RawToCanonical(keycode int, state Modifier, group int) (string, error) {
	key, consumed, err := c.keymap.Translate(keycode, state, group)
	if err != nil {
		return "", fmt.Errorf("translate keycode %d: %w", keycode, err)
	}
	state &^= consumed
	state &= DefaultModMask
	return Encode(state, key), nil
}

// CanonicalToHardware resolves canonical text to the keycode and modifiers a
// global hotkey is armed with. "No binding" yields (-1, 0, nil). Any failure
// yields (-1, 0, err) and the caller treats it as "no binding".
func (c *Codec) CanonicalToHardware(text string) (int, Modifier, error) {
	a, err := Decode(text)
	if err != nil {
		return -1, 0, err
	}
	if a.IsNone() {
		return -1, 0, nil
	}
	keycode, ok := c.keymap.Keycode(a.Key)
	if !ok || keycode < 0 {
		return -1, 0, fmt.Errorf("%w: %q", ErrUnmappedKey, a.Key)
	}
	return keycode, a.Mods, nil
}

// HardwareToCanonical renders a persisted (keycode, mods) pair for display.
// Negative or unknown keycodes render as None.
func (c *Codec) HardwareToCanonical(keycode int, mods Modifier) string {
	if keycode < 0 {
		return None
	}
	name, ok := c.keymap.KeyName(keycode)
	if !ok {
		slog.Debug("[DEBUG-ACCEL] persisted keycode not in keymap", "keycode", keycode)
		return None
	}
	return Encode(mods, name)
}
