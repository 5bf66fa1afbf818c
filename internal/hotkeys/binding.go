package hotkeys

import (
	"voltray/internal/accel"
	"voltray/internal/action"
)

// Binding is one armed global shortcut.
type Binding struct {
	Action  action.Action
	Keycode int
	Mods    accel.Modifier
}

// matches reports whether a key event with the given state fires b. Lock and
// NumLock bits in state are ignored.
func (b Binding) matches(keycode int, state accel.Modifier) bool {
	return b.Keycode == keycode && b.Mods&accel.DefaultModMask == state&accel.DefaultModMask
}
