// Package action defines the fixed set of volume actions that can carry a
// global hotkey, and the config keys each one is persisted under.
package action

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown is returned by Parse for names outside the fixed action set.
var ErrUnknown = errors.New("unknown hotkey action")

// Action identifies one hotkey target.
type Action int

const (
	None Action = iota
	Mute
	VolumeUp
	VolumeDown
)

// All lists every valid action in display order.
var All = []Action{Mute, VolumeUp, VolumeDown}

var actionByName = map[string]Action{
	"mute":        Mute,
	"up":          VolumeUp,
	"volume-up":   VolumeUp,
	"down":        VolumeDown,
	"volume-down": VolumeDown,
}

// Parse resolves a user- or view-supplied action name.
func Parse(name string) (Action, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := actionByName[key]; ok {
		return a, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// Valid reports whether a is one of the three hotkey targets.
func (a Action) Valid() bool {
	return a >= Mute && a <= VolumeDown
}

func (a Action) String() string {
	switch a {
	case Mute:
		return "mute"
	case VolumeUp:
		return "volume-up"
	case VolumeDown:
		return "volume-down"
	default:
		return "none"
	}
}

// Label is the human-readable caption shown while capturing.
func (a Action) Label() string {
	switch a {
	case Mute:
		return "Mute/Unmute"
	case VolumeUp:
		return "Volume Up"
	case VolumeDown:
		return "Volume Down"
	default:
		return ""
	}
}

// KeycodeKey returns the config key holding the hardware keycode.
func (a Action) KeycodeKey() string {
	switch a {
	case Mute:
		return "VolMuteKey"
	case VolumeUp:
		return "VolUpKey"
	case VolumeDown:
		return "VolDownKey"
	default:
		return ""
	}
}

// ModsKey returns the config key holding the modifier mask.
func (a Action) ModsKey() string {
	switch a {
	case Mute:
		return "VolMuteMods"
	case VolumeUp:
		return "VolUpMods"
	case VolumeDown:
		return "VolDownMods"
	default:
		return ""
	}
}
