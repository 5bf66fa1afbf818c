package prefs

import (
	"strings"

	"voltray/internal/config"
)

// Domain is a collaborator that must react to a committed change.
type Domain uint8

const (
	AudioReinit Domain = 1 << iota
	HotkeyRebind
	ViewRefresh
	NotificationRefresh
	ScrollRefresh
)

// dispatchOrder is the order collaborators are notified in. Audio reinit
// runs last because it is the slowest and may fail independently.
var dispatchOrder = []Domain{ScrollRefresh, HotkeyRebind, NotificationRefresh, ViewRefresh, AudioReinit}

func (d Domain) String() string {
	switch d {
	case AudioReinit:
		return "AudioReinit"
	case HotkeyRebind:
		return "HotkeyRebind"
	case ViewRefresh:
		return "ViewRefresh"
	case NotificationRefresh:
		return "NotificationRefresh"
	case ScrollRefresh:
		return "ScrollRefresh"
	default:
		return "Unknown"
	}
}

// ChangeSet is the set of domains a commit touched. The zero value is empty.
type ChangeSet struct {
	bits Domain
}

// NewChangeSet builds a ChangeSet from domains.
func NewChangeSet(domains ...Domain) ChangeSet {
	var cs ChangeSet
	for _, d := range domains {
		cs.Add(d)
	}
	return cs
}

func (cs *ChangeSet) Add(d Domain)      { cs.bits |= d }
func (cs ChangeSet) Has(d Domain) bool { return cs.bits&d != 0 }
func (cs ChangeSet) Empty() bool       { return cs.bits == 0 }

// Domains lists the members in dispatch order.
func (cs ChangeSet) Domains() []Domain {
	var out []Domain
	for _, d := range dispatchOrder {
		if cs.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (cs ChangeSet) String() string {
	if cs.Empty() {
		return "none"
	}
	names := make([]string, 0, len(dispatchOrder))
	for _, d := range cs.Domains() {
		names = append(names, d.String())
	}
	return strings.Join(names, ",")
}

// globalKeyDomains maps every global key with a collaborator to its domain.
// Keys absent here (MiddleClickAction, CustomCommand, VolumeControlCommand,
// NormalizeVolume) are read on use and need no notification.
var globalKeyDomains = map[string]Domain{
	config.KeySliderOrientation:  ViewRefresh,
	config.KeyDisplayTextVolume:  ViewRefresh,
	config.KeyTextVolumePosition: ViewRefresh,
	config.KeyDrawVolMeter:       ViewRefresh,
	config.KeyVolMeterPos:        ViewRefresh,
	config.KeyVolMeterColor:      ViewRefresh,
	config.KeySystemTheme:        ViewRefresh,

	config.KeyScrollStep:     ScrollRefresh,
	config.KeyFineScrollStep: ScrollRefresh,

	config.KeyAlsaCard: AudioReinit,

	config.KeyEnableHotKeys:    HotkeyRebind,
	config.KeyHotkeyVolumeStep: HotkeyRebind,
	config.KeyVolMuteKey:       HotkeyRebind,
	config.KeyVolUpKey:         HotkeyRebind,
	config.KeyVolDownKey:       HotkeyRebind,
	config.KeyVolMuteMods:      HotkeyRebind,
	config.KeyVolUpMods:        HotkeyRebind,
	config.KeyVolDownMods:      HotkeyRebind,

	config.KeyEnableNotifications:   NotificationRefresh,
	config.KeyHotkeyNotifications:   NotificationRefresh,
	config.KeyMouseNotifications:    NotificationRefresh,
	config.KeyPopupNotifications:    NotificationRefresh,
	config.KeyExternalNotifications: NotificationRefresh,
	config.KeyNotificationTimeout:   NotificationRefresh,
}

// DomainOf returns the domain a change to (section, key) belongs to. A device
// section's channel belongs to AudioReinit.
func DomainOf(section, key string) (Domain, bool) {
	if section == config.GlobalSection {
		d, ok := globalKeyDomains[key]
		return d, ok
	}
	if key == config.ChannelKey {
		return AudioReinit, true
	}
	return 0, false
}

// effectiveValue is what a reader of (section, key) observes in s: the stored
// value, or the schema read default for a global key.
func effectiveValue(s *config.Store, section, key string) config.Value {
	if v, ok := s.Lookup(section, key); ok {
		return v
	}
	if section == config.GlobalSection {
		if spec, ok := config.LookupSpec(key); ok {
			return spec.Default
		}
	}
	return config.Value{}
}

// Diff returns the domains whose effective values differ between two stores,
// e.g. before and after an external edit of the config file.
func Diff(oldStore, newStore *config.Store) ChangeSet {
	var cs ChangeSet
	seen := map[[2]string]bool{}
	check := func(section, key string) {
		id := [2]string{section, key}
		if seen[id] {
			return
		}
		seen[id] = true
		d, ok := DomainOf(section, key)
		if !ok || cs.Has(d) {
			return
		}
		if !effectiveValue(oldStore, section, key).Equal(effectiveValue(newStore, section, key)) {
			cs.Add(d)
		}
	}
	for _, s := range []*config.Store{oldStore, newStore} {
		for _, section := range s.Sections() {
			for _, key := range s.Keys(section) {
				check(section, key)
			}
		}
	}
	return cs
}
