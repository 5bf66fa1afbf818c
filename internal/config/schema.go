package config

import (
	"voltray/internal/action"
)

// GlobalSection holds every setting that is not scoped to an audio device.
const GlobalSection = "global"

// ChannelKey is the only key stored in a per-device section.
const ChannelKey = "Channel"

// Global setting keys.
const (
	KeySliderOrientation     = "SliderOrientation"
	KeyDisplayTextVolume     = "DisplayTextVolume"
	KeyTextVolumePosition    = "TextVolumePosition"
	KeyDrawVolMeter          = "DrawVolMeter"
	KeyVolMeterPos           = "VolMeterPos"
	KeyVolMeterColor         = "VolMeterColor"
	KeySystemTheme           = "SystemTheme"
	KeyScrollStep            = "ScrollStep"
	KeyFineScrollStep        = "FineScrollStep"
	KeyMiddleClickAction     = "MiddleClickAction"
	KeyCustomCommand         = "CustomCommand"
	KeyVolumeControlCommand  = "VolumeControlCommand"
	KeyNormalizeVolume       = "NormalizeVolume"
	KeyAlsaCard              = "AlsaCard"
	KeyEnableHotKeys         = "EnableHotKeys"
	KeyHotkeyVolumeStep      = "HotkeyVolumeStep"
	KeyVolMuteKey            = "VolMuteKey"
	KeyVolUpKey              = "VolUpKey"
	KeyVolDownKey            = "VolDownKey"
	KeyVolMuteMods           = "VolMuteMods"
	KeyVolUpMods             = "VolUpMods"
	KeyVolDownMods           = "VolDownMods"
	KeyEnableNotifications   = "EnableNotifications"
	KeyHotkeyNotifications   = "HotkeyNotifications"
	KeyMouseNotifications    = "MouseNotifications"
	KeyPopupNotifications    = "PopupNotifications"
	KeyExternalNotifications = "ExternalNotifications"
	KeyNotificationTimeout   = "NotificationTimeout"
)

// KeySpec describes one global setting the preferences surface can edit.
type KeySpec struct {
	Key     string
	Kind    Kind
	Default Value
}

// DefaultMeterColor is used whenever the stored meter color is unusable.
var DefaultMeterColor = [3]float64{0.909803921569, 0.43137254902, 0.43137254902}

// Schema lists every editable global key with its read default. The read
// defaults match what the tray applies when a key is absent; they are not
// necessarily the values in the embedded default document.
var Schema = []KeySpec{
	{KeySliderOrientation, KindString, StringValue("vertical")},
	{KeyDisplayTextVolume, KindBool, BoolValue(false)},
	{KeyTextVolumePosition, KindInt, IntValue(0)},
	{KeyDrawVolMeter, KindBool, BoolValue(false)},
	{KeyVolMeterPos, KindInt, IntValue(0)},
	{KeyVolMeterColor, KindDoubleList, DoubleListValue(DefaultMeterColor[:])},
	{KeySystemTheme, KindBool, BoolValue(false)},
	{KeyScrollStep, KindInt, IntValue(5)},
	{KeyFineScrollStep, KindInt, IntValue(1)},
	{KeyMiddleClickAction, KindInt, IntValue(0)},
	{KeyCustomCommand, KindString, StringValue("")},
	{KeyVolumeControlCommand, KindString, StringValue("")},
	{KeyNormalizeVolume, KindBool, BoolValue(false)},
	{KeyAlsaCard, KindString, StringValue("default")},
	{KeyEnableHotKeys, KindBool, BoolValue(false)},
	{KeyHotkeyVolumeStep, KindInt, IntValue(1)},
	{KeyVolMuteKey, KindInt, IntValue(-1)},
	{KeyVolUpKey, KindInt, IntValue(-1)},
	{KeyVolDownKey, KindInt, IntValue(-1)},
	{KeyVolMuteMods, KindInt, IntValue(0)},
	{KeyVolUpMods, KindInt, IntValue(0)},
	{KeyVolDownMods, KindInt, IntValue(0)},
	{KeyEnableNotifications, KindBool, BoolValue(false)},
	{KeyHotkeyNotifications, KindBool, BoolValue(true)},
	{KeyMouseNotifications, KindBool, BoolValue(true)},
	{KeyPopupNotifications, KindBool, BoolValue(false)},
	{KeyExternalNotifications, KindBool, BoolValue(false)},
	{KeyNotificationTimeout, KindInt, IntValue(1500)},
}

// LookupSpec returns the schema entry for a global key.
func LookupSpec(key string) (KeySpec, bool) {
	for _, spec := range Schema {
		if spec.Key == key {
			return spec, true
		}
	}
	return KeySpec{}, false
}

// HotkeyBinding is one persisted global shortcut. Keycode is -1 when unbound.
type HotkeyBinding struct {
	Keycode int
	Mods    uint32
}

// Hotkeys groups everything the hotkey registrar needs.
type Hotkeys struct {
	Enabled  bool
	Step     int
	Bindings map[action.Action]HotkeyBinding
}

// Notifications groups the notification toggles.
type Notifications struct {
	Enabled   bool
	Hotkey    bool
	Mouse     bool
	Popup     bool
	External  bool
	TimeoutMS int
}

// Settings is the effective, fully defaulted view collaborators read.
type Settings struct {
	SliderOrientation  string
	DisplayTextVolume  bool
	TextVolumePosition int
	DrawVolMeter       bool
	VolMeterPos        int
	VolMeterColor      [3]float64
	SystemTheme        bool
	ScrollStep         int
	FineScrollStep     int
	MiddleClickAction  int
	CustomCommand      string
	NormalizeVolume    bool
	Device             string
	Channel            string
	Hotkeys            Hotkeys
	Notifications      Notifications
}

// Settings resolves every schema key against its read default.
func (s *Store) Settings() Settings {
	out := Settings{
		SliderOrientation:  getDefault[string](s, KeySliderOrientation),
		DisplayTextVolume:  getDefault[bool](s, KeyDisplayTextVolume),
		TextVolumePosition: getDefault[int](s, KeyTextVolumePosition),
		DrawVolMeter:       getDefault[bool](s, KeyDrawVolMeter),
		VolMeterPos:        getDefault[int](s, KeyVolMeterPos),
		VolMeterColor:      s.MeterColor(),
		SystemTheme:        getDefault[bool](s, KeySystemTheme),
		ScrollStep:         getDefault[int](s, KeyScrollStep),
		FineScrollStep:     getDefault[int](s, KeyFineScrollStep),
		MiddleClickAction:  getDefault[int](s, KeyMiddleClickAction),
		CustomCommand:      getDefault[string](s, KeyCustomCommand),
		NormalizeVolume:    getDefault[bool](s, KeyNormalizeVolume),
		Device:             getDefault[string](s, KeyAlsaCard),
		Hotkeys: Hotkeys{
			Enabled:  getDefault[bool](s, KeyEnableHotKeys),
			Step:     getDefault[int](s, KeyHotkeyVolumeStep),
			Bindings: make(map[action.Action]HotkeyBinding, len(action.All)),
		},
		Notifications: Notifications{
			Enabled:   getDefault[bool](s, KeyEnableNotifications),
			Hotkey:    getDefault[bool](s, KeyHotkeyNotifications),
			Mouse:     getDefault[bool](s, KeyMouseNotifications),
			Popup:     getDefault[bool](s, KeyPopupNotifications),
			External:  getDefault[bool](s, KeyExternalNotifications),
			TimeoutMS: getDefault[int](s, KeyNotificationTimeout),
		},
	}
	out.Channel = s.Channel(out.Device)
	for _, a := range action.All {
		out.Hotkeys.Bindings[a] = HotkeyBinding{
			Keycode: getDefault[int](s, a.KeycodeKey()),
			Mods:    uint32(getDefault[int](s, a.ModsKey())),
		}
	}
	return out
}

func getDefault[T Setting](s *Store, key string) T {
	var def T
	if spec, ok := LookupSpec(key); ok {
		def, _ = As[T](spec.Default)
	}
	return Get(s, GlobalSection, key, def)
}
