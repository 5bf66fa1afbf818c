package prefs

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"voltray/internal/accel"
	"voltray/internal/action"
	"voltray/internal/config"
)

// letterKeymap gives every lowercase letter the keycode of its byte value;
// uppercase letters share the keycode with Shift consumed.
type letterKeymap struct{}

func (letterKeymap) Translate(keycode int, state accel.Modifier, _ int) (string, accel.Modifier, error) {
	if keycode < 'a' || keycode > 'z' {
		return "", 0, accel.ErrUnmappedKey
	}
	if state&accel.ShiftMask != 0 {
		return string(rune(keycode - 'a' + 'A')), accel.ShiftMask, nil
	}
	return string(rune(keycode)), 0, nil
}

func (letterKeymap) Keycode(key string) (int, bool) {
	if len(key) != 1 {
		return 0, false
	}
	switch c := key[0]; {
	case c >= 'a' && c <= 'z':
		return int(c), true
	case c >= 'A' && c <= 'Z':
		return int(c - 'A' + 'a'), true
	}
	return 0, false
}

func (letterKeymap) KeyName(keycode int) (string, bool) {
	if keycode < 'a' || keycode > 'z' {
		return "", false
	}
	return string(rune(keycode)), true
}

func newTestCoordinator(t *testing.T) (*Coordinator, *config.Store) {
	t.Helper()
	store := config.NewStore(filepath.Join(t.TempDir(), "voltray", "config.yaml"))
	if err := store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return NewCoordinator(store, accel.NewCodec(letterKeymap{})), store
}

func openTx(t *testing.T, c *Coordinator) *Transaction {
	t.Helper()
	tx, err := c.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return tx
}

func TestFreshUserScrollStepScenario(t *testing.T) {
	c, store := newTestCoordinator(t)
	if got := config.Get(store, config.GlobalSection, config.KeyScrollStep, 0); got != 5 {
		t.Fatalf("ScrollStep = %d, want 5", got)
	}
	if got := config.Get(store, config.GlobalSection, config.KeySliderOrientation, ""); got != "vertical" {
		t.Fatalf("SliderOrientation = %q, want vertical", got)
	}

	tx := openTx(t, c)
	if err := tx.Stage(config.GlobalSection, config.KeyScrollStep, config.IntValue(10)); err != nil {
		t.Fatal(err)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !cs.Has(ScrollRefresh) || cs.Has(AudioReinit) || cs.Has(HotkeyRebind) {
		t.Fatalf("ChangeSet = %v", cs)
	}

	reloaded := config.NewStore(store.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := config.Get(reloaded, config.GlobalSection, config.KeyScrollStep, 0); got != 10 {
		t.Fatalf("reloaded ScrollStep = %d, want 10", got)
	}
}

func TestCommitMeterColorOnlyIsViewRefresh(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	if err := tx.StageMeterColor([3]float64{0.1, 0.2, 1.5}); err != nil {
		t.Fatal(err)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Has(ViewRefresh) || cs.Has(AudioReinit) || cs.Has(HotkeyRebind) {
		t.Fatalf("ChangeSet = %v, want ViewRefresh only", cs)
	}
	if got := store.MeterColor(); got != [3]float64{0.1, 0.2, 1} {
		t.Fatalf("MeterColor() = %v", got)
	}
}

func TestCaptureVolumeUpScenario(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	if got := tx.Accelerator(action.VolumeUp); got != accel.None {
		t.Fatalf("initial accelerator = %q, want None", got)
	}

	if err := tx.StageAccelerator(action.VolumeUp, "A"); err != nil {
		t.Fatal(err)
	}
	if got := tx.Accelerator(action.VolumeUp); got != "A" {
		t.Fatalf("staged accelerator = %q", got)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Has(HotkeyRebind) {
		t.Fatalf("ChangeSet = %v, want HotkeyRebind", cs)
	}
	if got := config.Get(store, config.GlobalSection, config.KeyVolUpKey, -1); got != 'a' {
		t.Fatalf("VolUpKey = %d, want %d", got, 'a')
	}
	if got := config.Get(store, config.GlobalSection, config.KeyVolUpMods, -1); got != 0 {
		t.Fatalf("VolUpMods = %d, want 0", got)
	}
}

func TestAcceleratorRestagedToSameBindingIsNoChange(t *testing.T) {
	c, store := newTestCoordinator(t)
	config.Set(store, config.GlobalSection, config.KeyVolMuteKey, int('m'))
	config.Set(store, config.GlobalSection, config.KeyVolMuteMods, int(accel.ControlMask))

	tx := openTx(t, c)
	if got := tx.Accelerator(action.Mute); got != "<Control>m" {
		t.Fatalf("snapshot accelerator = %q", got)
	}
	if err := tx.StageAccelerator(action.Mute, "<Primary>m"); err != nil {
		t.Fatal(err)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Empty() {
		t.Fatalf("ChangeSet = %v, want empty", cs)
	}
}

func TestStageNoneAndMalformedAccelerators(t *testing.T) {
	c, store := newTestCoordinator(t)
	config.Set(store, config.GlobalSection, config.KeyVolMuteKey, int('m'))
	config.Set(store, config.GlobalSection, config.KeyVolDownKey, int('d'))

	tx := openTx(t, c)
	if err := tx.StageAccelerator(action.Mute, accel.None); err != nil {
		t.Fatal(err)
	}
	if err := tx.StageAccelerator(action.VolumeDown, "<Bogus>d"); err != nil {
		t.Fatal(err)
	}
	if got := tx.Accelerator(action.VolumeDown); got != accel.None {
		t.Fatalf("malformed accelerator staged as %q", got)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Has(HotkeyRebind) {
		t.Fatalf("ChangeSet = %v", cs)
	}
	for _, key := range []string{config.KeyVolMuteKey, config.KeyVolDownKey} {
		if got := config.Get(store, config.GlobalSection, key, 0); got != -1 {
			t.Fatalf("%s = %d, want -1", key, got)
		}
	}
}

func TestUnmappedAcceleratorIsStoredUnbound(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	if err := tx.StageAccelerator(action.VolumeUp, "<Control>F5"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Commit(tx); err != nil {
		t.Fatal(err)
	}
	if got := config.Get(store, config.GlobalSection, config.KeyVolUpKey, 0); got != -1 {
		t.Fatalf("VolUpKey = %d, want -1", got)
	}
}

func TestCommitDomains(t *testing.T) {
	tests := []struct {
		name  string
		stage func(tx *Transaction) error
		want  []Domain
	}{
		{
			name:  "unchanged value",
			stage: func(tx *Transaction) error { return tx.Stage(config.GlobalSection, config.KeyScrollStep, config.IntValue(5)) },
		},
		{
			name: "absent key staged to its read default",
			stage: func(tx *Transaction) error {
				return tx.Stage(config.GlobalSection, config.KeyNotificationTimeout, config.IntValue(1500))
			},
		},
		{
			name:  "device",
			stage: func(tx *Transaction) error { return tx.Stage(config.GlobalSection, config.KeyAlsaCard, config.StringValue("hw:1")) },
			want:  []Domain{AudioReinit},
		},
		{
			name:  "channel",
			stage: func(tx *Transaction) error { return tx.StageChannel("default", "PCM") },
			want:  []Domain{AudioReinit},
		},
		{
			name:  "hotkeys enabled",
			stage: func(tx *Transaction) error { return tx.Stage(config.GlobalSection, config.KeyEnableHotKeys, config.BoolValue(true)) },
			want:  []Domain{HotkeyRebind},
		},
		{
			name:  "hotkey step",
			stage: func(tx *Transaction) error { return tx.Stage(config.GlobalSection, config.KeyHotkeyVolumeStep, config.IntValue(3)) },
			want:  []Domain{HotkeyRebind},
		},
		{
			name: "notifications",
			stage: func(tx *Transaction) error {
				return tx.Stage(config.GlobalSection, config.KeyNotificationTimeout, config.IntValue(3000))
			},
			want: []Domain{NotificationRefresh},
		},
		{
			name: "view and scroll",
			stage: func(tx *Transaction) error {
				return errors.Join(
					tx.Stage(config.GlobalSection, config.KeySliderOrientation, config.StringValue("horizontal")),
					tx.Stage(config.GlobalSection, config.KeyFineScrollStep, config.IntValue(2)),
				)
			},
			want: []Domain{ScrollRefresh, ViewRefresh},
		},
		{
			name:  "no-domain key",
			stage: func(tx *Transaction) error { return tx.Stage(config.GlobalSection, config.KeyMiddleClickAction, config.IntValue(2)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator(t)
			tx := openTx(t, c)
			if err := tt.stage(tx); err != nil {
				t.Fatal(err)
			}
			cs, err := c.Commit(tx)
			if err != nil {
				t.Fatal(err)
			}
			if got := cs.Domains(); !slices.Equal(got, tt.want) {
				t.Fatalf("Domains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecondOpenFails(t *testing.T) {
	c, _ := newTestCoordinator(t)
	tx := openTx(t, c)
	if _, err := c.Open(); !errors.Is(err, ErrTransactionOpen) {
		t.Fatalf("second Open() error = %v, want ErrTransactionOpen", err)
	}
	if err := c.Discard(tx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Open(); err != nil {
		t.Fatalf("Open() after Discard error = %v", err)
	}
}

func TestDiscardLeavesStoreUntouched(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	if err := tx.Stage(config.GlobalSection, config.KeyScrollStep, config.IntValue(42)); err != nil {
		t.Fatal(err)
	}
	if err := tx.StageAccelerator(action.Mute, "q"); err != nil {
		t.Fatal(err)
	}
	if err := c.Discard(tx); err != nil {
		t.Fatal(err)
	}
	if got := config.Get(store, config.GlobalSection, config.KeyScrollStep, 0); got != 5 {
		t.Fatalf("ScrollStep = %d after discard", got)
	}
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("discard wrote the config file: %v", err)
	}
}

func TestClosedTransactionIsRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)
	tx := openTx(t, c)
	if _, err := c.Commit(tx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Commit(tx); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("second Commit() error = %v", err)
	}
	if err := c.Discard(tx); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("Discard() after Commit error = %v", err)
	}
	if err := tx.Stage(config.GlobalSection, config.KeyScrollStep, config.IntValue(1)); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("Stage() after Commit error = %v", err)
	}
	if err := tx.StageAccelerator(action.Mute, "a"); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("StageAccelerator() after Commit error = %v", err)
	}

	other, _ := newTestCoordinator(t)
	foreign := openTx(t, other)
	if _, err := c.Commit(foreign); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("Commit(foreign) error = %v", err)
	}
}

func TestStageValidation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	tx := openTx(t, c)
	if err := tx.Stage(config.GlobalSection, config.KeyScrollStep, config.StringValue("ten")); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("Stage(wrong kind) error = %v", err)
	}
	if err := tx.Stage(config.GlobalSection, "Custom", config.Value{}); err == nil {
		t.Fatal("Stage(invalid value) error = nil")
	}
	if err := tx.StageChannel(config.GlobalSection, "Master"); err == nil {
		t.Fatal("StageChannel(global) error = nil")
	}
	if err := tx.StageAccelerator(action.None, "a"); !errors.Is(err, action.ErrUnknown) {
		t.Fatalf("StageAccelerator(None) error = %v", err)
	}
	if err := tx.Stage(config.GlobalSection, config.KeyCustomCommand, config.StringValue("amixer \xe9")); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Stage(invalid UTF-8 value) error = %v", err)
	}
	if err := tx.StageChannel("hw:\xff", "Master"); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("StageChannel(invalid UTF-8 device) error = %v", err)
	}
}

func TestStageMeterColorReplacesNaN(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	if err := tx.StageMeterColor([3]float64{math.NaN(), 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Commit(tx); err != nil {
		t.Fatal(err)
	}
	want := [3]float64{config.DefaultMeterColor[0], 0.2, 0.3}
	if got := store.MeterColor(); got != want {
		t.Fatalf("MeterColor() = %v, want %v", got, want)
	}

	tx = openTx(t, c)
	if err := tx.StageMeterColor([3]float64{math.NaN(), 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	cs, err := c.Commit(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Empty() {
		t.Fatalf("re-staging the same NaN color = %v, want no change", cs)
	}
}

func TestTransactionValueReadsStagedOverSnapshot(t *testing.T) {
	c, store := newTestCoordinator(t)
	tx := openTx(t, c)
	config.Set(store, config.GlobalSection, config.KeyScrollStep, 7)

	v, ok := tx.Value(config.GlobalSection, config.KeyScrollStep)
	if got, _ := config.As[int](v); !ok || got != 5 {
		t.Fatalf("snapshot ScrollStep = %v, want 5", v)
	}
	if err := tx.Stage(config.GlobalSection, config.KeyScrollStep, config.IntValue(9)); err != nil {
		t.Fatal(err)
	}
	v, _ = tx.Value(config.GlobalSection, config.KeyScrollStep)
	if got, _ := config.As[int](v); got != 9 {
		t.Fatalf("staged ScrollStep = %v, want 9", v)
	}
	if _, ok := tx.Value("hw:9", config.ChannelKey); ok {
		t.Fatal("unknown device channel reported present")
	}
}

func TestCommitSaveFailureKeepsMemoryAndReturnsChangeSet(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "voltray")
	if err := os.WriteFile(blocker, []byte("file"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := config.NewStore(filepath.Join(blocker, "config.yaml"))
	if err := store.LoadDefaults(); err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(store, accel.NewCodec(letterKeymap{}))

	tx := openTx(t, c)
	if err := tx.Stage(config.GlobalSection, config.KeyAlsaCard, config.StringValue("hw:2")); err != nil {
		t.Fatal(err)
	}
	cs, err := c.Commit(tx)
	var saveErr *config.SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("Commit() error = %v, want *config.SaveError", err)
	}
	if !cs.Has(AudioReinit) {
		t.Fatalf("ChangeSet = %v, want AudioReinit", cs)
	}
	if got := config.Get(store, config.GlobalSection, config.KeyAlsaCard, ""); got != "hw:2" {
		t.Fatalf("AlsaCard = %q, want in-memory hw:2", got)
	}
	if _, err := c.Open(); err != nil {
		t.Fatalf("Open() after failed save error = %v", err)
	}
}
