package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"voltray/internal/testutil"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "voltray", "config.yaml"))
}

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWithoutFileUsesDefaultDocument(t *testing.T) {
	s := newStoreForTest(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := Get(s, GlobalSection, KeyScrollStep, 0); got != 5 {
		t.Fatalf("ScrollStep = %d, want 5", got)
	}
	if got := Get(s, GlobalSection, KeySliderOrientation, ""); got != "vertical" {
		t.Fatalf("SliderOrientation = %q, want vertical", got)
	}
	if got := Get(s, GlobalSection, KeyDisplayTextVolume, false); !got {
		t.Fatal("DisplayTextVolume = false, want true")
	}
	if got := Get(s, GlobalSection, KeyVolUpKey, 0); got != -1 {
		t.Fatalf("VolUpKey = %d, want -1", got)
	}
	if got := Get(s, GlobalSection, KeyAlsaCard, ""); got != "default" {
		t.Fatalf("AlsaCard = %q, want default", got)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load must not create the config file, stat err = %v", err)
	}
}

func TestRoundTripPersistence(t *testing.T) {
	s := newStoreForTest(t)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	Set(s, GlobalSection, "BoolKey", true)
	Set(s, GlobalSection, "IntKey", -42)
	Set(s, GlobalSection, "DoubleKey", 5.0)
	Set(s, GlobalSection, "FracKey", 0.125)
	Set(s, GlobalSection, "StringKey", "true")
	Set(s, GlobalSection, "EmptyKey", "")
	Set(s, GlobalSection, "ListKey", []float64{0.5, 1, 0})
	s.SetChannel("hw:0", "Master")

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded := NewStore(s.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := Get(reloaded, GlobalSection, "BoolKey", false); !got {
		t.Fatal("BoolKey did not round-trip")
	}
	if got := Get(reloaded, GlobalSection, "IntKey", 0); got != -42 {
		t.Fatalf("IntKey = %d, want -42", got)
	}
	if got := Get(reloaded, GlobalSection, "DoubleKey", 0.0); got != 5.0 {
		t.Fatalf("DoubleKey = %v, want 5", got)
	}
	if v, _ := reloaded.Lookup(GlobalSection, "DoubleKey"); v.Kind() != KindDouble {
		t.Fatalf("DoubleKey reloaded as %v, want double", v.Kind())
	}
	if got := Get(reloaded, GlobalSection, "FracKey", 0.0); got != 0.125 {
		t.Fatalf("FracKey = %v, want 0.125", got)
	}
	if got := Get(reloaded, GlobalSection, "StringKey", ""); got != "true" {
		t.Fatalf("StringKey = %q, want %q", got, "true")
	}
	if got := Get(reloaded, GlobalSection, "EmptyKey", "fallback"); got != "" {
		t.Fatalf("EmptyKey = %q, want empty", got)
	}
	if got := Get[[]float64](reloaded, GlobalSection, "ListKey", nil); !slices.Equal(got, []float64{0.5, 1, 0}) {
		t.Fatalf("ListKey = %v", got)
	}
	if got := reloaded.Channel("hw:0"); got != "Master" {
		t.Fatalf("Channel(hw:0) = %q, want Master", got)
	}
	// Values from the default document survive the save.
	if got := Get(reloaded, GlobalSection, KeyScrollStep, 0); got != 5 {
		t.Fatalf("ScrollStep = %d, want 5", got)
	}
}

func TestGetReturnsDefaultForAbsentOrMismatchedKey(t *testing.T) {
	s := newStoreForTest(t)
	Set(s, GlobalSection, "Flag", true)

	if got := Get(s, GlobalSection, "Missing", 7); got != 7 {
		t.Fatalf("absent int = %d, want 7", got)
	}
	if got := Get(s, GlobalSection, "Flag", 3); got != 3 {
		t.Fatalf("bool read as int = %d, want default 3", got)
	}
	if got := Get(s, GlobalSection, "Flag", "x"); got != "x" {
		t.Fatalf("bool read as string = %q, want default", got)
	}
	if got := Get(s, "other", "Flag", false); got {
		t.Fatal("key in wrong section must fall back to default")
	}
}

func TestGetWidensIntToDouble(t *testing.T) {
	s := newStoreForTest(t)
	Set(s, GlobalSection, KeyScrollStep, 10)
	if got := Get(s, GlobalSection, KeyScrollStep, 0.0); got != 10.0 {
		t.Fatalf("int read as double = %v, want 10", got)
	}
	Set(s, GlobalSection, "Ratio", 2.5)
	if got := Get(s, GlobalSection, "Ratio", 1); got != 1 {
		t.Fatalf("double read as int = %d, want default 1", got)
	}
}

func TestLoadMalformedFileLeavesEmptyStore(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "global: [unterminated\n"},
		{name: "top level sequence", content: "- a\n- b\n"},
		{name: "section is scalar", content: "global: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStoreForTest(t)
			Set(s, GlobalSection, KeyScrollStep, 99)
			writeConfigFile(t, s.Path(), tt.content)

			err := s.Load()
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Load() error = %v, want *LoadError", err)
			}
			if loadErr.Path != s.Path() {
				t.Fatalf("LoadError.Path = %q, want %q", loadErr.Path, s.Path())
			}
			// Prior state is replaced, not merged.
			if got := Get(s, GlobalSection, KeyScrollStep, 5); got != 5 {
				t.Fatalf("ScrollStep after failed load = %d, want default 5", got)
			}
			if got := Get(s, GlobalSection, KeySliderOrientation, "horizontal"); got != "horizontal" {
				t.Fatalf("SliderOrientation after failed load = %q, want caller default", got)
			}
			if got := s.MeterColor(); got != DefaultMeterColor {
				t.Fatalf("MeterColor after failed load = %v", got)
			}
			if got := Get(s, GlobalSection, KeyDrawVolMeter, true); !got {
				t.Fatal("DrawVolMeter after failed load = false, want caller default true")
			}
			if got := Get(s, GlobalSection, "Ratio", 0.75); got != 0.75 {
				t.Fatalf("double after failed load = %v, want caller default 0.75", got)
			}
			if got := Get(s, GlobalSection, KeyVolMeterColor, []float64{0.1, 0.2}); !slices.Equal(got, []float64{0.1, 0.2}) {
				t.Fatalf("raw VolMeterColor after failed load = %v, want caller default", got)
			}
		})
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	s := newStoreForTest(t)
	writeConfigFile(t, s.Path(), "global:\n  Pad: \""+strings.Repeat("x", int(maxConfigFileBytes))+"\"\n")

	var loadErr *LoadError
	if err := s.Load(); !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want *LoadError", err)
	}
}

func TestLoadSkipsUnsupportedValues(t *testing.T) {
	s := newStoreForTest(t)
	writeConfigFile(t, s.Path(), strings.Join([]string{
		"global:",
		"  ScrollStep: 8",
		"  Nested: {a: 1}",
		"  Mixed: [1, two]",
		"  CustomCommand:",
		"hw:1:",
		"  Channel: PCM",
		"empty:",
		"",
	}, "\n"))

	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Get(s, GlobalSection, KeyScrollStep, 0); got != 8 {
		t.Fatalf("ScrollStep = %d, want 8", got)
	}
	if _, ok := s.Lookup(GlobalSection, "Nested"); ok {
		t.Fatal("nested mapping must be dropped")
	}
	if _, ok := s.Lookup(GlobalSection, "Mixed"); ok {
		t.Fatal("non-numeric list must be dropped")
	}
	if got := Get(s, GlobalSection, KeyCustomCommand, "x"); got != "" {
		t.Fatalf("null value = %q, want empty string", got)
	}
	if got := s.Channel("hw:1"); got != "PCM" {
		t.Fatalf("Channel(hw:1) = %q, want PCM", got)
	}
	if got := s.Sections(); !slices.Equal(got, []string{GlobalSection, "empty", "hw:1"}) {
		t.Fatalf("Sections() = %v", got)
	}
}

func TestLoadReplacesPreviousState(t *testing.T) {
	s := newStoreForTest(t)
	writeConfigFile(t, s.Path(), "global:\n  A: 1\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, s.Path(), "global:\n  B: 2\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Lookup(GlobalSection, "A"); ok {
		t.Fatal("reload must replace, not merge")
	}
	if got := Get(s, GlobalSection, "B", 0); got != 2 {
		t.Fatalf("B = %d, want 2", got)
	}
}

func TestEmptyFileLoadsEmptyStore(t *testing.T) {
	s := newStoreForTest(t)
	writeConfigFile(t, s.Path(), "")
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Sections(); len(got) != 0 {
		t.Fatalf("Sections() = %v, want none", got)
	}
}

func TestSaveCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.yaml")
	s := NewStore(path)
	Set(s, GlobalSection, KeyScrollStep, 3)

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if info.IsDir() {
		t.Fatal("config path is a directory")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "global:") {
		t.Fatalf("unexpected document:\n%s", raw)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".config.yaml.tmp.*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestSaveReportsDirectoryFailureAndKeepsMemoryState(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "voltray")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(filepath.Join(blocker, "config.yaml"))
	Set(s, GlobalSection, KeyScrollStep, 12)

	err := s.Save()
	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("Save() error = %v, want *SaveError", err)
	}
	if saveErr.Op != "mkdir" {
		t.Fatalf("SaveError.Op = %q, want mkdir", saveErr.Op)
	}
	if got := Get(s, GlobalSection, KeyScrollStep, 0); got != 12 {
		t.Fatalf("ScrollStep = %d, want in-memory value 12", got)
	}
}

func TestSaveOutputIsDeterministic(t *testing.T) {
	s := newStoreForTest(t)
	s.SetChannel("zeta", "Front")
	s.SetChannel("alpha", "Master")
	Set(s, GlobalSection, "Z", 1)
	Set(s, GlobalSection, "A", 2)

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(s.Path())
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(s.Path())
	if string(first) != string(second) {
		t.Fatalf("save output changed between runs:\n%s\n---\n%s", first, second)
	}
	text := string(first)
	if !(strings.Index(text, "global:") < strings.Index(text, "alpha:") &&
		strings.Index(text, "alpha:") < strings.Index(text, "zeta:")) {
		t.Fatalf("sections out of order:\n%s", text)
	}
}

func TestChannelRejectsReservedSection(t *testing.T) {
	s := newStoreForTest(t)
	s.SetChannel(GlobalSection, "Master")
	s.SetChannel("  ", "Master")

	if _, ok := s.Lookup(GlobalSection, ChannelKey); ok {
		t.Fatal("channel must not be written into the global section")
	}
	if got := s.Channel(GlobalSection); got != "" {
		t.Fatalf("Channel(global) = %q, want empty", got)
	}
	if got := s.Channel("unknown"); got != "" {
		t.Fatalf("Channel(unknown) = %q, want empty", got)
	}
	if got := s.Devices(); len(got) != 0 {
		t.Fatalf("Devices() = %v, want none", got)
	}
}

func TestMeterColorAlwaysReturnsThreeClampedComponents(t *testing.T) {
	tests := []struct {
		name  string
		value *Value
		want  [3]float64
	}{
		{name: "missing", value: nil, want: DefaultMeterColor},
		{name: "too short", value: testutil.Ptr(DoubleListValue([]float64{0.1, 0.2})), want: DefaultMeterColor},
		{name: "wrong kind", value: testutil.Ptr(StringValue("red")), want: DefaultMeterColor},
		{name: "nan", value: testutil.Ptr(DoubleListValue([]float64{math.NaN(), 0, 0})), want: DefaultMeterColor},
		{name: "in range", value: testutil.Ptr(DoubleListValue([]float64{0.1, 0.2, 0.3})), want: [3]float64{0.1, 0.2, 0.3}},
		{name: "clamped", value: testutil.Ptr(DoubleListValue([]float64{-1, 2, 0.5})), want: [3]float64{0, 1, 0.5}},
		{name: "extra components", value: testutil.Ptr(DoubleListValue([]float64{1, 1, 1, 0.5})), want: [3]float64{1, 1, 1}},
		{name: "infinite", value: testutil.Ptr(DoubleListValue([]float64{math.Inf(1), math.Inf(-1), 0})), want: [3]float64{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStoreForTest(t)
			if tt.value != nil {
				s.SetValue(GlobalSection, KeyVolMeterColor, *tt.value)
			}
			got := s.MeterColor()
			if got != tt.want {
				t.Fatalf("MeterColor() = %v, want %v", got, tt.want)
			}
			for i, c := range got {
				if c < 0 || c > 1 {
					t.Fatalf("component %d = %v out of range", i, c)
				}
			}
		})
	}
}

func TestSetValueIgnoresInvalidWrites(t *testing.T) {
	s := newStoreForTest(t)
	s.SetValue(GlobalSection, "K", Value{})
	s.SetValue("", "K", IntValue(1))
	s.SetValue(GlobalSection, "", IntValue(1))
	if got := s.Sections(); len(got) != 0 {
		t.Fatalf("Sections() = %v, want none", got)
	}
}

func TestSetValueSanitizesInvalidUTF8(t *testing.T) {
	s := newStoreForTest(t)
	Set(s, GlobalSection, KeyCustomCommand, "amixer \xe9")
	s.SetChannel("hw:\xff", "Mas\xfeter")

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded := NewStore(s.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Get(reloaded, GlobalSection, KeyCustomCommand, ""); got != "amixer \uFFFD" {
		t.Fatalf("CustomCommand = %q", got)
	}
	if got := reloaded.Channel("hw:\uFFFD"); got != "Mas\uFFFDter" {
		t.Fatalf("Channel = %q, devices %v", got, reloaded.Devices())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newStoreForTest(t)
	s.SetMeterColor([3]float64{0.1, 0.2, 0.3})
	cp := s.Clone()
	s.SetMeterColor([3]float64{1, 1, 1})
	Set(s, GlobalSection, "New", 1)

	if got := cp.MeterColor(); got != [3]float64{0.1, 0.2, 0.3} {
		t.Fatalf("clone MeterColor = %v", got)
	}
	if _, ok := cp.Lookup(GlobalSection, "New"); ok {
		t.Fatal("clone observed a later write")
	}
	if cp.Path() != s.Path() {
		t.Fatal("clone must keep the path")
	}
}

func TestLoadDefaultsDiscardsFileState(t *testing.T) {
	s := newStoreForTest(t)
	writeConfigFile(t, s.Path(), "global:\n  ScrollStep: 40\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadDefaults(); err != nil {
		t.Fatal(err)
	}
	if got := Get(s, GlobalSection, KeyScrollStep, 0); got != 5 {
		t.Fatalf("ScrollStep = %d, want 5", got)
	}
}

func TestSettingsAppliesReadDefaults(t *testing.T) {
	s := newStoreForTest(t)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	s.SetChannel("default", "Master")
	got := s.Settings()

	if got.ScrollStep != 5 || got.FineScrollStep != 1 {
		t.Fatalf("scroll steps = %d/%d", got.ScrollStep, got.FineScrollStep)
	}
	if got.Device != "default" || got.Channel != "Master" {
		t.Fatalf("device/channel = %q/%q", got.Device, got.Channel)
	}
	if got.Notifications.TimeoutMS != 1500 || !got.Notifications.Hotkey || !got.Notifications.Mouse {
		t.Fatalf("notifications = %+v", got.Notifications)
	}
	if got.Hotkeys.Enabled || got.Hotkeys.Step != 1 {
		t.Fatalf("hotkeys = %+v", got.Hotkeys)
	}
	for a, b := range got.Hotkeys.Bindings {
		if b.Keycode != -1 || b.Mods != 0 {
			t.Fatalf("binding %v = %+v, want unbound", a, b)
		}
	}
	if got.VolMeterColor != DefaultMeterColor {
		t.Fatalf("VolMeterColor = %v", got.VolMeterColor)
	}
}
