package config

import (
	_ "embed"
	"errors"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

const maxConfigFileBytes int64 = 1 << 20 // 1MB

//go:embed defaults.yaml
var defaultDocument []byte

// Store is the in-memory settings document for the process lifetime.
// Reads never fail: absent keys, kind mismatches and a failed Load all fall
// back to the caller's default.
type Store struct {
	mu       sync.RWMutex
	path     string
	sections map[string]map[string]Value
}

// NewStore creates an empty store bound to path. An empty path resolves to
// DefaultPath().
func NewStore(path string) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &Store{
		path:     path,
		sections: map[string]map[string]Value{},
	}
}

// Path returns the file Load reads and Save writes.
func (s *Store) Path() string { return s.path }

// Load replaces the store contents with the config file, or with the embedded
// default document when the file does not exist. On any read or parse error
// the store is left empty and a *LoadError is returned.
func (s *Store) Load() error {
	raw, err := readLimitedFile(s.path, maxConfigFileBytes)
	source := s.path
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.replace(nil)
			slog.Warn("[WARN-CONFIG] failed to read config, continuing with defaults", "path", s.path, "error", err)
			return &LoadError{Path: s.path, Err: err}
		}
		slog.Debug("[DEBUG-CONFIG] config file missing, loading built-in defaults", "path", s.path)
		raw = defaultDocument
		source = ""
	}
	return s.loadDocument(raw, source)
}

// LoadDefaults replaces the store contents with the embedded default document.
func (s *Store) LoadDefaults() error {
	return s.loadDocument(defaultDocument, "")
}

func (s *Store) loadDocument(raw []byte, source string) error {
	sections, err := decodeDocument(raw)
	if err != nil {
		s.replace(nil)
		slog.Warn("[WARN-CONFIG] failed to parse config, continuing with defaults", "path", source, "error", err)
		return &LoadError{Path: source, Err: err}
	}
	s.replace(sections)
	return nil
}

func (s *Store) replace(sections map[string]map[string]Value) {
	if sections == nil {
		sections = map[string]map[string]Value{}
	}
	s.mu.Lock()
	s.sections = sections
	s.mu.Unlock()
}

// Lookup returns the raw stored value.
func (s *Store) Lookup(section, key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sections[section][key]
	return v, ok
}

// SetValue stages v in memory. Invalid values are ignored.
func (s *Store) SetValue(section, key string, v Value) {
	if !v.Valid() || section == "" || key == "" {
		slog.Warn("[WARN-CONFIG] ignoring invalid setting write", "section", section, "key", key, "kind", v.Kind())
		return
	}
	if v.kind == KindDoubleList {
		v.list = slices.Clone(v.list)
	}
	// The YAML encoder refuses invalid UTF-8, which would fail every later Save.
	if !utf8.ValidString(section) || !utf8.ValidString(key) || (v.kind == KindString && !utf8.ValidString(v.s)) {
		slog.Warn("[WARN-CONFIG] replacing invalid UTF-8 in setting write", "section", section, "key", key)
		section = strings.ToValidUTF8(section, string(utf8.RuneError))
		key = strings.ToValidUTF8(key, string(utf8.RuneError))
		if v.kind == KindString {
			v.s = strings.ToValidUTF8(v.s, string(utf8.RuneError))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[section]
	if !ok {
		sec = map[string]Value{}
		s.sections[section] = sec
	}
	sec[key] = v
}

// Get returns the value stored under (section, key) as T, or def.
func Get[T Setting](s *Store, section, key string, def T) T {
	v, ok := s.Lookup(section, key)
	if !ok {
		return def
	}
	out, ok := As[T](v)
	if !ok {
		return def
	}
	return out
}

// Set stages v under (section, key). Nothing is written until Save.
func Set[T Setting](s *Store, section, key string, v T) {
	s.SetValue(section, key, ValueOf(v))
}

// Sections returns every section name, global first, the rest sorted.
func (s *Store) Sections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSectionNames(s.sections)
}

// Keys returns the sorted keys of one section.
func (s *Store) Keys(section string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.sections[section]))
}

// Clone returns an independent copy bound to the same path.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dst := &Store{path: s.path, sections: make(map[string]map[string]Value, len(s.sections))}
	for name, sec := range s.sections {
		cp := make(map[string]Value, len(sec))
		for k, v := range sec {
			if v.kind == KindDoubleList {
				v.list = slices.Clone(v.list)
			}
			cp[k] = v
		}
		dst.sections[name] = cp
	}
	return dst
}

func validDeviceSection(device string) bool {
	return strings.TrimSpace(device) != "" && device != GlobalSection
}

// LookupChannel returns the channel stored for device.
func (s *Store) LookupChannel(device string) (string, bool) {
	if !validDeviceSection(device) {
		return "", false
	}
	v, ok := s.Lookup(device, ChannelKey)
	if !ok {
		return "", false
	}
	return As[string](v)
}

// Channel returns the channel stored for device, or "" when unset.
func (s *Store) Channel(device string) string {
	ch, _ := s.LookupChannel(device)
	return ch
}

// SetChannel stages the channel for device.
func (s *Store) SetChannel(device, channel string) {
	if !validDeviceSection(device) {
		slog.Warn("[WARN-CONFIG] ignoring channel for reserved or empty device name", "device", device)
		return
	}
	Set(s, device, ChannelKey, channel)
}

// Devices returns every device section that stores a channel.
func (s *Store) Devices() []string {
	var out []string
	for _, name := range s.Sections() {
		if _, ok := s.LookupChannel(name); ok {
			out = append(out, name)
		}
	}
	return out
}

// MeterColor returns the volume meter RGB triple, each component clamped to
// [0,1]. A missing, short or non-numeric list yields DefaultMeterColor.
func (s *Store) MeterColor() [3]float64 {
	list := Get[[]float64](s, GlobalSection, KeyVolMeterColor, nil)
	if len(list) < 3 {
		return DefaultMeterColor
	}
	var out [3]float64
	for i := range out {
		if math.IsNaN(list[i]) {
			return DefaultMeterColor
		}
		out[i] = clamp01(list[i])
	}
	return out
}

// SetMeterColor stages the volume meter color.
func (s *Store) SetMeterColor(rgb [3]float64) {
	Set(s, GlobalSection, KeyVolMeterColor, rgb[:])
}

// Save writes the whole document to Path, replacing the previous file.
// Failures are returned as *SaveError and leave memory state untouched.
func (s *Store) Save() error {
	s.mu.RLock()
	raw, err := encodeDocument(s.sections)
	s.mu.RUnlock()
	if err != nil {
		return &SaveError{Path: s.path, Op: "marshal", Err: err}
	}
	if err := atomicWrite(s.path, raw); err != nil {
		slog.Warn("[WARN-CONFIG] failed to save config", "path", s.path, "error", err)
		return err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", s.path)
	return nil
}
