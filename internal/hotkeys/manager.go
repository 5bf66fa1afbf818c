// Package hotkeys arms and disarms the three global volume shortcuts from
// persisted settings.
package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"voltray/internal/accel"
	"voltray/internal/action"
	"voltray/internal/config"
)

// Backend registers shortcuts with the platform.
type Backend interface {
	Register(b Binding) error
	Unregister(b Binding) error
}

// Manager owns the set of registered shortcuts.
type Manager struct {
	mu        sync.Mutex
	backend   Backend
	onTrigger func(a action.Action, step int)
	active    []Binding
	step      int
}

// NewManager creates a manager. A nil backend validates and records bindings
// but never registers them with the platform.
func NewManager(backend Backend, onTrigger func(a action.Action, step int)) *Manager {
	return &Manager{backend: backend, onTrigger: onTrigger}
}

// Apply replaces the registered shortcuts with the ones in h. When hotkeys
// are disabled everything is unregistered. Bindings the backend refuses are
// skipped and reported together in the returned error; the others stay armed.
func (m *Manager) Apply(h config.Hotkeys) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stopErr := m.stopLocked()
	m.step = max(h.Step, 1)
	if !h.Enabled {
		slog.Debug("[DEBUG-HOTKEY] hotkeys disabled, all shortcuts released")
		return stopErr
	}

	if m.backend == nil {
		slog.Warn("[WARN-HOTKEY] global hotkeys are not supported on this platform; bindings validated but will never fire")
	}

	var failed []error
	for _, a := range action.All {
		hb, ok := h.Bindings[a]
		if !ok || hb.Keycode < 0 {
			continue
		}
		b := Binding{Action: a, Keycode: hb.Keycode, Mods: accel.Modifier(hb.Mods) & accel.DefaultModMask}
		if m.backend != nil {
			if err := m.backend.Register(b); err != nil {
				slog.Warn("[WARN-HOTKEY] could not grab hotkey", "action", a, "keycode", b.Keycode, "mods", b.Mods, "error", err)
				failed = append(failed, fmt.Errorf("%s: %w", a.Label(), err))
				continue
			}
		}
		m.active = append(m.active, b)
	}
	if len(failed) > 0 {
		return errors.Join(stopErr, fmt.Errorf("could not grab the following hotkeys: %w", errors.Join(failed...)))
	}
	return stopErr
}

// Stop unregisters every shortcut.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	active := m.active
	// Clear first so Active observes an idle manager even if a release fails.
	m.active = nil
	if m.backend == nil {
		return nil
	}
	var errs []error
	for _, b := range active {
		if err := m.backend.Unregister(b); err != nil {
			slog.Warn("[WARN-HOTKEY] unregister failed", "action", b.Action, "keycode", b.Keycode, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active returns the armed bindings in action order.
func (m *Manager) Active() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.active)
}

// Trigger dispatches a platform key event to the matching binding's action.
// It reports whether a binding matched.
func (m *Manager) Trigger(keycode int, state accel.Modifier) bool {
	m.mu.Lock()
	var hit *Binding
	for i := range m.active {
		if m.active[i].matches(keycode, state) {
			b := m.active[i]
			hit = &b
			break
		}
	}
	step, onTrigger := m.step, m.onTrigger
	m.mu.Unlock()

	if hit == nil {
		return false
	}
	if onTrigger != nil {
		onTrigger(hit.Action, step)
	}
	return true
}
