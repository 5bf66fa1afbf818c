package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"voltray/internal/accel"
	"voltray/internal/action"
	"voltray/internal/capture"
	"voltray/internal/prefs"
)

// Open starts a preference transaction.
func (a *App) Open() (*prefs.Transaction, error) {
	return a.coordinator.Open()
}

func (a *App) Discard(tx *prefs.Transaction) error {
	return a.coordinator.Discard(tx)
}

// Commit persists tx and dispatches the resulting ChangeSet. When the save
// fails the in-memory settings are already updated, so collaborators are
// still notified and both errors are returned.
func (a *App) Commit(tx *prefs.Transaction) (prefs.ChangeSet, error) {
	cs, err := a.coordinator.Commit(tx)
	if err != nil && cs.Empty() {
		return cs, err
	}
	return cs, errors.Join(err, a.apply("commit", cs))
}

// Reload re-reads the config file and dispatches whatever changed relative
// to the previous in-memory state.
func (a *App) Reload() (prefs.ChangeSet, error) {
	before := a.store.Clone()
	loadErr := a.Load()
	cs := prefs.Diff(before, a.store)
	return cs, errors.Join(loadErr, a.apply("reload", cs))
}

// Reset replaces every setting with the built-in defaults and saves.
func (a *App) Reset() (prefs.ChangeSet, error) {
	before := a.store.Clone()
	if err := a.store.LoadDefaults(); err != nil {
		return prefs.ChangeSet{}, err
	}
	saveErr := a.store.Save()
	cs := prefs.Diff(before, a.store)
	return cs, errors.Join(saveErr, a.apply("reset", cs))
}

// StartCapture begins recording a binding for target into tx.
func (a *App) StartCapture(target action.Action, tx *prefs.Transaction) error {
	ctl, err := a.controller()
	if err != nil {
		return err
	}
	return ctl.Start(target, tx)
}

func (a *App) controller() (*capture.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture == nil {
		return nil, errors.New("capture is not available in this mode")
	}
	return a.capture, nil
}

func (a *App) apply(source string, cs prefs.ChangeSet) error {
	if cs.Empty() {
		slog.Debug("[DEBUG-APP] nothing to apply", "source", source)
		return nil
	}
	slog.Debug("[DEBUG-APP] applying changes", "source", source, "domains", cs.String())
	err := a.dispatcher.Dispatch(cs)

	a.mu.Lock()
	feed := a.feed
	a.mu.Unlock()
	if feed != nil {
		names := make([]string, 0, 5)
		for _, d := range cs.Domains() {
			names = append(names, d.String())
		}
		feed.Broadcast(source, names)
	}
	return err
}

// registerHandlers binds each change domain to what the App can do about it.
// The tray surface and the audio backend are external, so for those the App
// reports the effective values they must pick up.
func (a *App) registerHandlers() {
	a.dispatcher.Register(prefs.ScrollRefresh, func(prefs.ChangeSet) error {
		s := a.store.Settings()
		a.reportf("scroll: step %d, fine step %d", s.ScrollStep, s.FineScrollStep)
		return nil
	})
	a.dispatcher.Register(prefs.HotkeyRebind, a.rebindHotkeys)
	a.dispatcher.Register(prefs.NotificationRefresh, func(prefs.ChangeSet) error {
		n := a.store.Settings().Notifications
		a.reportf("notifications: enabled=%t hotkey=%t mouse=%t popup=%t external=%t timeout=%dms",
			n.Enabled, n.Hotkey, n.Mouse, n.Popup, n.External, n.TimeoutMS)
		return nil
	})
	a.dispatcher.Register(prefs.ViewRefresh, func(prefs.ChangeSet) error {
		s := a.store.Settings()
		a.reportf("view: orientation=%s text=%t meter=%t color=%.3f", s.SliderOrientation, s.DisplayTextVolume, s.DrawVolMeter, s.VolMeterColor)
		return nil
	})
	a.dispatcher.Register(prefs.AudioReinit, func(prefs.ChangeSet) error {
		s := a.store.Settings()
		channel := s.Channel
		if channel == "" {
			channel = "(first playable)"
		}
		a.reportf("audio: device %s, channel %s, normalize=%t", s.Device, channel, s.NormalizeVolume)
		return nil
	})
}

func (a *App) rebindHotkeys(prefs.ChangeSet) error {
	h := a.store.Settings().Hotkeys
	parts := make([]string, 0, len(action.All))
	for _, act := range action.All {
		b := h.Bindings[act]
		parts = append(parts, fmt.Sprintf("%s=%s", act, a.codec.HardwareToCanonical(b.Keycode, accel.Modifier(b.Mods))))
	}
	a.reportf("hotkeys: enabled=%t step=%d %s", h.Enabled, h.Step, strings.Join(parts, " "))

	a.mu.Lock()
	m := a.hotkeys
	a.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Apply(h)
}
