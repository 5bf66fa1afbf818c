package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"voltray/internal/accel"
	"voltray/internal/capture"
	"voltray/internal/config"
	"voltray/internal/hotkeys"
	"voltray/internal/prefs"
)

// changeFeed receives every dispatched ChangeSet. *wsserver.Hub implements it.
type changeFeed interface {
	Broadcast(source string, domains []string) uint64
}

// App wires the preferences core together: the config store, the accelerator
// codec, the transaction coordinator and the change dispatcher, plus the
// single capture controller and the hotkey registrar.
//
// Lock ordering: a.mu is never held while calling into the coordinator,
// the controller or the dispatcher.
type App struct {
	store       *config.Store
	codec       *accel.Codec
	coordinator *prefs.Coordinator
	dispatcher  *prefs.Dispatcher

	mu      sync.Mutex
	capture *capture.Controller
	hotkeys *hotkeys.Manager
	feed    changeFeed

	// out receives one line per applied change domain.
	out io.Writer
}

// NewApp creates an App over the config file at path ("" for the default
// location). It does not touch the filesystem; call Load.
func NewApp(path string, keymap accel.Keymap, out io.Writer) *App {
	if out == nil {
		out = io.Discard
	}
	store := config.NewStore(path)
	codec := accel.NewCodec(keymap)
	a := &App{
		store:       store,
		codec:       codec,
		coordinator: prefs.NewCoordinator(store, codec),
		dispatcher:  prefs.NewDispatcher(),
		out:         out,
	}
	a.registerHandlers()
	return a
}

// Load reads the config file. A corrupt or unreadable file yields a
// *config.LoadError but leaves the App usable: every read falls back to its
// default until the next save.
func (a *App) Load() error {
	return a.store.Load()
}

func (a *App) Store() *config.Store { return a.store }
func (a *App) Codec() *accel.Codec  { return a.codec }

// EnableCapture installs the one capture controller this App owns.
func (a *App) EnableCapture(grabber capture.Grabber, surface capture.Surface) (*capture.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != nil {
		return nil, errors.New("capture controller already installed")
	}
	a.capture = capture.NewController(grabber, surface, a.codec)
	return a.capture, nil
}

// ArmHotkeys installs the registrar and arms it from the current settings.
// It is re-armed on every HotkeyRebind.
func (a *App) ArmHotkeys(m *hotkeys.Manager) error {
	a.mu.Lock()
	a.hotkeys = m
	a.mu.Unlock()
	return m.Apply(a.store.Settings().Hotkeys)
}

// SetFeed attaches an external change feed; nil detaches it.
func (a *App) SetFeed(f changeFeed) {
	a.mu.Lock()
	a.feed = f
	a.mu.Unlock()
}

// Shutdown disarms hotkeys and aborts a capture in progress.
func (a *App) Shutdown() error {
	a.mu.Lock()
	ctl, hk := a.capture, a.hotkeys
	a.mu.Unlock()

	var errs []error
	if ctl != nil {
		errs = append(errs, ctl.Abort())
	}
	if hk != nil {
		errs = append(errs, hk.Stop())
	}
	return errors.Join(errs...)
}

func (a *App) reportf(format string, args ...any) {
	if _, err := fmt.Fprintf(a.out, format+"\n", args...); err != nil {
		slog.Debug("[DEBUG-APP] report write failed", "error", err)
	}
}
