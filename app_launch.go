package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"voltray/internal/config"
	"voltray/internal/procutil"
	"voltray/internal/shell"
)

// ErrNoVolumeCommand reports that neither a configured mixer command nor a
// known mixer program on PATH is available.
var ErrNoVolumeCommand = errors.New("no volume control command configured and no known mixer found on PATH")

// launchFn is a test seam.
var launchFn = procutil.Launch

// LaunchVolumeCommand starts the mixer program the tray opens from its menu.
func (a *App) LaunchVolumeCommand() (int, error) {
	cmdline, ok := config.ResolveVolumeCommand(a.store)
	if !ok {
		return 0, ErrNoVolumeCommand
	}
	return a.launch("volume command", cmdline)
}

// RunCustomCommand starts the command bound to the middle-click custom
// action.
func (a *App) RunCustomCommand() (int, error) {
	cmdline := strings.TrimSpace(a.store.Settings().CustomCommand)
	if cmdline == "" {
		return 0, fmt.Errorf("%s is not set", config.KeyCustomCommand)
	}
	return a.launch("custom command", cmdline)
}

func (a *App) launch(what, cmdline string) (int, error) {
	parsed, err := shell.Parse(cmdline)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", what, err)
	}
	pid, err := launchFn(parsed.Args, parsed.ExtraEnv)
	if err != nil {
		slog.Warn("[WARN-APP] failed to launch "+what, "command", cmdline, "error", err)
		return 0, err
	}
	slog.Debug("[DEBUG-APP] launched "+what, "command", cmdline, "pid", pid)
	return pid, nil
}
