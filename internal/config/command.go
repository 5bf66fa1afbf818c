package config

import (
	"log/slog"
	"os/exec"
	"strings"
)

// volumeCommandCandidates are searched for in order when no control-panel command
// is configured.
var volumeCommandCandidates = []string{
	"pavucontrol",
	"gnome-alsamixer",
	"xfce4-mixer",
	"alsamixergui",
}

var lookPathFn = exec.LookPath

// ResolveVolumeCommand returns the configured control-panel command, or the
// first known mixer program found on PATH. It reports false when neither is
// available. Unlike ordinary reads this searches the filesystem, so callers
// should invoke it only when the command is actually needed.
func ResolveVolumeCommand(s *Store) (string, bool) {
	if cmd := strings.TrimSpace(Get(s, GlobalSection, KeyVolumeControlCommand, "")); cmd != "" {
		return cmd, true
	}
	for _, candidate := range volumeCommandCandidates {
		path, err := lookPathFn(candidate)
		if err != nil || path == "" {
			continue
		}
		slog.Debug("[DEBUG-CONFIG] resolved default volume command", "command", candidate, "path", path)
		return candidate, true
	}
	slog.Debug("[DEBUG-CONFIG] no volume control command found", "candidates", volumeCommandCandidates)
	return "", false
}
