package procutil

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
)

// startFn is a test seam.
var startFn = (*exec.Cmd).Start

// Launch starts args[0] with args[1:] and the extra environment, detached
// from the caller's process group, and returns its pid. The child is reaped
// on a background goroutine.
func Launch(args []string, extraEnv map[string]string) (int, error) {
	if len(args) == 0 || args[0] == "" {
		return 0, errors.New("launch: program is required")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = mergeEnv(os.Environ(), extraEnv)
	Detach(cmd)
	if err := startFn(cmd); err != nil {
		return 0, fmt.Errorf("launch %s: %w", args[0], err)
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		slog.Debug("[DEBUG-PROC] launched program exited", "program", args[0], "pid", pid, "error", err)
	}()
	return pid, nil
}

// mergeEnv appends extra in sorted key order; later entries win in exec.
func mergeEnv(base []string, extra map[string]string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}
