package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// EnvConfigDir overrides the directory holding the config file.
	EnvConfigDir   = "VOLTRAY_CONFIG_DIR"
	appDirName     = "voltray"
	configFileName = "config.yaml"
)

// Test seams; tests override them to simulate resolution failures.
var (
	userConfigDirFn = os.UserConfigDir
	userHomeDirFn   = os.UserHomeDir
)

var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// DefaultPath resolves the per-user config file: $VOLTRAY_CONFIG_DIR when set,
// else the platform user config directory, else ~/.config, and finally the
// temp directory. The temp-dir fallback is not a stable persistence location.
func DefaultPath() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Join(dir, configFileName)
	}
	base, err := userConfigDirFn()
	if err != nil || strings.TrimSpace(base) == "" {
		home, homeErr := userHomeDirFn()
		if homeErr != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", homeErr)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve the user config and home directories. Using temp directory; settings persistence may be limited.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, configFileName)
}
