package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	maxRenameRetry = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
)

// mkdirAllFn is a test seam for directory-creation failures.
var mkdirAllFn = os.MkdirAll

// atomicWrite writes data using temp-file + rename so readers never observe a
// partial file. An exclusive lock on "<path>.lock" serializes writers across
// processes.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = mkdirAllFn(dir, 0o700); err != nil {
		return &SaveError{Path: path, Op: "mkdir", Err: err}
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		return &SaveError{Path: path, Op: "mkdir", Err: fmt.Errorf("%s exists but is not a directory", dir)}
	}

	lock := flock.New(path + ".lock")
	if err = lock.Lock(); err != nil {
		return &SaveError{Path: path, Op: "lock", Err: err}
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("[WARN-CONFIG] failed to release config lock", "path", lock.Path(), "error", unlockErr)
		}
	}()

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return &SaveError{Path: path, Op: "create temp", Err: err}
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return &SaveError{Path: path, Op: "chmod temp", Err: err}
	}
	if _, err = tmpFile.Write(data); err != nil {
		return &SaveError{Path: path, Op: "write", Err: err}
	}
	if err = tmpFile.Sync(); err != nil {
		return &SaveError{Path: path, Op: "sync", Err: err}
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return &SaveError{Path: path, Op: "close", Err: err}
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return &SaveError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
