// Package singleinstance provides a cross-process exclusive lock so only one
// voltray process records a hotkey at a time.
package singleinstance

import "errors"

// ErrAlreadyRunning is returned by TryLock when another process holds the lock.
var ErrAlreadyRunning = errors.New("another voltray process is already capturing a hotkey")
