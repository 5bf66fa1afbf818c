package config

import "fmt"

// LoadError reports a config document that could not be read or parsed.
// The store is left empty and every read falls back to its default.
type LoadError struct {
	Path string // empty when the embedded default document failed
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("couldn't load default preferences: %v", e.Err)
	}
	return fmt.Sprintf("couldn't load preferences file %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a failed write. In-memory values are unaffected.
type SaveError struct {
	Path string
	Op   string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("couldn't write preferences file %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
