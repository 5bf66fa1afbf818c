// Package userutil derives per-user identifiers for process-wide resources.
package userutil

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var invalidNameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// lookupCurrentUser is a test seam.
var lookupCurrentUser = user.Current

// SanitizeUsername normalizes a user name for use inside lock file and mutex
// names. Blank input yields "unknown".
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidNameRune.ReplaceAllString(value, "_")
}

// CurrentUsername returns the sanitized name of the invoking user, checking
// USER, then USERNAME, then the account database.
func CurrentUsername() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return SanitizeUsername(v)
		}
	}
	if u, err := lookupCurrentUser(); err == nil {
		return SanitizeUsername(u.Username)
	}
	return SanitizeUsername("")
}
