// Package shell splits user-configured command lines (the volume control
// command and the custom middle-click command) into an argv.
package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrEmptyCommand      = errors.New("empty command")
	ErrUnterminatedQuote = errors.New("unterminated quote")
)

// ParsedCommand is a command line ready for exec.
type ParsedCommand struct {
	ExtraEnv map[string]string // leading KEY=VALUE assignments
	Args     []string
}

// Parse splits cmdline with POSIX-style quoting: single quotes are literal,
// double quotes allow \" \\ \$ and \` escapes, and a backslash outside quotes
// escapes the next character. Leading KEY=VALUE words (optionally after
// "env") become ExtraEnv.
func Parse(cmdline string) (ParsedCommand, error) {
	words, err := Split(cmdline)
	if err != nil {
		return ParsedCommand{}, err
	}
	result := ParsedCommand{ExtraEnv: map[string]string{}}
	if len(words) > 1 && words[0] == "env" {
		if key, _, ok := strings.Cut(words[1], "="); ok && isEnvVarName(key) {
			words = words[1:]
		}
	}
	for len(words) > 0 {
		key, value, ok := strings.Cut(words[0], "=")
		if !ok || !isEnvVarName(key) {
			break
		}
		result.ExtraEnv[key] = value
		words = words[1:]
	}
	if len(words) == 0 {
		return ParsedCommand{}, fmt.Errorf("%w: %q", ErrEmptyCommand, cmdline)
	}
	result.Args = words
	slog.Debug("[DEBUG-SHELL] parsed command line", "original", cmdline, "args", result.Args, "extraEnv", result.ExtraEnv)
	return result, nil
}

// Split breaks s into words. It does not expand variables or globs.
func Split(s string) ([]string, error) {
	var (
		words  []string
		cur    strings.Builder
		inWord bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		case c == '\\':
			inWord = true
			if i+1 < len(s) {
				i++
				if s[i] != '\n' {
					cur.WriteByte(s[i])
				}
			}
		case c == '\'':
			inWord = true
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("%w in %q", ErrUnterminatedQuote, s)
			}
			cur.WriteString(s[i+1 : i+1+end])
			i += end + 1
		case c == '"':
			inWord = true
			closed := false
			for i++; i < len(s); i++ {
				if s[i] == '"' {
					closed = true
					break
				}
				if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("\"\\$`", s[i+1]) >= 0 {
					i++
				}
				cur.WriteByte(s[i])
			}
			if !closed {
				return nil, fmt.Errorf("%w in %q", ErrUnterminatedQuote, s)
			}
		default:
			inWord = true
			cur.WriteByte(c)
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

// isEnvVarName checks [A-Za-z_][A-Za-z0-9_]*.
func isEnvVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 {
			if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_') {
				return false
			}
		} else if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}
