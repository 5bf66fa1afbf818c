// Package sessionlog turns warning and error log records into notices the
// shell can show the user after a command finishes.
package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Notice is one user-visible log record.
type Notice struct {
	Time      time.Time
	Level     slog.Level
	Component string // tag component, e.g. "HOTKEY" for "[WARN-HOTKEY] ..."
	Message   string // message with the bracketed tag removed
	Detail    string // value of the "error" attribute, if any
	Group     string // accumulated dot-separated slog group name
}

func (n Notice) String() string {
	if n.Detail == "" {
		return n.Message
	}
	return n.Message + ": " + n.Detail
}

// NoticeFunc receives each record at or above the notice threshold.
type NoticeFunc func(Notice)

var tagPattern = regexp.MustCompile(`^\[([A-Z]+)-([A-Z0-9_]+)\]\s*`)

// TeeHandler wraps a base [slog.Handler] and tees records at or above minLevel
// to a NoticeFunc. Records reach the base handler only when the base handler
// is enabled for their level, so a quiet base still yields notices.
type TeeHandler struct {
	base     slog.Handler
	notify   NoticeFunc
	minLevel slog.Level
	group    string
	detail   string // "error" attribute bound through WithAttrs
}

// NewTeeHandler creates a TeeHandler. A nil notify makes it a plain
// pass-through to base.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, notify NoticeFunc) *TeeHandler {
	return &TeeHandler{
		base:     base,
		notify:   notify,
		minLevel: minLevel,
	}
}

func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.notify != nil && level >= h.minLevel {
		return true
	}
	return h.base.Enabled(ctx, level)
}

// Handle forwards the record to the base handler when it wants it, then
// emits a notice for records at or above minLevel. The notice is emitted even
// if the base handler fails.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.base.Enabled(ctx, record.Level) {
		err = h.base.Handle(ctx, record)
	}

	if h.notify != nil && record.Level >= h.minLevel {
		n := h.notice(record)
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Written to stderr directly; logging here would re-enter this handler.
					fmt.Fprintf(os.Stderr, "[session-log] notice callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.notify(n)
		}()
	}
	return err
}

func (h *TeeHandler) notice(record slog.Record) Notice {
	n := Notice{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Group:   h.group,
		Detail:  h.detail,
	}
	if m := tagPattern.FindStringSubmatch(record.Message); m != nil {
		n.Component = m[2]
		n.Message = record.Message[len(m[0]):]
	}
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "error" {
			n.Detail = a.Value.String()
			return false
		}
		return true
	})
	return n
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.base = h.base.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == "error" {
			next.detail = a.Value.String()
		}
	}
	return &next
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.base = h.base.WithGroup(name)
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

// Collector keeps the most recent notices up to a fixed limit. It is safe for
// concurrent use.
type Collector struct {
	mu      sync.Mutex
	limit   int
	notices []Notice
	dropped int
}

const defaultCollectorLimit = 50

// NewCollector creates a collector holding at most limit notices. A
// non-positive limit uses a default of 50.
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = defaultCollectorLimit
	}
	return &Collector{limit: limit}
}

// Add records n, evicting the oldest notice when full. Consecutive duplicates
// (same level and text) are collapsed.
func (c *Collector) Add(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last := len(c.notices) - 1; last >= 0 {
		prev := c.notices[last]
		if prev.Level == n.Level && prev.String() == n.String() {
			return
		}
	}
	if len(c.notices) == c.limit {
		c.notices = append(c.notices[:0], c.notices[1:]...)
		c.dropped++
	}
	c.notices = append(c.notices, n)
}

// Drain returns the collected notices and the number evicted, then resets.
func (c *Collector) Drain() ([]Notice, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, dropped := c.notices, c.dropped
	c.notices, c.dropped = nil, 0
	return out, dropped
}

// Summary renders notices one per line, prefixed by lowercase level.
func Summary(notices []Notice, dropped int) string {
	var b strings.Builder
	if dropped > 0 {
		fmt.Fprintf(&b, "(%d earlier notices omitted)\n", dropped)
	}
	for _, n := range notices {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToLower(n.Level.String()), n)
	}
	return b.String()
}
