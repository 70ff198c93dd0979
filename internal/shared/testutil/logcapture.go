package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// LogRecord is one captured record. Group attributes are flattened into
// dotted keys and values are resolved to their Go form (int64, string...).
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

func (r LogRecord) String() string {
	return fmt.Sprintf("%s %q %v", r.Level, r.Message, r.Attrs)
}

type sink struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is an slog.Handler that keeps every record in memory. Loggers
// derived through With or WithGroup write to the same capture.
type LogCapture struct {
	sink   *sink
	attrs  map[string]any
	prefix string
	t      testing.TB
}

// NewTestLogger returns a logger writing into a fresh capture. When t is
// non-nil each record is echoed with t.Logf.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{sink: &sink{}, attrs: map[string]any{}, t: t}
	return slog.New(c), c
}

// Enabled captures every level
func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle stores r
func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for k, v := range c.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	rec := LogRecord{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs}
	c.sink.mu.Lock()
	c.sink.records = append(c.sink.records, rec)
	c.sink.mu.Unlock()

	if c.t != nil {
		c.t.Logf("log: %s", rec)
	}
	return nil
}

// WithAttrs returns a handler that adds attrs to every record
func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := c.clone()
	for _, a := range attrs {
		flatten(next.attrs, c.prefix, a)
	}
	return next
}

// WithGroup returns a handler that nests later attributes under name
func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	next := c.clone()
	next.prefix = c.prefix + name + "."
	return next
}

func (c *LogCapture) clone() *LogCapture {
	attrs := make(map[string]any, len(c.attrs))
	for k, v := range c.attrs {
		attrs[k] = v
	}
	return &LogCapture{sink: c.sink, attrs: attrs, prefix: c.prefix, t: c.t}
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a snapshot of everything captured so far
func (c *LogCapture) Records() []LogRecord {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return append([]LogRecord(nil), c.sink.records...)
}

// Reset drops captured records
func (c *LogCapture) Reset() {
	c.sink.mu.Lock()
	c.sink.records = nil
	c.sink.mu.Unlock()
}

// Match selects records. Zero fields match anything; Attrs must all be
// present with equal values.
type Match struct {
	Level   *slog.Level
	Message string // substring
	Attrs   map[string]any
}

// At is shorthand for a Match on level and message substring
func At(level slog.Level, message string) Match {
	return Match{Level: &level, Message: message}
}

// With returns m also requiring key=value
func (m Match) With(key string, value any) Match {
	attrs := make(map[string]any, len(m.Attrs)+1)
	for k, v := range m.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	m.Attrs = attrs
	return m
}

func (m Match) matches(r LogRecord) bool {
	if m.Level != nil && r.Level != *m.Level {
		return false
	}
	if m.Message != "" && !strings.Contains(r.Message, m.Message) {
		return false
	}
	for k, want := range m.Attrs {
		got, ok := r.Attrs[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Find returns the records selected by m in arrival order
func (c *LogCapture) Find(m Match) []LogRecord {
	var out []LogRecord
	for _, r := range c.Records() {
		if m.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// AssertLogged fails t unless some record matches m
func AssertLogged(t testing.TB, c *LogCapture, m Match) bool {
	t.Helper()
	return assert.NotEmpty(t, c.Find(m), "no log record matched; captured:\n%s", dump(c.Records()))
}

// AssertNotLogged fails t if any record matches m
func AssertNotLogged(t testing.TB, c *LogCapture, m Match) bool {
	t.Helper()
	return assert.Empty(t, c.Find(m), "unexpected log records")
}

// AssertNoErrors fails t if anything was logged at error level
func AssertNoErrors(t testing.TB, c *LogCapture) bool {
	t.Helper()
	return AssertNotLogged(t, c, At(slog.LevelError, ""))
}

func dump(records []LogRecord) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString("  ")
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
