// Package logging provides the structured logging interface used across the
// motion core.
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/logging.go: a small
// Logger interface decouples the core from any concrete backend, with a
// package-level global for convenience and a fast IsEnabled check so
// disabled log levels cost nothing on the executor's per-segment hot path.
// Unlike that package's hand-rolled terminal/JSON formatter, the default
// implementation here is backed by github.com/rs/zerolog (see SPEC_FULL.md
// §2.1).
package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors _examples/joeycumines-go-utilpkg/eventloop's LogLevel ordering.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry is one structured log record. Category names the emitting
// subsystem or condition, e.g. "planner", "motion", "backpressure".
type Entry struct {
	Level    Level
	Category string
	Line     int32 // move_block line_number, 0 if not applicable
	Message  string
	Err      error
	Fields   map[string]any
}

// Logger is the structured logging interface the motion core depends on.
type Logger interface {
	Log(Entry)
	IsEnabled(Level) bool
}

// ZerologLogger adapts zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	level atomic.Int32
	log   zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger, filtering at the given
// minimum level.
func NewZerologLogger(log zerolog.Logger, level Level) *ZerologLogger {
	l := &ZerologLogger{log: log}
	l.level.Store(int32(level))
	return l
}

// SetLevel dynamically changes the minimum log level.
func (l *ZerologLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

// IsEnabled reports whether the given level would be logged. Callers on the
// executor's hot path should check this before building Fields.
func (l *ZerologLogger) IsEnabled(level Level) bool {
	return int32(level) >= l.level.Load()
}

// Log writes a structured log entry.
func (l *ZerologLogger) Log(e Entry) {
	if !l.IsEnabled(e.Level) {
		return
	}
	ev := l.log.WithLevel(e.Level.zerolog()).Str("category", e.Category)
	if e.Line != 0 {
		ev = ev.Int32("line", e.Line)
	}
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)
}

// NoOpLogger discards every entry; IsEnabled always reports false so callers
// skip building Fields entirely.
type NoOpLogger struct{}

func (NoOpLogger) Log(Entry)          {}
func (NoOpLogger) IsEnabled(Level) bool { return false }

// RateLimitedLogger wraps a Logger and suppresses repeated entries in the
// same Category, so a condition that recurs every Tick (backpressure,
// feedhold re-engagement on a held machine) doesn't flood the sink.
//
// Adapted from _examples/joeycumines-go-utilpkg/catrate/limiter.go's
// per-category "next allowed event" fast path (categoryData's
// atomically-stored next-allowed timestamp, limiter.go:25-46,279-291):
// categories are tracked independently, each allowing one event per
// window/burst interval and denying the rest until it elapses. catrate
// itself is its own Go module (a separate go.mod) and isn't importable as
// a dependency of this one, so its single-rate fast path is reproduced
// directly here rather than pulled in wholesale — the original keeps its
// own background cleanup worker and multi-rate retention bookkeeping,
// neither of which this single fixed-window use needs.
type RateLimitedLogger struct {
	inner    Logger
	interval time.Duration
	next     sync.Map // category (any) -> *atomic.Int64, unix nanos
}

// NewRateLimitedLogger wraps inner, passing at most one entry per category
// every window/burst; an entry that arrives sooner after the last passed
// entry in its category is dropped. Entries are spread evenly, not let
// through in bursts.
func NewRateLimitedLogger(inner Logger, window time.Duration, burst int) *RateLimitedLogger {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLogger{inner: inner, interval: window / time.Duration(burst)}
}

// IsEnabled delegates to inner; rate limiting is applied in Log, not here,
// since suppression depends on Category which IsEnabled doesn't see.
func (l *RateLimitedLogger) IsEnabled(level Level) bool { return l.inner.IsEnabled(level) }

// Log forwards e to inner unless e.Category has exceeded its allotted rate.
func (l *RateLimitedLogger) Log(e Entry) {
	if !l.inner.IsEnabled(e.Level) {
		return
	}
	now := time.Now().UnixNano()
	v, _ := l.next.LoadOrStore(e.Category, new(atomic.Int64))
	gate := v.(*atomic.Int64)
	for {
		deadline := gate.Load()
		if now < deadline {
			return
		}
		if gate.CompareAndSwap(deadline, now+int64(l.interval)) {
			break
		}
	}
	l.inner.Log(e)
}

var global struct {
	sync.RWMutex
	logger Logger
}

func init() {
	global.logger = NoOpLogger{}
}

// SetGlobal installs the package-level logger used by the convenience
// functions below.
func SetGlobal(l Logger) {
	global.Lock()
	defer global.Unlock()
	global.logger = l
}

func getGlobal() Logger {
	global.RLock()
	defer global.RUnlock()
	return global.logger
}

// Debug logs at LevelDebug via the global logger.
func Debug(category, message string, line int32, fields map[string]any) {
	l := getGlobal()
	if !l.IsEnabled(LevelDebug) {
		return
	}
	l.Log(Entry{Level: LevelDebug, Category: category, Line: line, Message: message, Fields: fields})
}

// Warn logs at LevelWarn via the global logger.
func Warn(category, message string, line int32, err error, fields map[string]any) {
	l := getGlobal()
	if !l.IsEnabled(LevelWarn) {
		return
	}
	l.Log(Entry{Level: LevelWarn, Category: category, Line: line, Message: message, Err: err, Fields: fields})
}

// Error logs at LevelError via the global logger.
func Error(category, message string, line int32, err error, fields map[string]any) {
	l := getGlobal()
	if !l.IsEnabled(LevelError) {
		return
	}
	l.Log(Entry{Level: LevelError, Category: category, Line: line, Message: message, Err: err, Fields: fields})
}
