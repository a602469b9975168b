package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	entries []Entry
}

func (r *recordingLogger) Log(e Entry)          { r.entries = append(r.entries, e) }
func (r *recordingLogger) IsEnabled(Level) bool { return true }

func TestRateLimitedLogger_SuppressesBurstsWithinWindow(t *testing.T) {
	inner := &recordingLogger{}
	l := NewRateLimitedLogger(inner, time.Hour, 1)

	l.Log(Entry{Level: LevelWarn, Category: "backpressure", Message: "first"})
	l.Log(Entry{Level: LevelWarn, Category: "backpressure", Message: "second"})

	assert.Len(t, inner.entries, 1)
	assert.Equal(t, "first", inner.entries[0].Message)
}

func TestRateLimitedLogger_TracksCategoriesIndependently(t *testing.T) {
	inner := &recordingLogger{}
	l := NewRateLimitedLogger(inner, time.Hour, 1)

	l.Log(Entry{Level: LevelWarn, Category: "backpressure", Message: "a"})
	l.Log(Entry{Level: LevelWarn, Category: "feedhold", Message: "b"})

	assert.Len(t, inner.entries, 2)
}

func TestRateLimitedLogger_IsEnabledDelegatesToInner(t *testing.T) {
	l := NewRateLimitedLogger(NoOpLogger{}, time.Hour, 1)
	assert.False(t, l.IsEnabled(LevelError))
}
