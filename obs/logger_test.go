package obs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoticeLogsAtWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l.Notice(context.Background(), "build arena overflowed", "bytes", 1024)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "build arena overflowed")
}

func TestNoopLoggerSuppressesOutput(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelWarn))
	assert.NotPanics(t, func() {
		l.Notice(context.Background(), "should not appear")
		l.Phase(context.Background(), "loading tuples", 1, 10)
	})
}

func TestWithDimensionAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})).WithDimension(128)

	l.Phase(context.Background(), "initializing", 0, 0)

	assert.Contains(t, buf.String(), "dimension=128")
}
