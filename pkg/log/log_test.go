package log

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	loggers := make([]*slog.Logger, 16)
	for i := range loggers {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			loggers[i] = L()
			For("test").Debug("first use", "goroutine", i)
		}()
	}
	wg.Wait()

	require.NotNil(t, loggers[0])
	for _, l := range loggers {
		assert.Same(t, loggers[0], l)
	}

	// A later Init keeps the logger already in use.
	Init("debug")
	assert.Same(t, loggers[0], L())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
