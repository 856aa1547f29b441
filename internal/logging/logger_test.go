package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("celestial", &buf, INFO)

	l.Debug("скрыто %d", 1)
	l.Info("смена суток %d", 2)
	l.Error("сбой")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[INFO] [celestial] смена суток 2")
	assert.Contains(t, out, "[ERROR] [celestial] сбой")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestDefaultLogger_Swap(t *testing.T) {
	prev := defaultLogger
	defer SetDefaultLogger(prev)

	var buf bytes.Buffer
	SetDefaultLogger(NewWriterLogger("test", &buf, TRACE))
	Trace("tick %d", 7)
	Warn("warn")

	assert.Contains(t, buf.String(), "[TRACE] [test] tick 7")
	assert.Contains(t, buf.String(), "[WARN] [test] warn")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLoggerManager_FileLogger(t *testing.T) {
	prevDir := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = prevDir }()

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	l, err := lm.GetLogger("world")
	require.NoError(t, err)

	again, err := lm.GetLogger("world")
	require.NoError(t, err)
	assert.Same(t, l, again)
	assert.Equal(t, []string{"world"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("world", ERROR, DEBUG))
	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestSetLevelAffectsDefaultLogger(t *testing.T) {
	prev := defaultLogger
	defer func() { defaultLogger = prev }()

	var buf bytes.Buffer
	SetDefaultLogger(NewWriterLogger("test", &buf, INFO))

	Debug("скрыто")
	SetLevel(DEBUG)
	Debug("видно")

	assert.NotContains(t, buf.String(), "скрыто")
	assert.Contains(t, buf.String(), "[DEBUG] [test] видно")
}
