package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl, "пустая строка означает INFO")

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("streaming", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("колонка %d,%d не сгенерирована", 3, -2)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [streaming] колонка 3,-2 не сгенерирована")
}

func TestManagerReturnsSameLogger(t *testing.T) {
	a := GetComponentLogger("test-component")
	b := GetComponentLogger("test-component")
	assert.Same(t, a, b, "менеджер должен кэшировать логгеры компонентов")
	assert.Contains(t, GetLoggerManager().Components(), "test-component")
	assert.Same(t, GetStreamingLogger(), GetLoggerManager().For(ComponentStreaming))

	require.NoError(t, GetLoggerManager().SetLevel("test-component", ERROR, ERROR))
	assert.Error(t, GetLoggerManager().SetLevel("missing", INFO, INFO))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Error("ничего") })
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	defer Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG})

	l, err := NewLogger("file-test")
	require.NoError(t, err)
	l.Debug("запись в файл")
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close(), "повторное закрытие безопасно")
}
