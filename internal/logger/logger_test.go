package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriters_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriters(false, &buf)
	l.Debug("hidden")
	l.Info("shown", zap.String("key", "value"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "value")

	buf.Reset()
	NewWithWriters(true, &buf).Debug("debug msg")
	assert.Contains(t, buf.String(), "debug msg")
}

func TestNewWithWriters_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	NewWithWriters(false, &a, &b).Info("multi")
	assert.Contains(t, a.String(), "multi")
	assert.Contains(t, b.String(), "multi")
}

func TestOpenFile_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docqa.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	l := NewWithWriters(false, f)
	l.Info("to file")
	require.NoError(t, f.Sync())
	assert.FileExists(t, path)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
