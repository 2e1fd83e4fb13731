package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	lg := New("section")
	lg.Info("elders updated", "prefix", "101", "version", 3)

	out := buf.String()
	assert.True(t, strings.Contains(out, "elders updated"))
	assert.True(t, strings.Contains(out, "prefix=101"))
	assert.True(t, strings.Contains(out, "version=3"))
	assert.True(t, strings.Contains(out, "(section)"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)

	lg := New("x")
	lg.Debug("should not appear")
	assert.Empty(t, buf.String())

	lg.Warn("should appear")
	assert.NotEmpty(t, buf.String())

	SetLevel(LevelInfo)
}

func TestChildLoggerInheritsContext(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	parent := New("root", "node", "n1")
	child := parent.New("role", "elder")
	child.Info("ready")

	out := buf.String()
	assert.True(t, strings.Contains(out, "node=n1"))
	assert.True(t, strings.Contains(out, "role=elder"))
}
