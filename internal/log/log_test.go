package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden debug line")
	Info("dialog opened", "dialog_id", "d-1")
	Error("submit failed", errors.New("boom"), "mode", "create")

	out := buf.String()
	assert.NotContains(t, out, "hidden debug line")
	assert.Contains(t, out, "dialog opened")
	assert.Contains(t, out, "d-1")
	assert.Contains(t, out, "boom")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible debug line")
	assert.Contains(t, buf.String(), "visible debug line")
}

func TestOddKeyValuesAreTolerated(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	assert.NotPanics(t, func() {
		Info("odd pairs", "a", 1, "dangling")
		Warn("bad key", 42, "value")
	})
	assert.Contains(t, buf.String(), "odd pairs")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	t.Cleanup(func() { SetFormat("console") })

	Info("json line", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"json line"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
