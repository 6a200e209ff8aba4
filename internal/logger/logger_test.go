package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetFormat("json", &buf)
	SetLevel("warn")
	t.Cleanup(func() {
		SetLevel("info")
		SetFormat("json", nil)
	})

	L.Info("dropped")
	L.Warn("kept", "run_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.Equal(t, "abc", rec["run_id"])
}

func TestSetFormat_Text(t *testing.T) {
	var buf bytes.Buffer
	SetFormat("TEXT", &buf)
	SetLevel("debug")
	t.Cleanup(func() {
		SetLevel("info")
		SetFormat("json", nil)
	})

	L.Debug("hello", "model", "gpt-oss:20b")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "model=gpt-oss:20b")
}
