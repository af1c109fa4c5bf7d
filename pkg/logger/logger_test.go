package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("cycle complete",
		String("symbol", "BTCUSDT"),
		Int("alerts", 3),
		Float64("confidence", 0.75),
		Bool("stale", false),
		Duration("took", 1500*time.Millisecond),
		Strings("partial", []string{"funding", "spot"}),
	)
	l.With(String("component", "monitor")).Error("refresh failed", Error(errors.New("boom")))

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "cycle complete", first["message"])
	assert.Equal(t, "BTCUSDT", first["symbol"])
	assert.EqualValues(t, 3, first["alerts"])
	assert.InDelta(t, 0.75, first["confidence"], 1e-9)
	assert.Equal(t, false, first["stale"])
	assert.EqualValues(t, 1500, first["took"])
	assert.Equal(t, "funding, spot", first["partial"])

	second := entries[1]
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "monitor", second["component"])
	assert.Equal(t, "boom", second["error"])
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info("ignored", Any("k", map[string]int{"a": 1}))
		l.With(Int64("n", 7)).Warn("ignored")
	})
}

func TestErrorField_NilValue(t *testing.T) {
	key, value := Error(nil).KeyValue()
	assert.Equal(t, "error", key)
	assert.Nil(t, value)
}
