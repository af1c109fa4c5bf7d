package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)

	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" btcusdt,ETHUSDT", "", "ethusdt", "SOLUSDT "})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, got)
}
