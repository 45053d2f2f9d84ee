package utils

import (
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.00", Money(0))
	assert.Equal(t, "$19.99", Money(19.99))
	assert.Equal(t, "$1234.50", Money(1234.5))
	assert.Equal(t, "$10.00", Money(9.999))
	// Halves round away from zero on the decimal value, not the binary one.
	assert.Equal(t, "$2.68", Money(2.675))
	assert.Equal(t, "$0.13", Money(0.125))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "Super Widget - Shop", OneLine("\n  Super   Widget\n - Shop \t"))
	assert.Equal(t, "", OneLine("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefghi…", Truncate("abcdefghijklmnop", 10))

	wide := Truncate("日本語のとても長い商品名です", 10)
	assert.LessOrEqual(t, runewidth.StringWidth(wide), 10)
	assert.Contains(t, wide, "…")

	assert.Equal(t, "anything", Truncate("anything", 0))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 21, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025/03/21 - 08:30 UTC", FormatTimestamp(ts, CalendarGregorian))
	assert.Equal(t, "2025/03/21 - 08:30 UTC", FormatTimestamp(ts, ""))

	// 2025-03-21 is Farvardin 1, 1404; 08:30 UTC is 12:00 in Tehran.
	assert.Equal(t, "1404/01/01 - 12:00", FormatTimestamp(ts, CalendarJalali))
}
