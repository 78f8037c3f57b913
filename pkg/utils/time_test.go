package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now().UTC(), now, time.Second)
}

func TestUnixToTime(t *testing.T) {
	assert.Equal(t, time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC), UnixToTime(1755253800))
	assert.True(t, UnixToTime(0).IsZero())
	assert.True(t, UnixToTime(-5).IsZero())
}

func TestParseUnixString(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"Valid timestamp", "1755253800", time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC)},
		{"Empty string", "", time.Time{}},
		{"Non-numeric", "not-a-timestamp", time.Time{}},
		{"Mixed digits and letters", "17552a", time.Time{}},
		{"Negative", "-1", time.Time{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseUnixString(tc.input))
		})
	}
}

func TestFormatISO8601(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	ts := time.Date(2025, 8, 15, 17, 30, 0, 0, loc)
	assert.Equal(t, "2025-08-15T10:30:00Z", FormatISO8601(ts))
}

func TestInZone(t *testing.T) {
	ts := time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC)

	t.Run("Known zone", func(t *testing.T) {
		local := InZone(ts, "Asia/Jakarta")
		assert.Equal(t, "Asia/Jakarta", local.Location().String())
		assert.True(t, local.Equal(ts))
	})

	t.Run("Empty zone falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, InZone(ts, "").Location())
	})

	t.Run("Unknown zone falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, InZone(ts, "Mars/Olympus").Location())
	})
}
