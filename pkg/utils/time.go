package utils

import "time"

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// UnixToTime converts a unix timestamp to a UTC time.Time
func UnixToTime(timestamp int64) time.Time {
	if timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(timestamp, 0).UTC()
}

// ParseUnixString converts a decimal unix-seconds string, as sent by the
// Cloud API in status and message payloads, to a UTC time.Time.
// Returns the zero time for empty or unparseable input.
func ParseUnixString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	var ts int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}
		}
		ts = ts*10 + int64(c-'0')
	}
	return UnixToTime(ts)
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// InZone converts t to the given IANA zone, falling back to UTC when the
// zone name is empty or unknown. Used for tenant-local timestamps.
func InZone(t time.Time, zone string) time.Time {
	if zone == "" {
		return t.UTC()
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}
