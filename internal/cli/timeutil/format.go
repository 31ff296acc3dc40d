// Package timeutil formats times, durations and sizes for certstorectl and
// the server's status command.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// LocalTimeFormat renders timestamps in the user's zone, e.g. token expiry.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatLocal renders t in the local zone, or "-" for the zero time.
func FormatLocal(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatTime renders an RFC 3339 timestamp in the local zone. Anything that
// does not parse is returned unchanged.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}
	return FormatLocal(t)
}

// FormatDuration renders d with day, hour, minute and second fields, leaving
// out leading zero fields: "3d 0h 30m 15s", "4m 2s". Sub-second precision is
// dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	secs := int64(d / time.Second)
	fields := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}

	var parts []string
	for i, f := range fields {
		if len(parts) == 0 && f.n == 0 && i < len(fields)-1 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", f.n, f.unit))
	}
	return strings.Join(parts, " ")
}

// FormatUptime renders a Go duration string such as "72h30m15s" with
// FormatDuration. Anything that does not parse is returned unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}
	return FormatDuration(d)
}
