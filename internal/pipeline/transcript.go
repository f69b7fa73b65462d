package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// FormatTimestamp renders ms as HH:MM:SS,mmm. Hours are at least two digits
// wide and otherwise unbounded.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / msPerHour
	ms %= msPerHour
	minutes := ms / msPerMinute
	ms %= msPerMinute
	seconds := ms / msPerSecond
	ms %= msPerSecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(ts string) (int64, error) {
	clock, frac, ok := strings.Cut(ts, ",")
	if !ok || len(frac) != 3 {
		return 0, fmt.Errorf("timestamp %q: expected HH:MM:SS,mmm", ts)
	}
	fields := strings.Split(clock, ":")
	if len(fields) != 3 || len(fields[1]) != 2 || len(fields[2]) != 2 {
		return 0, fmt.Errorf("timestamp %q: expected HH:MM:SS,mmm", ts)
	}
	parts := make([]int64, 0, 4)
	for _, f := range append(fields, frac) {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timestamp %q: bad field %q", ts, f)
		}
		parts = append(parts, n)
	}
	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("timestamp %q: field out of range", ts)
	}
	return parts[0]*msPerHour + parts[1]*msPerMinute + parts[2]*msPerSecond + parts[3], nil
}

// FormatRecord renders one timed transcript record followed by the blank
// separator line.
func FormatRecord(index int, startMs, endMs int64, text string) string {
	return fmt.Sprintf("%d\n%s --> %s\n%s\n\n", index, FormatTimestamp(startMs), FormatTimestamp(endMs), strings.TrimSpace(text))
}
