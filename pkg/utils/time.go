package utils

import (
	"strconv"
	"time"
)

// FormatDuration renders probe and run durations for reports: milliseconds
// under a second, seconds with two decimals under a minute, then whole
// minutes and seconds (or hours and minutes).
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	case d < time.Minute:
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	case d < time.Hour:
		d = d.Truncate(time.Second)
		return strconv.Itoa(int(d/time.Minute)) + "m" + strconv.Itoa(int(d%time.Minute/time.Second)) + "s"
	default:
		d = d.Truncate(time.Minute)
		return strconv.Itoa(int(d/time.Hour)) + "h" + strconv.Itoa(int(d%time.Hour/time.Minute)) + "m"
	}
}
