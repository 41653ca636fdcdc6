package report

import (
	"fmt"
	"time"
)

// FormatDuration renders d the way the completion summary does: whole
// hours/minutes/seconds, omitting leading zero units, e.g. "1h2m3s",
// "45s", "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
