package utils

import (
	"fmt"
	"strings"
)

const (
	FormatLetters = "letters"
	FormatDigital = "digital"
)

// FormatSeconds renders a duration in seconds either as "2h 25m" (letters) or "2:25:30" (digital).
func FormatSeconds(seconds int, format string) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if format == FormatDigital {
		if h > 0 {
			return fmt.Sprintf("%d:%02d:%02d", h, m, s)
		}
		return fmt.Sprintf("%d:%02d", m, s)
	}

	// Seconds are only shown for durations under a minute.
	if h == 0 && m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	parts := make([]string, 0, 2)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	return strings.Join(parts, " ")
}
