package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseMinutes reduces free-text duration input to whole minutes. Two
// shapes occur in the data: colon-delimited "H:MM" (optionally with a
// seconds field, which is dropped) and bare decimal hours ("2.5").
// The function is total over strings: empty or unparseable input is
// worth zero minutes, never an error.
func ParseMinutes(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0
		}
		hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || hours < 0 {
			return 0
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minutes < 0 {
			return 0
		}
		return hours*60 + minutes
	}
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil || hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	return int(math.Round(hours * 60))
}

// FormatMinutes renders a minute total as "H:MM" for display.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// MinutesToHours converts a minute total to decimal hours for cost and
// tax math.
func MinutesToHours(minutes int) float64 {
	return float64(minutes) / 60
}
