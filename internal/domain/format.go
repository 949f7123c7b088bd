package domain

import (
	"strconv"
	"strings"
)

const alertTimeLayout = "2006-01-02 15:04Z"

// FormatAlert renders a spot as the plain-text body of an alert.
func FormatAlert(s Spot) string {
	var b strings.Builder
	b.WriteString("DX spot: ")
	b.WriteString(s.Callsign)
	b.WriteString("\nFreq: ")
	b.WriteString(FormatKHz(s.FrequencyKHz))
	b.WriteString(" kHz (")
	b.WriteString(string(s.Band))
	b.WriteString(")\nMode: ")
	b.WriteString(string(s.Mode))
	b.WriteString("\nTime: ")
	b.WriteString(s.Time.UTC().Format(alertTimeLayout))
	b.WriteString("\nSpotter: ")
	b.WriteString(s.Spotter)
	if s.Comment != "" {
		b.WriteString("\nComment: ")
		b.WriteString(s.Comment)
	}
	return b.String()
}

// FormatKHz prints a frequency with the fewest digits that parse back to the
// same value, keeping at least one decimal place ("14025.0", "14074.25").
func FormatKHz(khz float64) string {
	s := strconv.FormatFloat(khz, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
