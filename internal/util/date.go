package util

import (
	"strings"
	"time"
)

// dayFirstLayouts are tried in order. Numeric layouts put the day before the
// month; ISO layouts are unambiguous and accepted as-is.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 3:04 PM",
	"2/1/2006 3:04:05 PM",
	"2/1/06",
	"2/1/06 15:04",
	"2-1-2006",
	"2-1-2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 3:04 PM",
	"2.1.2006",
	"2.1.2006 15:04",
	"2 Jan 2006",
	"2-Jan-2006",
	"2 January 2006",
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDayFirst parses a visit date written day-before-month. It returns false
// for anything that is not a real calendar date (31/02/2024, blanks, text).
func ParseDayFirst(input string) (time.Time, bool) {
	// Meridiem layouts match upper case only; month names match any case.
	value := strings.ToUpper(strings.Join(strings.Fields(input), " "))
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatDayFirst renders a date the way the audit export writes it.
func FormatDayFirst(t time.Time) string {
	return t.Format("02/01/2006")
}
