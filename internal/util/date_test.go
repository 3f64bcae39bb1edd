package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayFirst(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "uk slash", input: "03/01/2024", want: time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)},
		{name: "single digits", input: "3/1/2024", want: time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)},
		{name: "with time", input: "21/03/2024 14:30", want: time.Date(2024, time.March, 21, 14, 30, 0, 0, time.UTC)},
		{name: "twelve hour", input: "05/03/2024 10:00 AM", want: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)},
		{name: "twelve hour seconds", input: "05/03/2024 1:15:30 pm", want: time.Date(2024, time.March, 5, 13, 15, 30, 0, time.UTC)},
		{name: "dashed twelve hour", input: "5-3-2024 12:05 AM", want: time.Date(2024, time.March, 5, 0, 5, 0, 0, time.UTC)},
		{name: "two digit year", input: "12/11/24", want: time.Date(2024, time.November, 12, 0, 0, 0, 0, time.UTC)},
		{name: "dotted", input: "1.2.2025", want: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{name: "month name any case", input: "3 jan 2024", want: time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)},
		{name: "iso", input: "2024-05-06", want: time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)},
		{name: "padded", input: "  13/12/2023  ", want: time.Date(2023, time.December, 13, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDayFirst(tc.input)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "got %v want %v", got, tc.want)
		})
	}
}

func TestParseDayFirstRejects(t *testing.T) {
	for _, input := range []string{"", "nan", "31/02/2024", "32/01/2024", "13/13/2024", "not a date"} {
		_, ok := ParseDayFirst(input)
		assert.False(t, ok, input)
	}
}

func TestFormatDayFirst(t *testing.T) {
	assert.Equal(t, "05/09/2024", FormatDayFirst(time.Date(2024, time.September, 5, 0, 0, 0, 0, time.UTC)))
}
