package tracker

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const extraSuffix = " Extra"

// Column is one tracker column: a calendar month split by visit class.
type Column struct {
	Year  int
	Month time.Month
	Class VisitClass
}

func ColumnFor(rec VisitRecord) Column {
	return Column{Year: rec.Date.Year(), Month: rec.Date.Month(), Class: rec.Class}
}

// Label renders the tracker header, e.g. "January '24" or "January '24 Extra".
func (c Column) Label() string {
	base := fmt.Sprintf("%s '%02d", c.Month.String(), c.Year%100)
	if c.Class == ClassExtra {
		return base + extraSuffix
	}
	return base
}

// ShortYear is the two-digit year used by the elapsed-month check.
func (c Column) ShortYear() int {
	return c.Year % 100
}

// ParseColumnLabel reverses Label. The century is taken from pivot, since the
// label only carries two year digits.
func ParseColumnLabel(label string, pivot time.Time) (Column, error) {
	class := ClassPlain
	base := strings.TrimSpace(label)
	if strings.HasSuffix(base, extraSuffix) {
		class = ClassExtra
		base = strings.TrimSuffix(base, extraSuffix)
	}
	monthName, yy, ok := strings.Cut(base, " '")
	if !ok {
		return Column{}, fmt.Errorf("invalid tracker column label %q", label)
	}
	month, err := time.Parse("January", monthName)
	if err != nil {
		return Column{}, fmt.Errorf("invalid month in column label %q: %w", label, err)
	}
	short, err := strconv.Atoi(yy)
	if err != nil || len(yy) != 2 {
		return Column{}, fmt.Errorf("invalid year in column label %q", label)
	}
	century := pivot.Year() - pivot.Year()%100
	return Column{Year: century + short, Month: month.Month(), Class: class}, nil
}

type yearMonth struct {
	year  int
	month time.Month
}

// PlanColumns derives the ordered column universe from the records: every
// observed (year, month), ascending, each as its plain column followed by its
// extra column.
func PlanColumns(records []VisitRecord) []Column {
	seen := map[yearMonth]struct{}{}
	months := make([]yearMonth, 0)
	for _, rec := range records {
		key := yearMonth{year: rec.Date.Year(), month: rec.Date.Month()}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		months = append(months, key)
	}

	slices.SortFunc(months, func(a, b yearMonth) int {
		if a.year != b.year {
			return a.year - b.year
		}
		return int(a.month) - int(b.month)
	})

	out := make([]Column, 0, len(months)*2)
	for _, ym := range months {
		out = append(out,
			Column{Year: ym.year, Month: ym.month, Class: ClassPlain},
			Column{Year: ym.year, Month: ym.month, Class: ClassExtra},
		)
	}
	return out
}

// Labels renders a column plan as tracker headers.
func Labels(columns []Column) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.Label())
	}
	return out
}
