package tracker

import (
	"slices"
	"strings"
	"time"
)

// Stats counts what happened to the input on its way into the table.
type Stats struct {
	InputRows      int
	ValidRows      int
	DroppedDates   int
	SkippedSites   int
	SkippedColumns int
	FilledCells    int
	SentinelCells  int
}

// Entry renders one visit as it appears in a cell, e.g. "PASS - 3RD".
func Entry(rec VisitRecord) string {
	return rec.Result + " - " + DayOrdinal(rec.Date.Day())
}

// SortRecords orders records by site then visit date. Ties keep input order,
// which fixes the concatenation order inside a cell.
func SortRecords(records []VisitRecord) []VisitRecord {
	out := append([]VisitRecord(nil), records...)
	slices.SortStableFunc(out, func(a, b VisitRecord) int {
		if c := strings.Compare(a.Site, b.Site); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
	return out
}

// fillData places every record into its cell, joining collisions with ", ".
// Records for unknown sites or unplanned columns are skipped.
func (t *Table) fillData(records []VisitRecord, stats *Stats) {
	for _, rec := range records {
		r, ok := SiteRow(rec.Site)
		if !ok {
			stats.SkippedSites++
			continue
		}
		c, ok := t.colIndex[ColumnFor(rec)]
		if !ok {
			stats.SkippedColumns++
			continue
		}
		entry := Entry(rec)
		if t.cells[r][c] == "" {
			t.cells[r][c] = entry
			stats.FilledCells++
			continue
		}
		t.cells[r][c] += ", " + entry
	}
}

// fillElapsed writes the sentinel into every still-empty cell of a column whose
// month is strictly before now's month. Years compare on two digits.
func (t *Table) fillElapsed(now time.Time, stats *Stats) {
	for c, col := range t.columns {
		if !IsElapsed(col, now) {
			continue
		}
		for r := range t.cells {
			if t.cells[r][c] == "" {
				t.cells[r][c] = Sentinel
				stats.SentinelCells++
			}
		}
	}
}

// IsElapsed reports whether the column's month is before now's month under the
// two-digit-year comparison used by the sentinel pass.
func IsElapsed(col Column, now time.Time) bool {
	nowYY := now.Year() % 100
	yy := col.ShortYear()
	return yy < nowYY || (yy == nowYY && col.Month < now.Month())
}
