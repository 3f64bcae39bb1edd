package tracker

import (
	"time"

	"mototracker/internal"
)

type Options struct {
	// Now decides which months have elapsed. Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of one batch. A result with no valid rows is not an
// error; callers check Empty.
type Result struct {
	Table   *Table
	Stats   Stats
	BuiltAt time.Time
}

func (r Result) Empty() bool {
	return r.Stats.ValidRows == 0
}

// Build runs the whole transform: normalize, plan columns, fill data, then
// fill elapsed months with the sentinel.
func Build(rows []internal.VisitRow, opts Options) Result {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	builtAt := now()

	records, dropped := NormalizeRows(rows)
	stats := Stats{
		InputRows:    len(rows),
		ValidRows:    len(records),
		DroppedDates: dropped,
	}

	table := NewTable(PlanColumns(records))
	table.fillData(SortRecords(records), &stats)
	table.fillElapsed(builtAt, &stats)

	return Result{Table: table, Stats: stats, BuiltAt: builtAt}
}
