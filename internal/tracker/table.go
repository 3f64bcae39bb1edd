package tracker

import "fmt"

const (
	SiteCodeHeader = "Site Code"
	Sentinel       = "N/A"
)

// Table is the tracker grid: the fixed site rows by the planned columns. An
// empty string is an unset cell.
type Table struct {
	columns  []Column
	colIndex map[Column]int
	cells    [][]string
}

// NewTable allocates an empty table conforming to the column plan.
func NewTable(columns []Column) *Table {
	t := &Table{
		columns:  append([]Column(nil), columns...),
		colIndex: make(map[Column]int, len(columns)),
		cells:    make([][]string, SiteCount()),
	}
	for i, c := range t.columns {
		t.colIndex[c] = i
	}
	for r := range t.cells {
		t.cells[r] = make([]string, len(columns))
	}
	return t
}

// FromGrid rebuilds a table from rendered cell values, one row per fixed site.
func FromGrid(columns []Column, grid [][]string) (*Table, error) {
	if len(grid) != SiteCount() {
		return nil, fmt.Errorf("tracker grid has %d rows, want %d", len(grid), SiteCount())
	}
	t := NewTable(columns)
	for r, row := range grid {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("tracker grid row %d has %d cells, want %d", r+1, len(row), len(columns))
		}
		copy(t.cells[r], row)
	}
	return t, nil
}

func (t *Table) Sites() []string {
	return Sites()
}

func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

func (t *Table) ColumnIndex(c Column) (int, bool) {
	i, ok := t.colIndex[c]
	return i, ok
}

// Header is "Site Code" followed by the column labels.
func (t *Table) Header() []string {
	return append([]string{SiteCodeHeader}, Labels(t.columns)...)
}

func (t *Table) Value(row, col int) string {
	return t.cells[row][col]
}

// Cell looks up a value by site code and column.
func (t *Table) Cell(site string, c Column) (string, bool) {
	r, ok := SiteRow(site)
	if !ok {
		return "", false
	}
	col, ok := t.colIndex[c]
	if !ok {
		return "", false
	}
	return t.cells[r][col], true
}

// Records returns each row as site code followed by its cells, in tracker
// order.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.cells))
	for r, row := range t.cells {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, siteOrder[r])
		rec = append(rec, row...)
		out = append(out, rec)
	}
	return out
}

// Equal reports whether two tables have the same columns and cell text.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.columns) != len(other.columns) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != other.columns[i] {
			return false
		}
	}
	for r := range t.cells {
		for c := range t.cells[r] {
			if t.cells[r][c] != other.cells[r][c] {
				return false
			}
		}
	}
	return true
}
