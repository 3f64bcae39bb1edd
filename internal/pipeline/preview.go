package pipeline

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"mototracker/internal/tracker"
)

// RenderPreview prints the tracker as a text grid. maxColumns limits how many
// month columns are shown, counting from the most recent; 0 shows all.
func RenderPreview(w io.Writer, t *tracker.Table, maxColumns int) {
	header := t.Header()
	records := t.Records()

	skip := 0
	if maxColumns > 0 && len(header)-1 > maxColumns {
		skip = len(header) - 1 - maxColumns
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(append([]string{header[0]}, header[1+skip:]...))
	for _, rec := range records {
		tw.Append(append([]string{rec[0]}, rec[1+skip:]...))
	}
	tw.Render()

	if skip > 0 {
		fmt.Fprintf(w, "(%d earlier columns hidden)\n", skip)
	}
}

func SummaryLine(res tracker.Result) string {
	s := res.Stats
	return fmt.Sprintf("rows=%d valid=%d dropped_dates=%d skipped_sites=%d columns=%d filled=%d na=%d",
		s.InputRows, s.ValidRows, s.DroppedDates, s.SkippedSites, len(res.Table.Columns()), s.FilledCells, s.SentinelCells)
}
