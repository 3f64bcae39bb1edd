package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mototracker/internal/tracker"
)

const DefaultCSVName = "Moto Tracker Results.csv"

// WriteTableCSV writes the tracker as BOM-prefixed UTF-8 CSV so that Excel on
// Windows opens it with the right encoding.
func WriteTableCSV(w io.Writer, t *tracker.Table) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return bw.Close()
}

func ExportTableToCSV(t *tracker.Table, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteTableCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadTableCSV parses a tracker CSV written by WriteTableCSV. Column labels only
// carry two year digits; pivot supplies the century.
func ReadTableCSV(r io.Reader, pivot time.Time) (*tracker.Table, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read tracker csv: %w", err)
	}
	if len(records) == 0 || records[0][0] != tracker.SiteCodeHeader {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, tracker.SiteCodeHeader)
	}

	columns := make([]tracker.Column, 0, len(records[0])-1)
	for _, label := range records[0][1:] {
		col, err := tracker.ParseColumnLabel(label, pivot)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	sites := tracker.Sites()
	grid := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if i >= len(sites) || rec[0] != sites[i] {
			return nil, fmt.Errorf("tracker csv row %d: site %q out of order", i+2, rec[0])
		}
		grid = append(grid, rec[1:])
	}
	return tracker.FromGrid(columns, grid)
}

// ExportTableToXLSX writes the tracker to a workbook laid out like the tracker
// sheet, ready to paste.
func ExportTableToXLSX(t *tracker.Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Moto Tracker"); err != nil {
		return err
	}
	sheet = "Moto Tracker"

	header := t.Header()
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellStr(sheet, cell, h)
	}
	for r, rec := range t.Records() {
		for c, v := range rec {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellStr(sheet, cell, v)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetColWidth(sheet, "A", "A", 14)
	if len(header) > 1 {
		_ = f.SetColWidth(sheet, "B", lastCol, 22)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
