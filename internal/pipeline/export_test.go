package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mototracker/internal"
	"mototracker/internal/tracker"
)

var exportNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func sampleResult(t *testing.T) tracker.Result {
	t.Helper()
	res := tracker.Build([]internal.VisitRow{
		{SiteID: "SITE32718", VisitDate: "03/01/2024", Result: "pass, with notes", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "20/01/2024", Result: "fail", Tokens: "monthly"},
		{SiteID: "SITE306813", VisitDate: "02/03/2024", Result: "pass", Tokens: "extra"},
	}, tracker.Options{Now: func() time.Time { return exportNow }})
	require.False(t, res.Empty())
	return res
}

func TestWriteTableCSV(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, res.Table))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte("\xef\xbb\xbf")), "missing byte-order mark")
	lines := strings.Split(strings.TrimRight(string(out[3:]), "\n"), "\n")
	assert.Len(t, lines, 1+tracker.SiteCount())
	assert.True(t, strings.HasPrefix(lines[0], "Site Code,"))
	assert.Equal(t, `SITE32718,"PASS, WITH NOTES - 3RD, FAIL - 20TH",N/A,,`, lines[1])
}

func TestReadTableCSVRoundTrip(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, res.Table))

	back, err := ReadTableCSV(&buf, exportNow)
	require.NoError(t, err)
	assert.True(t, res.Table.Equal(back))
}

func TestReadTableCSVRejectsForeignFiles(t *testing.T) {
	_, err := ReadTableCSV(strings.NewReader("site_internal_id,date_of_visit\n"), exportNow)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadTableCSV(strings.NewReader("Site Code,Someday\n"), exportNow)
	assert.Error(t, err)

	_, err = ReadTableCSV(strings.NewReader("Site Code,January '24\nSITE99999,x\n"), exportNow)
	assert.ErrorContains(t, err, "out of order")
}

func TestExportTableToXLSX(t *testing.T) {
	res := sampleResult(t)
	path := filepath.Join(t.TempDir(), "nested", "tracker.xlsx")
	require.NoError(t, ExportTableToXLSX(res.Table, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Moto Tracker"}, f.GetSheetList())
	rows, err := f.GetRows("Moto Tracker")
	require.NoError(t, err)
	require.Len(t, rows, 1+tracker.SiteCount())
	assert.Equal(t, res.Table.Header(), rows[0])
	assert.Equal(t, "SITE32718", rows[1][0])
	assert.Equal(t, "PASS, WITH NOTES - 3RD, FAIL - 20TH", rows[1][1])

	panes, err := f.GetPanes("Moto Tracker")
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
}
