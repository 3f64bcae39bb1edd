package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mototracker/internal"
)

func fixedNow(y int, m time.Month, d int) Options {
	return Options{Now: func() time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.UTC) }}
}

func mustColumn(t *testing.T, label string) Column {
	t.Helper()
	col, err := ParseColumnLabel(label, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return col
}

func cell(t *testing.T, tbl *Table, site, label string) string {
	t.Helper()
	v, ok := tbl.Cell(site, mustColumn(t, label))
	require.True(t, ok, "%s / %s", site, label)
	return v
}

func TestBuildRowOrderIsFixed(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE306813", VisitDate: "02/01/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "03/01/2024", Result: "pass", Tokens: "monthly"},
	}, fixedNow(2024, time.January, 20))

	records := res.Table.Records()
	require.Len(t, records, 54)
	for i, site := range Sites() {
		assert.Equal(t, site, records[i][0])
	}
	assert.Equal(t, "SITE32718", records[0][0])
	assert.Equal(t, "SITE306813", records[53][0])
}

func TestBuildConcatenatesInProcessingOrder(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE32720", VisitDate: "05/02/2024", Result: "fail", Tokens: "monthly"},
		{SiteID: "SITE32720", VisitDate: "03/02/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32720", VisitDate: "05/02/2024", Result: "partial", Tokens: "Monthly"},
	}, fixedNow(2024, time.February, 28))

	assert.Equal(t, "PASS - 3RD, FAIL - 5TH, PARTIAL - 5TH", cell(t, res.Table, "SITE32720", "February '24"))
	assert.Equal(t, "", cell(t, res.Table, "SITE32720", "February '24 Extra"))
	assert.Equal(t, 1, res.Stats.FilledCells)
}

func TestBuildSplitsClassesIntoSiblingColumns(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE32721", VisitDate: "03/02/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32721", VisitDate: "05/02/2024", Result: "fail", Tokens: "other"},
	}, fixedNow(2024, time.February, 28))

	assert.Equal(t, []string{"Site Code", "February '24", "February '24 Extra"}, res.Table.Header())
	assert.Equal(t, "PASS - 3RD", cell(t, res.Table, "SITE32721", "February '24"))
	assert.Equal(t, "FAIL - 5TH", cell(t, res.Table, "SITE32721", "February '24 Extra"))
}

func TestBuildSentinelOnlyForElapsedMonths(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE32718", VisitDate: "10/01/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "11/04/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "12/05/2024", Result: "pass", Tokens: "monthly"},
	}, fixedNow(2024, time.April, 15))

	tbl := res.Table
	assert.Equal(t, "PASS - 10TH", cell(t, tbl, "SITE32718", "January '24"))
	assert.Equal(t, Sentinel, cell(t, tbl, "SITE32718", "January '24 Extra"))
	assert.Equal(t, Sentinel, cell(t, tbl, "SITE32719", "January '24"))

	assert.Equal(t, "PASS - 11TH", cell(t, tbl, "SITE32718", "April '24"))
	assert.Equal(t, "", cell(t, tbl, "SITE32719", "April '24"))
	assert.Equal(t, "", cell(t, tbl, "SITE32719", "April '24 Extra"))
	assert.Equal(t, "", cell(t, tbl, "SITE32719", "May '24"))

	assert.Equal(t, 53+54, res.Stats.SentinelCells)
}

func TestBuildPreviousYearIsElapsed(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE32718", VisitDate: "10/12/2023", Result: "pass", Tokens: "monthly"},
	}, fixedNow(2024, time.January, 2))
	assert.Equal(t, Sentinel, cell(t, res.Table, "SITE32719", "December '23"))
}

func TestBuildSkipsUnknownSitesAndBadDates(t *testing.T) {
	res := Build([]internal.VisitRow{
		{SiteID: "SITE99999", VisitDate: "10/01/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "31/02/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "10/01/2024", Result: "pass", Tokens: "monthly"},
	}, fixedNow(2024, time.January, 20))

	assert.Equal(t, []string{"Site Code", "January '24", "January '24 Extra"}, res.Table.Header())
	assert.Equal(t, 3, res.Stats.InputRows)
	assert.Equal(t, 2, res.Stats.ValidRows)
	assert.Equal(t, 1, res.Stats.DroppedDates)
	assert.Equal(t, 1, res.Stats.SkippedSites)
	for _, row := range res.Table.Records() {
		for _, v := range row[1:] {
			assert.NotContains(t, v, "SITE99999")
		}
	}
}

func TestBuildNoValidRows(t *testing.T) {
	res := Build([]internal.VisitRow{{SiteID: "SITE32718", VisitDate: "not a date"}}, fixedNow(2024, time.January, 1))
	assert.True(t, res.Empty())
	assert.Equal(t, []string{"Site Code"}, res.Table.Header())
	assert.Len(t, res.Table.Records(), 54)
}

func TestBuildIsIndependentOfInputOrder(t *testing.T) {
	rows := []internal.VisitRow{
		{SiteID: "SITE32730", VisitDate: "01/03/2024", Result: "pass", Tokens: "monthly"},
		{SiteID: "SITE32718", VisitDate: "02/01/2024", Result: "fail", Tokens: ""},
		{SiteID: "SITE32730", VisitDate: "21/03/2024", Result: "pass", Tokens: "monthly"},
	}
	reversed := []internal.VisitRow{rows[2], rows[1], rows[0]}

	a := Build(rows, fixedNow(2024, time.June, 1))
	b := Build(reversed, fixedNow(2024, time.June, 1))
	assert.True(t, a.Table.Equal(b.Table))
	assert.Equal(t, "PASS - 1ST, PASS - 21ST", cell(t, a.Table, "SITE32730", "March '24"))
}
