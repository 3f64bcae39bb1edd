package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mototracker/internal"
)

func TestNormalizeRow(t *testing.T) {
	rec, ok := NormalizeRow(internal.VisitRow{SiteID: " SITE32718 ", VisitDate: "03/01/2024", Result: "Pass", Tokens: "  Monthly "})
	require.True(t, ok)
	assert.Equal(t, "SITE32718", rec.Site)
	assert.Equal(t, "PASS", rec.Result)
	assert.Equal(t, "monthly", rec.Token)
	assert.Equal(t, ClassPlain, rec.Class)
	assert.Equal(t, time.January, rec.Date.Month())
	assert.Equal(t, 3, rec.Date.Day())
}

func TestNormalizeRowDropsInvalidDates(t *testing.T) {
	for _, date := range []string{"31/02/2024", "", "nan", "2024/31/01"} {
		_, ok := NormalizeRow(internal.VisitRow{SiteID: "SITE32718", VisitDate: date, Result: "pass", Tokens: "monthly"})
		assert.False(t, ok, date)
	}
}

func TestClassifyToken(t *testing.T) {
	assert.Equal(t, ClassPlain, ClassifyToken("monthly"))
	assert.Equal(t, ClassPlain, ClassifyToken(" MONTHLY\t"))
	assert.Equal(t, ClassExtra, ClassifyToken(""))
	assert.Equal(t, ClassExtra, ClassifyToken("monthly, revisit"))
	assert.Equal(t, ClassExtra, ClassifyToken("weekly"))
}

func TestNormalizeRowsMissingFieldsStayEmpty(t *testing.T) {
	recs, dropped := NormalizeRows([]internal.VisitRow{
		{SiteID: "SITE32718", VisitDate: "05/01/2024"},
		{SiteID: "SITE32719", VisitDate: "bad"},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "", recs[0].Result)
	assert.Equal(t, ClassExtra, recs[0].Class)
}
