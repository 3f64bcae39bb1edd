package tracker

import (
	"strings"
	"time"

	"mototracker/internal"
	"mototracker/internal/util"
)

type VisitClass string

const (
	ClassPlain VisitClass = "plain"
	ClassExtra VisitClass = "extra"

	monthlyToken = "monthly"
)

// VisitRecord is a normalized audit visit. Records are derived once per input
// row and never modified afterwards.
type VisitRecord struct {
	LineNo int
	Site   string
	Date   time.Time
	Result string
	Token  string
	Class  VisitClass
}

// ClassifyToken maps a tokens cell to its tracker class. Only "monthly" is
// plain; anything else, blank included, is extra.
func ClassifyToken(token string) VisitClass {
	if strings.ToLower(strings.TrimSpace(token)) == monthlyToken {
		return ClassPlain
	}
	return ClassExtra
}

// NormalizeRow converts a raw row, reporting false when the visit date is not a
// valid day-first calendar date.
func NormalizeRow(row internal.VisitRow) (VisitRecord, bool) {
	date, ok := util.ParseDayFirst(row.VisitDate)
	if !ok {
		return VisitRecord{}, false
	}
	token := strings.ToLower(strings.TrimSpace(row.Tokens))
	return VisitRecord{
		LineNo: row.LineNo,
		Site:   strings.TrimSpace(row.SiteID),
		Date:   date,
		Result: strings.ToUpper(row.Result),
		Token:  token,
		Class:  ClassifyToken(token),
	}, true
}

// NormalizeRows keeps input order and returns how many rows were dropped for
// an unparseable date.
func NormalizeRows(rows []internal.VisitRow) ([]VisitRecord, int) {
	out := make([]VisitRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, ok := NormalizeRow(row)
		if !ok {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}
