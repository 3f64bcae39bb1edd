package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mototracker/internal"
	"mototracker/internal/util"
)

var (
	ErrMissingColumn    = errors.New("missing required column")
	ErrUnsupportedInput = errors.New("unsupported input type")
	ErrNoExportFound    = errors.New("no audit export found")
)

var (
	siteHeaders   = []string{"site_internal_id", "site_id", "internal_site_id"}
	dateHeaders   = []string{"date_of_visit", "visit_date", "date"}
	resultHeaders = []string{"primary_result", "result"}
	tokenHeaders  = []string{"tokens", "token", "visit_type"}
)

type columnMap struct {
	site, date, result, tokens int
}

func mapColumns(headers []string) (columnMap, error) {
	keys := make([]string, 0, len(headers))
	for _, h := range headers {
		keys = append(keys, util.HeaderKey(h))
	}
	cols := columnMap{
		site:   findHeaderIndex(keys, siteHeaders),
		date:   findHeaderIndex(keys, dateHeaders),
		result: findHeaderIndex(keys, resultHeaders),
		tokens: findHeaderIndex(keys, tokenHeaders),
	}
	if cols.site < 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, siteHeaders[0])
	}
	if cols.date < 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, dateHeaders[0])
	}
	return cols, nil
}

// findHeaderIndex prefers the earliest alias so that "date_of_visit" wins over
// a generic "date" column.
func findHeaderIndex(keys []string, aliases []string) int {
	for _, alias := range aliases {
		for i, k := range keys {
			if k == alias {
				return i
			}
		}
	}
	return -1
}

func (c columnMap) row(source internal.RowSource, lineNo int, cells []string) internal.VisitRow {
	return internal.VisitRow{
		LineNo:    lineNo,
		Source:    source,
		SiteID:    pickCell(cells, c.site),
		VisitDate: pickCell(cells, c.date),
		Result:    rawCell(cells, c.result),
		Tokens:    pickCell(cells, c.tokens),
	}
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// rawCell keeps surrounding whitespace. The normalizer only upper-cases the
// result, so padding in the export survives into the tracker cell.
func rawCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// rowsFromRecords treats the first record as the header row.
func rowsFromRecords(source internal.RowSource, records [][]string) ([]internal.VisitRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty %s input", ErrMissingColumn, source)
	}
	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, err
	}
	out := make([]internal.VisitRow, 0, len(records)-1)
	for i, cells := range records[1:] {
		if isEmptyRow(cells) {
			continue
		}
		out = append(out, cols.row(source, i+2, cells))
	}
	return out, nil
}

// decodeText returns UTF-8 text with any byte-order mark removed. Exports saved
// from Excel on Windows are not always UTF-8; those are read as Windows-1252.
func decodeText(content []byte) ([]byte, error) {
	if utf8.Valid(content) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
		return decoded, err
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), content)
	return decoded, err
}

func sniffDelimiter(line string) rune {
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func parseCSV(content []byte) ([]internal.VisitRow, error) {
	text, err := decodeText(content)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	firstLine, _, _ := strings.Cut(string(text), "\n")

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsFromRecords(internal.SourceCSV, records)
}

func parseXLSX(content []byte) ([]internal.VisitRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lastErr error
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil || len(rows) == 0 {
			continue
		}

		headerAt := -1
		var cols columnMap
		for i := 0; i < len(rows) && i < 5; i++ {
			cols, err = mapColumns(rows[i])
			if err == nil {
				headerAt = i
				break
			}
			lastErr = err
		}
		if headerAt < 0 {
			continue
		}

		out := []internal.VisitRow{}
		for i, cells := range rows[headerAt+1:] {
			if isEmptyRow(cells) {
				continue
			}
			row := cols.row(internal.SourceXLSX, headerAt+i+2, cells)
			row.VisitDate = xlsxDate(row.VisitDate)
			out = append(out, row)
		}
		return out, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no sheet with audit headers", ErrMissingColumn)
	}
	return nil, lastErr
}

// xlsxDate turns a raw date serial into day-first text. Text cells are left
// for the normalizer.
func xlsxDate(raw string) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return raw
	}
	return util.FormatDayFirst(t)
}

func parseHTMLTable(html string) ([]internal.VisitRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []internal.VisitRow
	lastErr := fmt.Errorf("%w: no table with audit headers", ErrMissingColumn)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		records := [][]string{}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				records = append(records, cells)
			}
		})
		rows, err := rowsFromRecords(internal.SourceHTMLTable, records)
		if err != nil {
			lastErr = err
			return true
		}
		out = rows
		return false
	})

	if out == nil {
		return nil, lastErr
	}
	return out, nil
}

func parsePDF(content []byte) ([]internal.VisitRow, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return rowsFromLines(internal.SourcePDF, lines)
}

// rowsFromLines reads delimited text lines, starting at the first line that
// carries the audit headers.
func rowsFromLines(source internal.RowSource, lines []string) ([]internal.VisitRow, error) {
	for i, line := range lines {
		delim := sniffDelimiter(line)
		header := splitDelimited(line, delim)
		if _, err := mapColumns(header); err != nil {
			continue
		}
		records := [][]string{header}
		for _, l := range lines[i+1:] {
			records = append(records, splitDelimited(l, delim))
		}
		return rowsFromRecords(source, records)
	}
	return nil, fmt.Errorf("%w: no header line in %s text", ErrMissingColumn, source)
}

func splitDelimited(line string, delim rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	cells, err := reader.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return cells
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EmailExport is what an audit-export email yielded.
type EmailExport struct {
	Rows            []internal.VisitRow
	Subject         string
	AttachmentNames []string
	Origin          string
}

// ExtractRowsFromEmailRaw looks for the export in the attachments first, then in
// an HTML table in the body, then in a delimited plain-text body.
func ExtractRowsFromEmailRaw(raw []byte) (EmailExport, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailExport{}, err
	}

	out := EmailExport{Subject: env.GetHeader("Subject")}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		out.AttachmentNames = append(out.AttachmentNames, name)
	}

	for i, att := range env.Attachments {
		parse := parserForName(out.AttachmentNames[i])
		if parse == nil {
			continue
		}
		rows, err := parse(att.Content)
		if err != nil {
			continue
		}
		out.Rows = rows
		out.Origin = out.AttachmentNames[i]
		return out, nil
	}

	if env.HTML != "" {
		if rows, err := parseHTMLTable(env.HTML); err == nil {
			out.Rows = rows
			out.Origin = "html_body"
			return out, nil
		}
	}
	if env.Text != "" {
		if rows, err := rowsFromLines(internal.SourceCSV, splitLines(env.Text)); err == nil {
			out.Rows = rows
			out.Origin = "text_body"
			return out, nil
		}
	}

	return out, ErrNoExportFound
}

func parserForName(name string) func([]byte) ([]internal.VisitRow, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".txt"):
		return parseCSV
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xlsm"):
		return parseXLSX
	case strings.HasSuffix(lower, ".pdf"):
		return parsePDF
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return func(b []byte) ([]internal.VisitRow, error) { return parseHTMLTable(string(b)) }
	default:
		return nil
	}
}

func readAllLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, 256<<20))
}
