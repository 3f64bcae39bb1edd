package internal

type RowSource string

const (
	SourceCSV       RowSource = "csv"
	SourceXLSX      RowSource = "xlsx"
	SourceHTMLTable RowSource = "html_table"
	SourcePDF       RowSource = "pdf"
	SourcePortal    RowSource = "portal"
)

// VisitRow is one row of an audit export before normalization. Fields missing
// from the source are empty strings.
type VisitRow struct {
	LineNo    int
	Source    RowSource
	SiteID    string
	VisitDate string
	Result    string
	Tokens    string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	ID        int
	TraceID   string
	EmailID   *int
	Origin    string
	Output    string
	Timings   map[string]float64
	Counts    map[string]int
	CreatedAt string
}
