package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mototracker/internal"
	"mototracker/internal/config"
	"mototracker/internal/storage"
	"mototracker/internal/tracker"
	"mototracker/internal/util"
)

const (
	StatusFetched  = "fetched"
	StatusExported = "exported"
	StatusSkipped  = "skipped"
	StatusEmpty    = "empty"
	StatusFailed   = "failed"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
	now func() time.Time
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, now: time.Now}
}

type ProcessResult struct {
	EmailID int
	Status  string
	Rows    int
	Output  string
	Err     error
}

// Outputs are the files written for one tracker build.
type Outputs struct {
	CSVPath  string
	XLSXPath string
}

// BuildAndExport runs the tracker transform and writes the requested outputs.
// Nothing is written when the input has no valid rows.
func BuildAndExport(rows []internal.VisitRow, now func() time.Time, out Outputs) (tracker.Result, error) {
	res := tracker.Build(rows, tracker.Options{Now: now})
	if res.Empty() {
		return res, nil
	}
	if out.CSVPath != "" {
		if err := ExportTableToCSV(res.Table, out.CSVPath); err != nil {
			return res, fmt.Errorf("export csv: %w", err)
		}
	}
	if out.XLSXPath != "" {
		if err := ExportTableToXLSX(res.Table, out.XLSXPath); err != nil {
			return res, fmt.Errorf("export xlsx: %w", err)
		}
	}
	return res, nil
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessPending works through fetched mail. A mail that cannot be processed
// is marked failed so that it does not block the rest of the batch or later
// cycles.
func (s *ProcessingService) ProcessPending(limit int, provider string) ([]ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus(StatusFetched, limit)
	if err != nil {
		return nil, err
	}
	var out []ProcessResult
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			slog.Error("mail processing failed", "email_id", email.ID, "error", err)
			res, err = s.finish(email, time.Now(), ProcessResult{EmailID: email.ID, Status: StatusFailed, Err: err}, "", tracker.Stats{})
			if err != nil {
				return out, fmt.Errorf("mark email id=%d failed: %w", email.ID, err)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	export, err := ExtractRowsFromEmailRaw(raw)
	if err != nil && !errors.Is(err, ErrNoExportFound) {
		return ProcessResult{}, err
	}

	subject := util.FirstNonEmpty(export.Subject, email.Subject)
	detect := DetectAuditExport(subject, export.AttachmentNames, len(export.Rows) > 0, s.cfg.DetectThreshold)
	if !detect.IsExport {
		slog.Info("mail skipped", "email_id", email.ID, "score", detect.Score, "reason", detect.Reason)
		return s.finish(email, start, ProcessResult{EmailID: email.ID, Status: StatusSkipped}, "", tracker.Stats{})
	}

	base := fmt.Sprintf("%d_%s", email.ID, util.SanitizeFileName(email.MessageID))
	outputs := Outputs{CSVPath: filepath.Join(s.cfg.OutputDir, "mail", base+".csv")}
	if s.cfg.ExportXLSX {
		outputs.XLSXPath = filepath.Join(s.cfg.OutputDir, "mail", base+".xlsx")
	}

	res, err := BuildAndExport(export.Rows, s.now, outputs)
	if err != nil {
		return ProcessResult{}, err
	}
	if res.Empty() {
		slog.Warn("audit export has no valid rows", "email_id", email.ID, "rows", res.Stats.InputRows, "origin", export.Origin)
		return s.finish(email, start, ProcessResult{EmailID: email.ID, Status: StatusEmpty, Rows: res.Stats.InputRows}, export.Origin, res.Stats)
	}

	slog.Info("tracker exported", "email_id", email.ID, "origin", export.Origin, "output", outputs.CSVPath, "summary", SummaryLine(res))
	result := ProcessResult{EmailID: email.ID, Status: StatusExported, Rows: res.Stats.InputRows, Output: outputs.CSVPath}
	return s.finish(email, start, result, export.Origin, res.Stats)
}

func (s *ProcessingService) finish(email internal.EmailRow, start time.Time, result ProcessResult, origin string, stats tracker.Stats) (ProcessResult, error) {
	if err := s.db.UpdateEmailStatus(email.ID, result.Status); err != nil {
		return ProcessResult{}, err
	}
	emailID := email.ID
	run := internal.RunRow{
		TraceID: uuid.NewString(),
		EmailID: &emailID,
		Origin:  util.FirstNonEmpty(origin, "mail:"+email.Provider),
		Output:  result.Output,
		Timings: map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		Counts:  StatsCounts(stats),
	}
	if err := s.db.InsertRun(run); err != nil {
		slog.Warn("run not recorded", "email_id", email.ID, "error", err)
	}
	return result, nil
}

// StatsCounts flattens build stats for the run ledger.
func StatsCounts(s tracker.Stats) map[string]int {
	return map[string]int{
		"input":          s.InputRows,
		"valid":          s.ValidRows,
		"droppedDates":   s.DroppedDates,
		"skippedSites":   s.SkippedSites,
		"skippedColumns": s.SkippedColumns,
		"filled":         s.FilledCells,
		"sentinel":       s.SentinelCells,
	}
}
