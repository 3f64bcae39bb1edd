package portal

import (
	"context"
	"log/slog"
	"time"

	"mototracker/internal"
	"mototracker/internal/storage"
)

const lastExportKey = "portal.last_export"

// ExportService pulls an audit export from the portal and notes when it last
// did so in the intake ledger.
type ExportService struct {
	db     *storage.DB
	client *Client
}

func NewExportService(db *storage.DB, client *Client) *ExportService {
	return &ExportService{db: db, client: client}
}

// Pull fetches visits dated from..to and records to as the end of the last
// export.
func (s *ExportService) Pull(ctx context.Context, from, to time.Time) ([]internal.VisitRow, error) {
	rows, err := s.client.ExportVisits(ctx, from, to)
	if err != nil {
		return nil, err
	}
	slog.Info("portal export pulled", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly), "rows", len(rows))
	if err := s.db.SetMetadata(lastExportKey, to.Format(time.DateOnly)); err != nil {
		slog.Warn("portal export not recorded", "error", err)
	}
	return rows, nil
}

// LastPull returns the end date of the last export, if any.
func (s *ExportService) LastPull() (time.Time, bool, error) {
	v, err := s.db.GetMetadata(lastExportKey)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.DateOnly, *v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// DefaultFrom is the start of the next export when none is given: the first
// day of the month the last export ended in. A tracker month is only complete
// when every visit in it is in the batch.
func (s *ExportService) DefaultFrom() (time.Time, bool, error) {
	last, ok, err := s.LastPull()
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, last.Location()), true, nil
}
