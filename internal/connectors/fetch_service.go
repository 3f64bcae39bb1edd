package connectors

import (
	"log/slog"

	"mototracker/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched    int
	Stored     int
	New        int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

// FetchAndStore pulls up to max messages and records them. Messages without a
// body are logged and skipped rather than failing the batch.
func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if len(msg.Raw) == 0 {
			slog.Warn("mail without body", "provider", msg.Provider, "message_id", msg.MessageID)
			continue
		}
		row, isNew, err := s.store.Store(msg)
		if err != nil {
			return result, err
		}
		result.Stored++
		if !isNew {
			continue
		}
		result.New++
		if row.Status == statusDuplicate {
			result.Duplicates++
			slog.Info("duplicate export mail", "email_id", row.ID, "provider", row.Provider, "subject", row.Subject)
			continue
		}
		slog.Debug("mail stored", "email_id", row.ID, "provider", row.Provider, "subject", row.Subject)
	}
	return result, nil
}
