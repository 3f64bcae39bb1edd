package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mototracker/internal/config"
	"mototracker/internal/connectors"
	gmailconnector "mototracker/internal/connectors/gmail"
	imapconnector "mototracker/internal/connectors/imap"
	"mototracker/internal/pipeline"
	"mototracker/internal/storage"
)

// Service polls a mailbox for audit exports and turns each one into a tracker
// file under OUTPUT_DIR/mail.
type Service struct {
	db  *storage.DB
	cfg config.Config

	connect func(provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	s := &Service{db: db, cfg: cfg}
	s.connect = func(provider string) (connectors.MailConnector, error) {
		return MakeConnector(s.cfg, provider)
	}
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			slog.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches new mail once and processes everything pending.
func (s *Service) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.connect(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", provider, err)
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	results, err := processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	exported, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case pipeline.StatusExported:
			exported++
		case pipeline.StatusFailed:
			failed++
		}
	}
	slog.Info("listener cycle done",
		"provider", provider,
		"fetched", fetchResult.Fetched,
		"new", fetchResult.New,
		"duplicates", fetchResult.Duplicates,
		"processed", len(results),
		"exported", exported,
		"failed", failed,
	)
	return nil
}

func MakeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
