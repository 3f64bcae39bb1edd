package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"mototracker/internal"
	"mototracker/internal/storage"
)

const (
	statusFetched   = "fetched"
	statusDuplicate = "duplicate"
)

// MailStoreService writes raw messages to disk, content-addressed, and records
// them in the intake ledger.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store reports whether the message is new to the ledger. A new message whose
// content is already recorded under another id is stored as a duplicate and is
// never processed.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, bool, error) {
	if len(msg.Raw) == 0 {
		return internal.EmailRow{}, false, fmt.Errorf("empty message %s/%s", msg.Provider, msg.MessageID)
	}
	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])
	rawPath, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	status := statusFetched
	if existing == nil {
		twin, err := s.db.FindEmailByHash(hash)
		if err != nil {
			return internal.EmailRow{}, false, err
		}
		if twin != nil {
			status = statusDuplicate
		}
	}

	row, err := s.db.UpsertEmail(internal.EmailRow{
		Provider:   msg.Provider,
		MessageID:  msg.MessageID,
		Subject:    msg.Subject,
		Sender:     msg.From,
		ReceivedAt: msg.ReceivedAt,
		Hash:       hash,
		Status:     status,
		RawRef:     rawPath,
	})
	return row, existing == nil, err
}

func (s *MailStoreService) writeRaw(hash string, raw []byte) (string, error) {
	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); err == nil {
		return rawPath, nil
	}
	tmp := rawPath + ".part"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", err
	}
	return rawPath, os.Rename(tmp, rawPath)
}
