package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mototracker/internal"
	"mototracker/internal/config"
)

// Connector lists audit-export mails through the Gmail API.
type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require(
		config.Setting{Name: "GMAIL_CLIENT_ID", Value: cfg.GmailClientID},
		config.Setting{Name: "GMAIL_CLIENT_SECRET", Value: cfg.GmailClientSecret},
		config.Setting{Name: "GMAIL_REFRESH_TOKEN", Value: cfg.GmailRefreshToken},
	); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	ctx := context.Background()
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Connector{
		service: svc,
		query:   searchQuery(cfg.MailQuery, cfg.MailSubjectFilter, cfg.MailSinceDays),
	}, nil
}

// FetchInbox pages through the label until max messages are collected, then
// downloads each one in raw form.
func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	ids, err := c.listIDs(label, max)
	if err != nil {
		return nil, err
	}
	slog.Debug("gmail listed", "label", label, "query", c.query, "messages", len(ids))

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := c.service.Users.Messages.Get("me", id).Format("raw").Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(id, msg.InternalDate, raw))
	}
	return out, nil
}

func (c *Connector) listIDs(label string, max int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < max {
		call := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(int64(max - len(ids)))
		if c.query != "" {
			call = call.Q(c.query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gmail list %s: %w", label, err)
		}
		for _, m := range resp.Messages {
			if m.Id != "" && len(ids) < max {
				ids = append(ids, m.Id)
			}
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

// toFetched reads the envelope headers from the raw message. Gmail's internal
// date (epoch millis) is the received time; the Date header is the fallback.
func toFetched(gmailID string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	fetched := internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  gmailID,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}

	var dateHeader time.Time
	if msg, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		dec := new(mime.WordDecoder)
		decode := func(v string) string {
			if out, err := dec.DecodeHeader(v); err == nil {
				return out
			}
			return v
		}
		if id := strings.TrimSpace(msg.Header.Get("Message-ID")); id != "" {
			fetched.MessageID = id
		}
		fetched.Subject = decode(msg.Header.Get("Subject"))
		fetched.From = decode(msg.Header.Get("From"))
		if d, err := msg.Header.Date(); err == nil {
			dateHeader = d
		}
	}

	switch {
	case internalDateMs > 0:
		fetched.ReceivedAt = time.UnixMilli(internalDateMs).UTC().Format(time.RFC3339)
	case !dateHeader.IsZero():
		fetched.ReceivedAt = dateHeader.UTC().Format(time.RFC3339)
	}
	return fetched
}

// searchQuery combines the configured Gmail query with a subject filter and an
// age window.
func searchQuery(query, subject string, sinceDays int) string {
	terms := []string{}
	if q := strings.TrimSpace(query); q != "" {
		terms = append(terms, q)
	}
	if s := strings.TrimSpace(subject); s != "" {
		terms = append(terms, fmt.Sprintf("subject:(%s)", s))
	}
	if sinceDays > 0 {
		terms = append(terms, fmt.Sprintf("newer_than:%dd", sinceDays))
	}
	return strings.Join(terms, " ")
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
