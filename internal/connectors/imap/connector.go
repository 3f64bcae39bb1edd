package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"mototracker/internal"
	"mototracker/internal/config"
)

var exportExtensions = []string{".csv", ".xlsx", ".xlsm", ".pdf", ".html", ".htm", ".txt"}

// Connector reads unseen audit-export mails over IMAP. Only messages whose MIME
// structure could carry an export are downloaded, and only those are marked seen.
type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool

	subjectFilter string
	sinceDays     int
	now           func() time.Time
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require(
		config.Setting{Name: "IMAP_HOST", Value: cfg.IMAPHost},
		config.Setting{Name: "IMAP_USER", Value: cfg.IMAPUser},
		config.Setting{Name: "IMAP_PASSWORD", Value: cfg.IMAPPassword},
	); err != nil {
		return nil, err
	}
	return &Connector{
		host:          cfg.IMAPHost,
		port:          cfg.IMAPPort,
		secure:        cfg.IMAPSecure,
		user:          cfg.IMAPUser,
		password:      cfg.IMAPPassword,
		markSeen:      cfg.IMAPMarkSeen,
		subjectFilter: strings.TrimSpace(cfg.MailSubjectFilter),
		sinceDays:     cfg.MailSinceDays,
		now:           time.Now,
	}, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var (
		client *imapclient.Client
		err    error
	)
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return client, nil
}

func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if _, err := client.Select(label, false); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", label, err)
	}

	uids, err := client.UidSearch(searchCriteria(c.subjectFilter, c.since()))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}
	if len(uids) == 0 {
		return nil, nil
	}

	candidates, err := c.exportCandidates(client, uids)
	if err != nil {
		return nil, err
	}
	slog.Debug("imap candidates", "mailbox", label, "unseen", len(uids), "candidates", len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	out, err := c.fetchRaw(client, candidates)
	if err != nil {
		return nil, err
	}

	if c.markSeen {
		seen := new(imap.SeqSet)
		seen.AddNum(candidates...)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := client.UidStore(seen, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, fmt.Errorf("imap mark seen: %w", err)
		}
	}
	return out, nil
}

func (c *Connector) since() time.Time {
	if c.sinceDays <= 0 {
		return time.Time{}
	}
	return c.now().AddDate(0, 0, -c.sinceDays)
}

// exportCandidates keeps the uids whose body structure has an export-like part.
func (c *Connector) exportCandidates(client *imapclient.Client, uids []uint32) ([]uint32, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- client.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure}, messages)
	}()

	var out []uint32
	for msg := range messages {
		if msg != nil && hasExportPart(msg.BodyStructure) {
			out = append(out, msg.Uid)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch structure: %w", err)
	}
	return out, nil
}

func (c *Connector) fetchRaw(client *imapclient.Client, uids []uint32) ([]internal.FetchedMailMessage, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- client.UidFetch(set, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(uids))
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = err
			continue
		}
		out = append(out, toFetched(msg, raw, c.now))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch body: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

func toFetched(msg *imap.Message, raw []byte, now func() time.Time) internal.FetchedMailMessage {
	fetched := internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  fmt.Sprintf("imap-%d", msg.Uid),
		ReceivedAt: now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if env := msg.Envelope; env != nil {
		if env.MessageId != "" {
			fetched.MessageID = env.MessageId
		}
		fetched.Subject = env.Subject
		fetched.From = formatAddresses(env.From)
	}
	if !msg.InternalDate.IsZero() {
		fetched.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return fetched
}

// searchCriteria selects unseen mail, optionally narrowed to a subject
// substring such as "audits_basic_data_export" and to mail received since a date.
func searchCriteria(subjectFilter string, since time.Time) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if subjectFilter != "" {
		criteria.Header.Add("Subject", subjectFilter)
	}
	if !since.IsZero() {
		criteria.Since = since
	}
	return criteria
}

// hasExportPart reports whether a message has an attachment with an export
// extension or an HTML body that may hold the export table. A missing
// structure is treated as a candidate.
func hasExportPart(bs *imap.BodyStructure) bool {
	if bs == nil {
		return true
	}
	if len(bs.Parts) > 0 {
		for _, part := range bs.Parts {
			if hasExportPart(part) {
				return true
			}
		}
		return false
	}

	if name := partFileName(bs); name != "" {
		lower := strings.ToLower(name)
		for _, ext := range exportExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(bs.MIMEType, "text") && strings.EqualFold(bs.MIMESubType, "html")
}

func partFileName(bs *imap.BodyStructure) string {
	if name := bs.DispositionParams["filename"]; name != "" {
		return name
	}
	return bs.Params["name"]
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(a.MailboxName+"@"+a.HostName, "@")
		if a.PersonalName != "" {
			email = fmt.Sprintf("%s <%s>", a.PersonalName, email)
		}
		parts = append(parts, email)
	}
	return strings.Join(parts, ", ")
}
