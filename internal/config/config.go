package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	ExportXLSX bool

	LogLevel  string
	LogFormat string

	PortalBaseURL      string
	PortalToken        string
	PortalRateLimitRPS int
	PortalTimeoutMs    int

	DetectThreshold float64

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	MailQuery         string
	MailSinceDays     int

	IMAPHost          string
	IMAPPort          int
	IMAPSecure        bool
	IMAPUser          string
	IMAPPassword      string
	IMAPMarkSeen      bool
	MailSubjectFilter string

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     envString("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: envString("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  envString("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ExportXLSX: envBool("EXPORT_XLSX", false),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),

		PortalBaseURL:      envString("AUDIT_PORTAL_BASE_URL", ""),
		PortalToken:        envString("AUDIT_PORTAL_TOKEN", ""),
		PortalRateLimitRPS: envInt("AUDIT_PORTAL_RATE_LIMIT_RPS", 5),
		PortalTimeoutMs:    envInt("AUDIT_PORTAL_TIMEOUT_MS", 30000),

		DetectThreshold: envFloat("DETECT_THRESHOLD", 0.5),

		GmailClientID:     envString("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: envString("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  envString("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: envString("GMAIL_REFRESH_TOKEN", ""),
		MailQuery:         envString("MAIL_QUERY", "has:attachment"),
		MailSinceDays:     envInt("MAIL_SINCE_DAYS", 45),

		IMAPHost:          envString("IMAP_HOST", ""),
		IMAPPort:          envInt("IMAP_PORT", 993),
		IMAPSecure:        envBool("IMAP_SECURE", true),
		IMAPUser:          envString("IMAP_USER", ""),
		IMAPPassword:      envString("IMAP_PASSWORD", ""),
		IMAPMarkSeen:      envBool("IMAP_MARK_SEEN", false),
		MailSubjectFilter: envString("MAIL_SUBJECT_FILTER", ""),

		MailListenerProvider:     envString("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        envString("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  envInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:     envInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: envInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	return cfg, nil
}

// ErrMissingEnv is wrapped by Require.
var ErrMissingEnv = errors.New("missing required env")

// Setting pairs an env var name with the value it loaded into.
type Setting struct {
	Name  string
	Value string
}

// Require reports every blank setting in one error, in the order given.
func (c Config) Require(settings ...Setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.Value) == "" {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
}

// A blank variable counts as unset. Values that do not parse fall back to the
// default with a warning.
func envValue[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		slog.Warn("ignoring invalid env value", "key", key, "value", raw)
		return fallback
	}
	return value
}

func envString(key, fallback string) string {
	return envValue(key, fallback, func(v string) (string, error) { return v, nil })
}

func envInt(key string, fallback int) int {
	return envValue(key, fallback, strconv.Atoi)
}

func envFloat(key string, fallback float64) float64 {
	return envValue(key, fallback, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func envBool(key string, fallback bool) bool {
	return envValue(key, fallback, parseSwitch)
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a switch: %q", v)
}
