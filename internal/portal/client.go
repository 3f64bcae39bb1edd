package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mototracker/internal"
	"mototracker/internal/config"
)

var ErrMissingToken = errors.New("missing AUDIT_PORTAL_TOKEN")

const maxAttempts = 5

// Client pages through visits from the audit portal's export endpoint.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type exportPayload struct {
	Visits   []map[string]any `json:"visits"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PortalTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PortalRateLimitRPS),
	}
}

// ExportVisits fetches every visit between from and to, inclusive, following
// scroll ids until the portal stops returning one.
func (c *Client) ExportVisits(ctx context.Context, from, to time.Time) ([]internal.VisitRow, error) {
	all := make([]internal.VisitRow, 0)
	seen := map[string]struct{}{}
	params := map[string]string{
		"from": from.Format("02/01/2006"),
		"to":   to.Format("02/01/2006"),
	}

	for {
		body, err := c.fetchJSON(ctx, "audits/export", params)
		if err != nil {
			return nil, err
		}

		var payload exportPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode portal export page: %w", err)
		}

		for _, raw := range payload.Visits {
			all = append(all, toVisitRow(raw, len(all)+1))
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Visits) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		params["scrollId"] = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.PortalToken) == "" {
		return nil, ErrMissingToken
	}
	if err := c.cfg.Require(config.Setting{Name: "AUDIT_PORTAL_BASE_URL", Value: c.cfg.PortalBaseURL}); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(c.cfg.PortalBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.PortalToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = fmt.Errorf("portal status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("portal api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("portal api unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("portal request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// toVisitRow maps a portal visit onto the export columns. Absent fields stay
// empty rather than becoming placeholder text.
func toVisitRow(raw map[string]any, lineNo int) internal.VisitRow {
	return internal.VisitRow{
		LineNo:    lineNo,
		Source:    internal.SourcePortal,
		SiteID:    toString(raw["site_internal_id"]),
		VisitDate: toString(raw["date_of_visit"]),
		Result:    rawString(raw["primary_result"]),
		Tokens:    toTokens(raw["tokens"]),
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// rawString is toString without trimming; results are passed through as sent.
func rawString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return toString(v)
}

// toTokens accepts either a string or a list of tags; lists are joined the way
// the CSV export writes them.
func toTokens(v any) string {
	arr, ok := v.([]any)
	if !ok {
		return toString(v)
	}
	parts := make([]string, 0, len(arr))
	for _, item := range arr {
		if s := toString(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
