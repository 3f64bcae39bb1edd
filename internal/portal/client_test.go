package portal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mototracker/internal"
	"mototracker/internal/config"
	"mototracker/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.PortalToken = "test"
	cfg.PortalBaseURL = "https://portal.example.test/api/v2"
	cfg.PortalRateLimitRPS = 1000

	client := NewClient(cfg)
	client.httpClient = &http.Client{Transport: rt}
	return client
}

func TestExportVisitsWithRetryAndScroll(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/api/v2/audits/export", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.Equal(t, "01/01/2024", r.URL.Query().Get("from"))
		attempt++
		switch attempt {
		case 1:
			return jsonResponse(http.StatusServiceUnavailable, map[string]any{"error": "busy"}), nil
		case 2:
			assert.Empty(t, r.URL.Query().Get("scrollId"))
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"visits": []map[string]any{
					{"site_internal_id": "SITE32718", "date_of_visit": "03/01/2024", "primary_result": "pass", "tokens": "monthly"},
				},
				"scrollId": "abc",
			}}), nil
		default:
			assert.Equal(t, "abc", r.URL.Query().Get("scrollId"))
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"visits": []map[string]any{
					{"site_internal_id": 32719, "date_of_visit": "05/01/2024", "tokens": []any{"extra", "revisit"}},
				},
				"scrollId": nil,
			}}), nil
		}
	})

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := client.ExportVisits(context.Background(), from, from.AddDate(0, 1, -1))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, attempt)

	assert.Equal(t, internal.VisitRow{LineNo: 1, Source: internal.SourcePortal, SiteID: "SITE32718", VisitDate: "03/01/2024", Result: "pass", Tokens: "monthly"}, rows[0])
	assert.Equal(t, "32719", rows[1].SiteID)
	assert.Equal(t, "", rows[1].Result)
	assert.Equal(t, "extra, revisit", rows[1].Tokens)
}

func TestExportVisitsStopsOnRepeatedScroll(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"visits":   []map[string]any{{"site_internal_id": "SITE32718", "date_of_visit": "03/01/2024"}},
			"scrollId": "same",
		}}), nil
	})
	rows, err := client.ExportVisits(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, rows, 2)
}

func TestExportVisitsErrors(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, map[string]any{"error": "nope"}), nil
	})
	_, err := client.ExportVisits(context.Background(), time.Now(), time.Now())
	assert.ErrorContains(t, err, "status=403")

	client = testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, map[string]any{"success": false, "message": "bad range"}), nil
	})
	_, err = client.ExportVisits(context.Background(), time.Now(), time.Now())
	assert.ErrorContains(t, err, "bad range")

	client.cfg.PortalToken = ""
	_, err = client.ExportVisits(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestExportServiceRecordsPull(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	var froms []string
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		froms = append(froms, r.URL.Query().Get("from"))
		return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{"visits": []map[string]any{}}}), nil
	})
	svc := NewExportService(db, client)

	_, ok, err := svc.DefaultFrom()
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := svc.Pull(context.Background(), time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.January, 15, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, rows)

	last, ok, err := svc.LastPull()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), last)

	from, ok, err := svc.DefaultFrom()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), from)

	_, err = svc.Pull(context.Background(), from, time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"01/12/2023", "01/01/2024"}, froms)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}

func TestToVisitRow(t *testing.T) {
	row := toVisitRow(map[string]any{
		"site_internal_id": " SITE32718 ",
		"date_of_visit":    "03/01/2024",
		"primary_result":   " pass ",
		"tokens":           []any{"Monthly", "re-visit"},
	}, 4)
	assert.Equal(t, "SITE32718", row.SiteID)
	assert.Equal(t, " pass ", row.Result)
	assert.Equal(t, 4, row.LineNo)
	assert.Equal(t, internal.SourcePortal, row.Source)

	row = toVisitRow(map[string]any{"site_internal_id": float64(306813), "date_of_visit": "03/01/2024"}, 1)
	assert.Equal(t, "306813", row.SiteID)
	assert.Equal(t, "", row.Result)
	assert.Equal(t, "", row.Tokens)
}
