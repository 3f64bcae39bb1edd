package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "has:attachment", searchQuery("has:attachment", "", 0))
	assert.Equal(t, "subject:(moto audit)", searchQuery("", "moto audit", 0))
	assert.Equal(t, "has:attachment subject:(moto audit) newer_than:45d", searchQuery(" has:attachment ", "moto audit", 45))
	assert.Equal(t, "", searchQuery(" ", "", 0))
}

func TestDecodeBase64URL(t *testing.T) {
	raw := []byte("Subject: Moto audit export\r\n\r\nsite_internal_id,date_of_visit")
	got, err := decodeBase64URL(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = decodeBase64URL(base64.URLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = decodeBase64URL("***")
	assert.Error(t, err)
}

func TestToFetched(t *testing.T) {
	raw := []byte("Message-ID: <export-1@portal.example.com>\r\n" +
		"From: =?UTF-8?Q?Audit_Portal?= <audits@example.com>\r\n" +
		"Subject: =?UTF-8?Q?Moto_audit_export_=E2=80=93_March?=\r\n" +
		"Date: Mon, 04 Mar 2024 09:15:00 +0100\r\n" +
		"\r\n" +
		"body\r\n")

	got := toFetched("18e0", 0, raw)
	assert.Equal(t, "gmail", got.Provider)
	assert.Equal(t, "<export-1@portal.example.com>", got.MessageID)
	assert.Equal(t, "Moto audit export – March", got.Subject)
	assert.Equal(t, "Audit Portal <audits@example.com>", got.From)
	assert.Equal(t, "2024-03-04T08:15:00Z", got.ReceivedAt)

	internal := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	got = toFetched("18e0", internal.UnixMilli(), raw)
	assert.Equal(t, "2024-03-05T10:00:00Z", got.ReceivedAt)
}

func TestToFetchedUnparsableHeaders(t *testing.T) {
	got := toFetched("18e1", 0, []byte("not a mail"))
	assert.Equal(t, "18e1", got.MessageID)
	assert.Empty(t, got.Subject)
	assert.NotEmpty(t, got.ReceivedAt)
}
