package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPreview(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	RenderPreview(&buf, res.Table, 0)
	out := buf.String()
	assert.Contains(t, out, "Site Code")
	assert.Contains(t, out, "January '24 Extra")
	assert.Contains(t, out, "SITE306813")
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	RenderPreview(&buf, res.Table, 2)
	out = buf.String()
	assert.Contains(t, out, "March '24 Extra")
	assert.NotContains(t, out, "January '24")
	assert.True(t, strings.HasSuffix(out, "(2 earlier columns hidden)\n"))
}

func TestSummaryLine(t *testing.T) {
	res := sampleResult(t)
	assert.Equal(t, "rows=3 valid=3 dropped_dates=0 skipped_sites=0 columns=4 filled=2 na=107", SummaryLine(res))
}
