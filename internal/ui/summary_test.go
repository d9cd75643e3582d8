package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	out := RenderSummary("campaign layer run", []SummaryRow{
		{Step: "ingest campaign insights", Status: "succeeded", Detail: "120 row(s) uploaded", Elapsed: 1500 * time.Millisecond},
		{Step: "rebuild campaign staging", Status: "failed_partial", Detail: "2/3 raw table(s)", Elapsed: 300 * time.Millisecond},
	})

	assert.Contains(t, out, "campaign layer run")
	assert.Contains(t, out, "ingest campaign insights")
	assert.Contains(t, out, "rebuild campaign staging")
	assert.Contains(t, out, "120 row(s) uploaded")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "failed_partial")
}

func TestRenderSummaryEmpty(t *testing.T) {
	out := RenderSummary("empty run", nil)
	assert.Contains(t, out, "empty run")
}
