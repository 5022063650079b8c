package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/vitality/internal/infra/config"
)

func TestPrintFilters_MarksEnabled(t *testing.T) {
	cfg := &config.Config{Filters: map[string]config.FilterConfig{
		"duplicate_track_filter": {Enabled: true},
		"queue_limit_filter":     {Enabled: false},
	}}

	var buf bytes.Buffer
	printFilters(&buf, cfg)
	out := buf.String()

	assert.Regexp(t, `duplicate_track_filter\s+- .*\(enabled\)`, out)
	assert.Regexp(t, `queue_limit_filter\s+- .*\(disabled\)`, out)
	assert.Regexp(t, `user_pending_filter\s+- .*\(disabled\)`, out)
}

func TestPrintFilters_NoConfig(t *testing.T) {
	var buf bytes.Buffer
	printFilters(&buf, nil)
	out := buf.String()

	assert.Contains(t, out, "Available Filters:")
	assert.Contains(t, out, "duration_limit_filter")
	assert.NotContains(t, out, "enabled)")
}
