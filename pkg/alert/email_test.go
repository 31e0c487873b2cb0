package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankalabs/pulse/pkg/config"
)

func renderPayload() EmailPayload {
	return EmailPayload{
		To:         "ada@example.com",
		UserName:   "Ada",
		CheckName:  "api",
		CheckURL:   "https://example.com/health",
		StatusCode: 503,
		LatencyMs:  240,
		Region:     "us-east",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderDownEmail(t *testing.T) {
	s := NewSMTPSender(&config.Config{})

	body, err := s.render(renderPayload())
	require.NoError(t, err)

	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "api")
	assert.Contains(t, body, "https://example.com/health")
	assert.Contains(t, body, "Status Code: 503")
	assert.Contains(t, body, "240ms")
	assert.Contains(t, body, "2026-03-01 12:00:00 UTC")
	assert.Contains(t, body, "Service is not responding")
}

func TestRenderTimeoutEmail(t *testing.T) {
	s := NewSMTPSender(&config.Config{})

	payload := renderPayload()
	payload.StatusCode = 0
	payload.LatencyMs = 0
	payload.ErrorMessage = "Request timeout"

	body, err := s.render(payload)
	require.NoError(t, err)

	assert.Contains(t, body, "Timeout")
	assert.Contains(t, body, "N/A")
	assert.Contains(t, body, "Request timeout")
}

func TestRenderWithoutUserName(t *testing.T) {
	s := NewSMTPSender(&config.Config{})

	payload := renderPayload()
	payload.UserName = ""

	body, err := s.render(payload)
	require.NoError(t, err)
	assert.Contains(t, body, "Hi,")
}
