package alert

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/ankalabs/pulse/pkg/config"
)

// SMTPSender sends alert emails through a plain SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	tmpl   *template.Template
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password),
		from:   cfg.SMTP.From,
		tmpl:   template.Must(template.New("alert").Parse(alertEmailTemplate)),
	}
}

// SendAlertEmail renders and delivers one alert email. The send runs in its
// own goroutine so the caller's context deadline bounds a stalled SMTP
// conversation; gomail itself has no context support.
func (s *SMTPSender) SendAlertEmail(ctx context.Context, payload EmailPayload) (string, error) {
	body, err := s.render(payload)
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}

	messageID := uuid.NewString()
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", payload.To)
	m.SetHeader("Subject", fmt.Sprintf("🚨 Alert: %s is DOWN", payload.CheckName))
	m.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("send alert email to %s: %w", payload.To, err)
		}
		return messageID, nil
	case <-ctx.Done():
		return "", fmt.Errorf("send alert email to %s: %w", payload.To, ctx.Err())
	}
}

type emailView struct {
	EmailPayload
	StatusText  string
	LatencyText string
	ErrorText   string
	Timestamp   string
}

func (s *SMTPSender) render(payload EmailPayload) (string, error) {
	view := emailView{
		EmailPayload: payload,
		StatusText:   "Timeout",
		LatencyText:  "N/A",
		ErrorText:    payload.ErrorMessage,
		Timestamp:    payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
	if payload.StatusCode != 0 {
		view.StatusText = fmt.Sprintf("Status Code: %d", payload.StatusCode)
	}
	if payload.LatencyMs > 0 {
		view.LatencyText = fmt.Sprintf("%dms", payload.LatencyMs)
	}
	if view.ErrorText == "" {
		view.ErrorText = "Service is not responding"
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const alertEmailTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Pulse Alert</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f5f5f5;">
  <table width="100%" cellpadding="0" cellspacing="0" style="background-color: #f5f5f5; padding: 40px 20px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" style="background-color: #ffffff; border-radius: 8px; overflow: hidden;">
          <tr>
            <td style="background: #dc2626; padding: 30px; text-align: center;">
              <h1 style="margin: 0; color: #ffffff; font-size: 24px;">🚨 Service Alert</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 40px 30px;">
              <p style="margin: 0 0 20px; color: #374151; font-size: 16px;">
                {{if .UserName}}Hi {{.UserName}},{{else}}Hi,{{end}}
              </p>
              <p style="margin: 0 0 30px; color: #374151; font-size: 16px;">
                Your monitored service <strong>{{.CheckName}}</strong> is currently down and not responding as expected.
              </p>
              <table width="100%" cellpadding="0" cellspacing="0" style="background-color: #fef2f2; border-left: 4px solid #dc2626; margin-bottom: 30px;">
                <tr>
                  <td style="padding: 20px;">
                    <p style="margin: 0 0 12px; color: #991b1b; font-size: 14px; font-weight: 600;">ALERT DETAILS</p>
                    <table width="100%" cellpadding="0" cellspacing="0" style="color: #111827; font-size: 14px;">
                      <tr><td style="padding: 6px 0; color: #6b7280; width: 120px;">Service:</td><td>{{.CheckName}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">URL:</td><td>{{.CheckURL}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">Status:</td><td>{{.StatusText}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">Latency:</td><td>{{.LatencyText}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">Region:</td><td>{{.Region}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">Error:</td><td>{{.ErrorText}}</td></tr>
                      <tr><td style="padding: 6px 0; color: #6b7280;">Time:</td><td>{{.Timestamp}}</td></tr>
                    </table>
                  </td>
                </tr>
              </table>
              <p style="margin: 0; color: #6b7280; font-size: 14px;">
                You will not receive another alert for this check for the next 30 minutes.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
