package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/metrics"
)

// Cooldown is the minimum gap between notifications for the same check,
// across all channels. Failures inside the window still produce
// CheckResults, just no Alert activity. The per-plan cooldown field in the
// plan catalogue is display-only and deliberately not consulted here.
const Cooldown = 30 * time.Minute

// EmailPayload is everything the alert email template needs.
type EmailPayload struct {
	To           string
	UserName     string
	CheckName    string
	CheckURL     string
	StatusCode   int
	LatencyMs    int64
	Region       string
	ErrorMessage string
	Timestamp    time.Time
}

// EmailSender delivers one alert email. Best-effort: a send error is
// recorded, never escalated.
type EmailSender interface {
	SendAlertEmail(ctx context.Context, payload EmailPayload) (messageID string, err error)
}

// TelegramSender delivers one HTML-formatted Telegram message.
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID, html string) error
}

// Store is the persistence surface the dispatcher needs.
type Store interface {
	LatestAlert(ctx context.Context, checkID uint) (*model.Alert, error)
	CreateAlert(ctx context.Context, alert *model.Alert) error
	FindCheckWithOwner(ctx context.Context, checkID uint) (*model.Check, error)
	GetResult(ctx context.Context, id uint) (*model.CheckResult, error)
}

// Dispatcher decides whether and where to notify on a failing check.
// Per-check alerting cycles Quiet -> Notifying -> Quiet: a notification
// restarts the cooldown clock, and every failure during cooldown is
// suppressed entirely.
type Dispatcher struct {
	store    Store
	email    EmailSender
	telegram TelegramSender

	cooldown time.Duration
	now      func() time.Time
}

func NewDispatcher(store Store, email EmailSender, telegram TelegramSender) *Dispatcher {
	return &Dispatcher{
		store:    store,
		email:    email,
		telegram: telegram,
		cooldown: Cooldown,
		now:      time.Now,
	}
}

// HandleFailure runs the full notify flow for one failing result. Any
// internal error is converted into a best-effort failed Alert row and
// returned; callers log it but must not treat it as a job failure.
func (d *Dispatcher) HandleFailure(ctx context.Context, checkID, checkResultID uint) error {
	err := d.dispatch(ctx, checkID, checkResultID)
	if err == nil {
		return nil
	}

	failed := &model.Alert{
		CheckID:       checkID,
		CheckResultID: checkResultID,
		Channel:       model.AlertChannelEmail,
		Success:       false,
		Reason:        err.Error(),
		SentAt:        d.now(),
	}
	if dbErr := d.store.CreateAlert(ctx, failed); dbErr != nil {
		logutils.Log.Errorf("alert: could not record failed alert for check %d: %v", checkID, dbErr)
	}
	return fmt.Errorf("alert dispatch for check %d: %w", checkID, err)
}

func (d *Dispatcher) dispatch(ctx context.Context, checkID, checkResultID uint) error {
	recent, err := d.store.LatestAlert(ctx, checkID)
	if err != nil {
		return fmt.Errorf("load latest alert: %w", err)
	}
	if recent != nil && d.now().Sub(recent.SentAt) < d.cooldown {
		logutils.Log.Infof("alert: check %d in cooldown since %s, suppressing", checkID, recent.SentAt.Format(time.RFC3339))
		metrics.AlertsSuppressed.Inc()
		return nil
	}

	check, err := d.store.FindCheckWithOwner(ctx, checkID)
	if err != nil {
		return fmt.Errorf("load check: %w", err)
	}
	result, err := d.store.GetResult(ctx, checkResultID)
	if err != nil {
		return fmt.Errorf("load result: %w", err)
	}

	owner := &check.User
	if owner.EmailAlertsEnabled {
		d.notifyEmail(ctx, check, owner, result)
	}
	d.maybeNotifyTelegram(ctx, check, owner, result)
	return nil
}

func (d *Dispatcher) notifyEmail(ctx context.Context, check *model.Check, owner *model.User, result *model.CheckResult) {
	payload := EmailPayload{
		To:           owner.Email,
		UserName:     owner.Name,
		CheckName:    checkDisplayName(check),
		CheckURL:     check.URL,
		StatusCode:   result.StatusCode,
		LatencyMs:    result.LatencyMs,
		Region:       result.Region,
		ErrorMessage: result.ErrorMessage,
		Timestamp:    d.now(),
	}

	messageID, sendErr := d.email.SendAlertEmail(ctx, payload)

	// The Alert row is written whether or not the send worked: the audit
	// trail records attempts, not just deliveries.
	row := &model.Alert{
		CheckID:       check.ID,
		CheckResultID: result.ID,
		Channel:       model.AlertChannelEmail,
		Success:       sendErr == nil,
		SentAt:        d.now(),
	}
	if sendErr != nil {
		row.Reason = sendErr.Error()
		logutils.Log.Errorf("alert: email for check %d to %s failed: %v", check.ID, owner.Email, sendErr)
	} else {
		logutils.Log.Infof("alert: email for check %d sent to %s (message %s)", check.ID, owner.Email, messageID)
	}
	metrics.ObserveAlert(model.AlertChannelEmail, sendErr == nil)

	if err := d.store.CreateAlert(ctx, row); err != nil {
		logutils.Log.Errorf("alert: could not record email alert for check %d: %v", check.ID, err)
	}
}

func (d *Dispatcher) maybeNotifyTelegram(ctx context.Context, check *model.Check, owner *model.User, result *model.CheckResult) {
	if !owner.TelegramAlertsEnabled {
		return
	}

	// A missing chat id or an ineligible plan is a configuration gap, not a
	// send failure: skip without an Alert row.
	if owner.TelegramChatID == "" {
		logutils.Log.Warnf("alert: check %d owner has telegram enabled but no chat id, skipping", check.ID)
		return
	}
	if !model.PlanFor(owner.PlanType).TelegramAlerts {
		logutils.Log.Infof("alert: check %d owner on %s plan, telegram not included, skipping", check.ID, owner.PlanType)
		return
	}

	sendErr := d.telegram.SendMessage(ctx, owner.TelegramChatID, telegramMessage(check, result))

	row := &model.Alert{
		CheckID:       check.ID,
		CheckResultID: result.ID,
		Channel:       model.AlertChannelTelegram,
		Success:       sendErr == nil,
		SentAt:        d.now(),
	}
	if sendErr != nil {
		row.Reason = sendErr.Error()
		logutils.Log.Errorf("alert: telegram for check %d to chat %s failed: %v", check.ID, owner.TelegramChatID, sendErr)
	} else {
		logutils.Log.Infof("alert: telegram for check %d sent to chat %s", check.ID, owner.TelegramChatID)
	}
	metrics.ObserveAlert(model.AlertChannelTelegram, sendErr == nil)

	if err := d.store.CreateAlert(ctx, row); err != nil {
		logutils.Log.Errorf("alert: could not record telegram alert for check %d: %v", check.ID, err)
	}
}

func checkDisplayName(check *model.Check) string {
	if check.Name != "" {
		return check.Name
	}
	return check.URL
}

func telegramMessage(check *model.Check, result *model.CheckResult) string {
	status := "no response"
	if result.StatusCode != 0 {
		status = fmt.Sprintf("HTTP %d", result.StatusCode)
	}
	detail := result.ErrorMessage
	if detail == "" {
		detail = "Service is not responding as expected"
	}
	return fmt.Sprintf(
		"🚨 <b>%s is DOWN</b>\n\n<b>URL:</b> %s\n<b>Status:</b> %s\n<b>Region:</b> %s\n<b>Latency:</b> %dms\n\n<i>%s</i>",
		checkDisplayName(check), check.URL, status, result.Region, result.LatencyMs, detail,
	)
}
