package alert

import (
	"context"
	"fmt"
	"time"

	imrocreq "github.com/imroc/req/v3"
)

const telegramSendTimeout = 10 * time.Second

// TelegramClient talks to the Telegram Bot API.
type TelegramClient struct {
	req   *imrocreq.Client
	token string
}

func NewTelegramClient(botToken string) *TelegramClient {
	return &TelegramClient{
		req:   imrocreq.C().SetTimeout(telegramSendTimeout),
		token: botToken,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers one HTML-formatted message to a chat.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID, html string) error {
	if t.token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	var result telegramResponse
	resp, err := t.req.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  chatID,
			"text":                     html,
			"parse_mode":               "HTML",
			"disable_web_page_preview": "true",
		}).
		SetSuccessResult(&result).
		SetErrorResult(&result).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram send to chat %s: %w", chatID, err)
	}
	if resp.IsErrorState() || !result.OK {
		reason := result.Description
		if reason == "" {
			reason = resp.Status
		}
		return fmt.Errorf("telegram send to chat %s: %s", chatID, reason)
	}
	return nil
}
