package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to one chat through the Bot API
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for the bot token and chat
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, level, message string) error {
	emoji := "ℹ️"
	switch level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🚨"
	case LevelSuccess:
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Trend Engine*\n\n%s", emoji, message)
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
