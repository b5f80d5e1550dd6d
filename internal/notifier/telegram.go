package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	Retries int
	Delay   time.Duration

	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration, logger *zap.Logger) *TelegramNotifier {
	if retries < 1 {
		retries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		Retries: retries,
		Delay:   delay,
		baseURL: defaultTelegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// New returns a Telegram notifier when both token and chat id are set and a
// Nop otherwise.
func New(token, chatID string, retries int, delay time.Duration, logger *zap.Logger) Notifier {
	if token == "" || chatID == "" {
		return Nop{}
	}
	return NewTelegramNotifier(token, chatID, retries, delay, logger)
}

func (t *TelegramNotifier) Send(message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.Token)
	resp, err := t.client.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

// SendWithRetry attempts Send up to Retries times, sleeping Delay between
// attempts, and returns every attempt's error joined when all fail.
func (t *TelegramNotifier) SendWithRetry(message string) error {
	var errs []error
	for attempt := 1; attempt <= t.Retries; attempt++ {
		err := t.Send(message)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		t.logger.Warn("Notifier | telegram send failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", t.Retries),
			zap.Error(err))
		if attempt < t.Retries {
			time.Sleep(t.Delay)
		}
	}
	return fmt.Errorf("telegram: giving up after %d attempts: %w", t.Retries, errors.Join(errs...))
}
