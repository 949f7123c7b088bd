package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

// Client delivers alerts through the Telegram Bot API. It implements notify.Sink.
type Client struct {
	token      string
	chatIDs    []string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Telegram client that posts to every chat id, at most
// perMinute messages per minute across all chats. perMinute <= 0 disables the limit.
func NewClient(token string, chatIDs []string, perMinute int, timeout time.Duration, logger *slog.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
		burst = max(1, len(chatIDs))
	}
	return &Client{
		token:   token,
		chatIDs: chatIDs,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// APIError is a rejection reported by the Bot API.
type APIError struct {
	ChatID      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error for chat %s: status %d: %s", e.ChatID, e.StatusCode, e.Description)
}

// Send implements notify.Sink. The alert counts as delivered only when every
// chat accepted it; the remaining chats are still attempted after a failure.
func (c *Client) Send(ctx context.Context, alert notify.Alert) error {
	if len(c.chatIDs) == 0 {
		return errors.New("telegram: no chat ids configured")
	}
	var errs []error
	for _, chatID := range c.chatIDs {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// Wait gives up early when the next token is due after the deadline.
				err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
			}
			errs = append(errs, fmt.Errorf("telegram rate limit for chat %s: %w", chatID, err))
			break
		}
		if err := c.sendMessage(ctx, chatID, alert.Text); err != nil {
			c.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram sendMessage for chat %s: %w", chatID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp response
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{ChatID: chatID, StatusCode: resp.StatusCode, Description: string(raw)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return &APIError{ChatID: chatID, StatusCode: resp.StatusCode, Description: apiResp.Description}
	}
	return nil
}

// Bot API request and response types.

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type response struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}
