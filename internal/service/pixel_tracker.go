package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SergeiKhy/shuffle/internal/config"
	"go.uber.org/zap"
)

// События пикселя
const (
	PixelEventClickButton     = "ClickButton"
	PixelEventCompletePayment = "CompletePayment"
)

// PixelEvent серверное событие пикселя, отправляемое при переходе по ссылке
type PixelEvent struct {
	PixelID   string    `json:"pixel_code"`
	Event     string    `json:"event"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	LinkID    string    `json:"link_id"`
	URL       string    `json:"url"`
	IPAddress string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

// PixelTracker отправляет события пикселя. Реализации обязаны уважать ctx.
type PixelTracker interface {
	Track(ctx context.Context, event PixelEvent) error
}

type noopPixelTracker struct{}

func (noopPixelTracker) Track(context.Context, PixelEvent) error { return nil }

// httpPixelTracker отправляет события на Events API с повторными попытками
type httpPixelTracker struct {
	client      *http.Client
	endpoint    string
	accessToken string
	maxAttempts int
	logger      *zap.Logger
}

// NewPixelTracker возвращает HTTP трекер или пустой трекер, если endpoint не задан
func NewPixelTracker(cfg config.PixelConfig, logger *zap.Logger) PixelTracker {
	if cfg.EventsEndpoint == "" {
		return noopPixelTracker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &httpPixelTracker{
		client:      &http.Client{Timeout: cfg.Timeout},
		endpoint:    cfg.EventsEndpoint,
		accessToken: cfg.AccessToken,
		maxAttempts: attempts,
		logger:      logger,
	}
}

func (t *httpPixelTracker) Track(ctx context.Context, event PixelEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal pixel event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if lastErr = t.send(ctx, body); lastErr == nil {
			return nil
		}

		if attempt < t.maxAttempts {
			t.logger.Debug("Повторная отправка события пикселя",
				zap.String("link_id", event.LinkID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("pixel event failed after %d attempts: %w", t.maxAttempts, lastErr)
}

func (t *httpPixelTracker) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.accessToken != "" {
		req.Header.Set("Access-Token", t.accessToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("pixel endpoint returned %d", resp.StatusCode)
	}
	return nil
}
