// Package webhook доставляет сообщения рассылки на вебхук пользователя.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// Client отправляет доставки POST-запросом с JSON-телом.
type Client struct {
	httpClient *http.Client
}

// NewClient создает клиент с таймаутом timeout на один запрос.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver отправляет доставку на url. Успехом считается любой ответ 2xx.
func (c *Client) Deliver(ctx context.Context, url string, d models.Delivery) error {
	const op = "webhook.Deliver"

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(d); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "auto-trigger-dispatcher")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	return nil
}
