package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ossterm/marketbot/internal/kakao"
)

// Deliverer pushes a finished reply to the platform's callback URL.
type Deliverer interface {
	Deliver(ctx context.Context, callbackURL string, resp *kakao.Response) error
}

// CallbackError is returned when the callback endpoint answers with a non-2xx status.
type CallbackError struct {
	Status int
	Body   string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("chat: callback returned status %d: %s", e.Status, e.Body)
}

// HTTPDeliverer makes a single best-effort POST per reply.
type HTTPDeliverer struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPDeliverer(client *http.Client, timeout time.Duration) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDeliverer{client: client, timeout: timeout}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, callbackURL string, resp *kakao.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("chat: marshal callback: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat: build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: post callback: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return &CallbackError{Status: res.StatusCode, Body: string(data)}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
