package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultAPIBaseURL = "https://kapi.kakao.com"
	memoPath          = "/v2/api/talk/memo/default/send"
	defaultLinkURL    = "https://finance.yahoo.com"

	memoMaxRunes       = 4000
	memoTruncatedRunes = 3800
	memoTruncateNotice = "...\n[메시지가 너무 길어 일부 생략되었습니다]"

	maxMemoBackoff = 30 * time.Second
)

// MemoConfig controls how the "memo to me" client behaves.
type MemoConfig struct {
	BaseURL     string
	AccessToken string
	LinkURL     string
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// MemoClient pushes text messages to the token owner's own Kakao chat.
type MemoClient struct {
	baseURL    string
	token      string
	linkURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// APIError is a non-2xx reply from the Kakao API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kakao: api returned status %d: %s", e.Status, e.Body)
}

// NewMemoClient creates a configured MemoClient.
func NewMemoClient(cfg MemoConfig) (*MemoClient, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("kakao: access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	linkURL := cfg.LinkURL
	if linkURL == "" {
		linkURL = defaultLinkURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoClient{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		linkURL:    linkURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

type memoLink struct {
	WebURL       string `json:"web_url"`
	MobileWebURL string `json:"mobile_web_url"`
}

type memoTemplate struct {
	ObjectType string   `json:"object_type"`
	Text       string   `json:"text"`
	Link       memoLink `json:"link"`
}

// TruncateMemo caps a message at the memo API's length limit.
func TruncateMemo(message string) string {
	if utf8.RuneCountInString(message) <= memoMaxRunes {
		return message
	}
	runes := []rune(message)
	return string(runes[:memoTruncatedRunes]) + memoTruncateNotice
}

// SendText posts a text memo, retrying transient failures.
func (c *MemoClient) SendText(ctx context.Context, message string) error {
	tmpl, err := json.Marshal(memoTemplate{
		ObjectType: "text",
		Text:       TruncateMemo(message),
		Link:       memoLink{WebURL: c.linkURL, MobileWebURL: c.linkURL},
	})
	if err != nil {
		return fmt.Errorf("kakao: marshal memo template: %w", err)
	}
	form := url.Values{"template_object": {string(tmpl)}}.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+memoPath, strings.NewReader(form))
		if err != nil {
			return fmt.Errorf("kakao: build memo request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("kakao: http error: %w", err)
			if !retryable(0, err) || attempt == c.maxRetries {
				return lastErr
			}
			c.logRetry(attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("kakao: read memo response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = &APIError{Status: resp.StatusCode, Body: string(body)}
		if attempt < c.maxRetries && retryable(resp.StatusCode, nil) {
			c.logRetry(attempt, resp.StatusCode, lastErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		return lastErr
	}
	return lastErr
}

func (c *MemoClient) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(backoffDelay(c.backoff, attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay doubles base per attempt, capped at maxMemoBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt && delay < maxMemoBackoff; i++ {
		delay *= 2
	}
	if delay > maxMemoBackoff || delay <= 0 {
		return maxMemoBackoff
	}
	return delay
}

func (c *MemoClient) logRetry(attempt, status int, err error) {
	c.logger.Warn("kakao memo retry",
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func retryable(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	return status == http.StatusTooManyRequests || status >= 500
}
