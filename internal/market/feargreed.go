package market

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const defaultCNNURL = "https://production.dataviz.cnn.io/index/fearandgreed/graphdata"

// CNNClient reads the current fear & greed score.
type CNNClient struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

func NewCNNClient(url string, client *http.Client) *CNNClient {
	if url == "" {
		url = defaultCNNURL
	}
	return &CNNClient{url: url, httpClient: defaultHTTPClient(client), now: time.Now}
}

// The endpoint has answered both with a bare score and with a nested
// fear_and_greed object.
type fearGreedPayload struct {
	Score        *float64 `json:"score"`
	Rating       string   `json:"rating"`
	FearAndGreed *struct {
		Score  float64 `json:"score"`
		Rating string  `json:"rating"`
	} `json:"fear_and_greed"`
}

func (c *CNNClient) Current(ctx context.Context) (FearGreed, error) {
	var payload fearGreedPayload
	err := getJSON(ctx, c.httpClient, "cnn", c.url, map[string]string{"Referer": "https://www.cnn.com/"}, &payload)
	if err != nil {
		return FearGreed{}, err
	}

	fg := FearGreed{Timestamp: c.now()}
	switch {
	case payload.Score != nil:
		fg.Score = *payload.Score
		fg.Rating = payload.Rating
	case payload.FearAndGreed != nil:
		fg.Score = payload.FearAndGreed.Score
		fg.Rating = payload.FearAndGreed.Rating
	default:
		return FearGreed{}, errors.New("market: unexpected fear & greed payload")
	}
	return fg, nil
}

// Mood maps a score to its Korean sentiment band.
func Mood(score float64) string {
	switch {
	case score <= 25:
		return "극도의 공포"
	case score <= 45:
		return "공포"
	case score <= 55:
		return "중립"
	case score <= 75:
		return "탐욕"
	default:
		return "극도의 탐욕"
	}
}
