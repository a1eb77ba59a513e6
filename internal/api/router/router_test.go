package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossterm/marketbot/internal/chat"
	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/http/handlers"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/pkg/logging"
)

type echoReplier struct{}

func (echoReplier) Handle(_ context.Context, u dispatch.Utterance) chat.Reply {
	return chat.Reply{Response: kakao.Text(u.Text), Outcome: chat.OutcomeImmediate}
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	dataDir := t.TempDir()
	images := filepath.Join(dataDir, "images", "market_data")
	require.NoError(t, os.MkdirAll(images, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "table_기술주_20241208.png"), []byte("png-bytes"), 0o644))
	news := filepath.Join(dataDir, "raw", "news")
	require.NoError(t, os.MkdirAll(news, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(news, "collected_news_20241208_070000.json"), []byte(`{"status":"success"}`), 0o644))

	logger := logging.Default()
	return New(&Config{
		Logger:         logger,
		ChatHandler:    handlers.NewChatHandler(handlers.ChatHandlerConfig{Replier: echoReplier{}, Logger: logger}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		DataDir:        dataDir,
	}), dataDir
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRouterChatEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"userRequest":{"utterance":"hello","callbackUrl":"https://cb.example/1","user":{"id":"u"}}}`
	req := httptest.NewRequest(http.MethodPost, "/chat/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"simpleText":{"text":"hello"}`)
}

func TestRouterServesReportImages(t *testing.T) {
	router, _ := newTestRouter(t)

	path := "/data/images/market_data/" + url.PathEscape("table_기술주_20241208.png")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png-bytes", rr.Body.String())
}

func TestRouterServesNews(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/data/news/collected_news_20241208_070000.json", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "success")
}

func TestRouterHidesDirectoryListing(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/data/images/market_data/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rr.Body.String())
}
