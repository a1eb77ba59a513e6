package router

import (
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ossterm/marketbot/internal/http/handlers"
	httpmiddleware "github.com/ossterm/marketbot/internal/http/middleware"
	"github.com/ossterm/marketbot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ChatHandler    *handlers.ChatHandler
	MetricsHandler http.Handler

	// DataDir is served read-only: rendered images under /data/images/
	// and collected news under /data/news/.
	DataDir string

	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ChatHandler != nil {
		r.With(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst)).
			Post("/chat/", cfg.ChatHandler.Chat)
	}

	if cfg.DataDir != "" {
		r.Group(func(static chi.Router) {
			static.Use(middleware.Compress(5))
			static.Use(middleware.SetHeader("Cache-Control", "public, max-age=300"))
			mountDir(static, "/data/images/", filepath.Join(cfg.DataDir, "images"))
			mountDir(static, "/data/news/", filepath.Join(cfg.DataDir, "raw", "news"))
		})
	}

	return r
}

func mountDir(r chi.Router, prefix, dir string) {
	r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(noListing{http.Dir(dir)})))
}

// noListing hides directory indexes.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
