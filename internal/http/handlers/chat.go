package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ossterm/marketbot/internal/chat"
	"github.com/ossterm/marketbot/internal/dispatch"
	"github.com/ossterm/marketbot/internal/kakao"
	"github.com/ossterm/marketbot/pkg/logging"
)

const maxSkillRequestBytes = 1 << 20

// Replier answers one utterance within the platform deadline.
type Replier interface {
	Handle(ctx context.Context, u dispatch.Utterance) chat.Reply
}

type ChatHandlerConfig struct {
	Replier         Replier
	PublicBaseURL   string
	RequireCallback bool
	Logger          *logging.Logger
}

// ChatHandler is the skill webhook.
type ChatHandler struct {
	replier         Replier
	publicBaseURL   string
	requireCallback bool
	logger          *logging.Logger
}

func NewChatHandler(cfg ChatHandlerConfig) *ChatHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &ChatHandler{
		replier:         cfg.Replier,
		publicBaseURL:   strings.TrimSpace(cfg.PublicBaseURL),
		requireCallback: cfg.RequireCallback,
		logger:          cfg.Logger,
	}
}

// Chat handles POST /chat/.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, err := kakao.DecodeSkillRequest(http.MaxBytesReader(w, r.Body, maxSkillRequestBytes))
	if err != nil {
		h.logger.Warn("malformed skill request", "error", err)
		jsonError(w, "malformed skill request", http.StatusBadRequest)
		return
	}
	if err := req.Validate(h.requireCallback); err != nil {
		h.logger.Warn("rejected skill request", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := h.replier.Handle(r.Context(), dispatch.Utterance{
		Text:        req.Text(),
		CallbackURL: strings.TrimSpace(req.UserRequest.CallbackURL),
		BaseURL:     h.baseURL(r),
		UserID:      req.UserRequest.User.ID,
	})
	h.logger.Info("skill request answered", "outcome", reply.Outcome, "task_id", reply.TaskID)
	writeJSON(w, http.StatusOK, reply.Response)
}

// baseURL is the public root the report image URLs are built on, always
// ending in "/".
func (h *ChatHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return strings.TrimRight(h.publicBaseURL, "/") + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host + "/"
}
