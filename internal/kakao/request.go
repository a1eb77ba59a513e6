package kakao

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrMissingUtterance is returned when userRequest.utterance is absent or blank.
	ErrMissingUtterance = errors.New("kakao: userRequest.utterance is required")
	// ErrMissingCallbackURL is returned when a callback URL is required but absent.
	ErrMissingCallbackURL = errors.New("kakao: userRequest.callbackUrl is required")
	// ErrInvalidCallbackURL is returned when the callback URL is not an absolute http(s) URL.
	ErrInvalidCallbackURL = errors.New("kakao: userRequest.callbackUrl must be an absolute http(s) URL")
)

// User identifies the platform user behind a request.
type User struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// UserRequest is the user-facing part of a skill request.
type UserRequest struct {
	Utterance   *string `json:"utterance"`
	CallbackURL string  `json:"callbackUrl,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Lang        string  `json:"lang,omitempty"`
	User        User    `json:"user"`
}

// SkillRequest is the JSON body the platform posts to the skill webhook.
type SkillRequest struct {
	UserRequest UserRequest     `json:"userRequest"`
	Action      json.RawMessage `json:"action,omitempty"`
	Bot         json.RawMessage `json:"bot,omitempty"`
}

// DecodeSkillRequest parses a skill request body.
func DecodeSkillRequest(r io.Reader) (*SkillRequest, error) {
	var req SkillRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("kakao: decode skill request: %w", err)
	}
	return &req, nil
}

// Validate rejects requests that must not reach dispatch.
func (r *SkillRequest) Validate(requireCallback bool) error {
	if r == nil || r.UserRequest.Utterance == nil || strings.TrimSpace(*r.UserRequest.Utterance) == "" {
		return ErrMissingUtterance
	}
	cb := strings.TrimSpace(r.UserRequest.CallbackURL)
	if cb == "" {
		if requireCallback {
			return ErrMissingCallbackURL
		}
		return nil
	}
	u, err := url.Parse(cb)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidCallbackURL
	}
	return nil
}

// Text returns the utterance text, or "" when absent.
func (r *SkillRequest) Text() string {
	if r == nil || r.UserRequest.Utterance == nil {
		return ""
	}
	return *r.UserRequest.Utterance
}
