// Package replylog persists the most recently computed answer so a user who
// re-asks with the "finished?" marker can retrieve a reply that completed
// after the webhook deadline.
//
// By default there is a single slot per process (GlobalKey). Concurrent users
// share that slot and the last write wins; ScopeUser keys the slot by user ID.
package replylog

import (
	"context"
	"errors"
	"strings"
)

// GlobalKey is the slot used when replies are not scoped per user.
const GlobalKey = "global"

// Entry kinds written by the dispatcher.
const (
	KindAsk       = "ask"
	KindRetrieval = "v"
	KindSearch    = "s"
	KindNews      = "news"
	KindImage     = "img"
)

// ErrEmpty is returned by Read when no reply is pending.
var ErrEmpty = errors.New("replylog: no pending reply")

// Entry is one pending reply.
type Entry struct {
	Kind   string `json:"kind"`
	Answer string `json:"answer"`
	Prompt string `json:"prompt"`
}

// IsZero reports whether the entry holds nothing.
func (e Entry) IsZero() bool {
	return e.Kind == "" && e.Answer == "" && e.Prompt == ""
}

// Store is a keyed single-slot register. Read does not clear; Clear is idempotent.
type Store interface {
	Write(ctx context.Context, key string, entry Entry) error
	Read(ctx context.Context, key string) (Entry, error)
	Clear(ctx context.Context, key string) error
}

// Scope decides which slot a user's replies go to.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
)

// ParseScope maps a config value to a Scope, defaulting to ScopeGlobal.
func ParseScope(s string) Scope {
	if strings.EqualFold(strings.TrimSpace(s), string(ScopeUser)) {
		return ScopeUser
	}
	return ScopeGlobal
}

// Key returns the slot key for userID under this scope.
func (s Scope) Key(userID string) string {
	userID = strings.TrimSpace(userID)
	if s != ScopeUser || userID == "" {
		return GlobalKey
	}
	return "user:" + userID
}
