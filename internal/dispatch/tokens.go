package dispatch

import (
	"context"
	"sync"

	"savari/internal/types"
)

// TokenRegistry is an in-process device-token store. Apps register their
// FCM token on login; the notifier resolves it at send time.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[types.ID]string
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[types.ID]string)}
}

func (r *TokenRegistry) Register(userID types.ID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token == "" {
		delete(r.tokens, userID)
		return
	}
	r.tokens[userID] = token
}

func (r *TokenRegistry) DeviceToken(ctx context.Context, userID types.ID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokens[userID], nil
}
