package dispatch

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"savari/internal/observability"
	"savari/internal/types"
)

var ErrNoSession = errors.New("no active websocket session")

// session wraps one connected client; writes are serialized since
// gorilla connections allow a single concurrent writer.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry tracks live driver and rider sockets so ride updates reach
// the apps without polling.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[types.ID]*session
	log      *zap.Logger
}

func NewWSRegistry(log *zap.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[types.ID]*session), log: log}
}

func (r *WSRegistry) Add(userID types.ID, conn *websocket.Conn) {
	r.mu.Lock()
	if old, ok := r.sessions[userID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[userID] = &session{conn: conn}
	n := len(r.sessions)
	r.mu.Unlock()
	observability.WSSessions.Set(float64(n))
	r.log.Debug("ws session added", zap.String("user_id", string(userID)))
}

func (r *WSRegistry) Remove(userID types.ID) {
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, userID)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	observability.WSSessions.Set(float64(n))
}

// Push sends one JSON payload to the user's socket, if connected.
func (r *WSRegistry) Push(userID types.ID, v any) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(v); err != nil {
		r.log.Warn("ws send failed", zap.String("user_id", string(userID)), zap.Error(err))
		r.Remove(userID)
		return err
	}
	return nil
}
