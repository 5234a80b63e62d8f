package memory

import (
	"context"
	"sync"
	"time"

	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/storage"
)

// SessionStore 基于内存的会话存储，适用于单实例部署
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewSessionStore 创建内存会话存储
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// SaveSession 保存会话（存储副本）
func (s *SessionStore) SaveSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

// GetSession 获取会话，已过期视为不存在
func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || session.Expired(s.now()) {
		return nil, storage.ErrSessionNotFound
	}

	clone := *session
	return &clone, nil
}

// DeleteSession 删除会话，不存在时不报错
func (s *SessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteExpiredSessions 删除过期会话
func (s *SessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// Count 当前会话数
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
