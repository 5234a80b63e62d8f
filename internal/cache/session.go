package cache

import (
	"context"
	"time"

	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/storage"
)

// DefaultSessionTTL 会话在本地缓存中的停留时间
const DefaultSessionTTL = 30 * time.Second

// SessionStore 在远端会话存储前加一层本地缓存
//
// 每个请求都要查找会话；缓存命中时不访问 Redis。多实例部署时，
// 其他实例上的退出登录最多延迟一个 TTL 生效。
type SessionStore struct {
	inner storage.SessionStore
	local *LocalCache[domain.Session]
	now   func() time.Time
}

// NewSessionStore 包装会话存储
func NewSessionStore(inner storage.SessionStore, maxSize int, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		inner: inner,
		local: NewLocalCache[domain.Session](maxSize, ttl),
		now:   time.Now,
	}
}

// SaveSession 写入远端并刷新本地副本
func (s *SessionStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if err := s.inner.SaveSession(ctx, session); err != nil {
		s.local.Delete(session.ID)
		return err
	}
	s.local.Set(session.ID, *session, 0)
	return nil
}

// GetSession 先查本地缓存，未命中时读取远端
func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if cached, ok := s.local.Get(id); ok {
		if cached.Expired(s.now()) {
			s.local.Delete(id)
			return nil, storage.ErrSessionNotFound
		}
		return &cached, nil
	}

	session, err := s.inner.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.local.Set(id, *session, 0)
	return session, nil
}

// DeleteSession 删除远端与本地副本
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	s.local.Delete(id)
	return s.inner.DeleteSession(ctx, id)
}

// DeleteExpiredSessions 清理本地过期条目并委托远端
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.local.Cleanup()
	return s.inner.DeleteExpiredSessions(ctx, now)
}

// Ping 远端支持探活时转发
func (s *SessionStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close 远端支持关闭时转发
func (s *SessionStore) Close() error {
	if c, ok := s.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
