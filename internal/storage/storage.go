package storage

import (
	"context"
	"errors"
	"time"

	"backendmanager/console/internal/domain"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
	// ErrAuditDisabled 未配置审计存储
	ErrAuditDisabled = errors.New("audit trail disabled")
)

// SessionStore 定义会话数据存取操作。
type SessionStore interface {
	SaveSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) // 返回删除数量
}

// AuditStore 定义审计记录存取操作，只追加不修改。
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) // 按时间倒序
}

// Pinger 可探活的存储后端
type Pinger interface {
	Ping(ctx context.Context) error
}

// DisabledAudit 未配置审计时使用的空实现
type DisabledAudit struct{}

// AppendAudit 丢弃记录
func (DisabledAudit) AppendAudit(context.Context, *domain.AuditEntry) error {
	return nil
}

// ListAudit 返回 ErrAuditDisabled
func (DisabledAudit) ListAudit(context.Context, int) ([]domain.AuditEntry, error) {
	return nil, ErrAuditDisabled
}
