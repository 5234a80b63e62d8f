package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/pool"
	"backendmanager/console/internal/storage"
)

const auditWriteTimeout = 5 * time.Second

// Auditor 异步写入操作审计
type Auditor struct {
	store  storage.AuditStore
	pool   *pool.WorkerPool
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditor 创建审计记录器，pool 为 nil 时同步写入
func NewAuditor(store storage.AuditStore, workers *pool.WorkerPool, logger *zap.Logger) *Auditor {
	if store == nil {
		store = storage.DisabledAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{
		store:  store,
		pool:   workers,
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

// Record 追加一条审计记录，写入失败只记录日志
func (a *Auditor) Record(session *domain.Session, action domain.Action, target, outcome, message string) {
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		Action:    string(action),
		Target:    target,
		Outcome:   outcome,
		Message:   message,
		CreatedAt: a.now().UTC(),
	}
	if session != nil {
		entry.SessionUID = session.UID
		entry.Email = session.Email
	}

	task := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
		defer cancel()
		if err := a.store.AppendAudit(ctx, entry); err != nil {
			a.logger.Warn("Failed to write audit entry",
				zap.String("action", entry.Action),
				zap.Error(err),
			)
		}
	}

	if a.pool != nil && a.pool.TrySubmit(task) {
		return
	}
	task(context.Background())
}

// Recent 最近的审计记录，按时间倒序
func (a *Auditor) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return a.store.ListAudit(ctx, limit)
}
