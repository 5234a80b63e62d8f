package memory

import (
	"context"
	"sync"

	"backendmanager/console/internal/domain"
)

// 默认保留的审计记录数
const defaultAuditCapacity = 1000

// AuditStore 基于环形缓冲区的审计存储，超出容量时覆盖最旧记录
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	next    int
	full    bool
}

// NewAuditStore 创建内存审计存储
func NewAuditStore(capacity int) *AuditStore {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &AuditStore{entries: make([]domain.AuditEntry, capacity)}
}

// AppendAudit 追加一条记录
func (s *AuditStore) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = *entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// ListAudit 按时间倒序返回最多 limit 条记录
func (s *AuditStore) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.AuditEntry, 0, limit)
	idx := s.next
	for i := 0; i < limit; i++ {
		idx = (idx - 1 + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out, nil
}
