package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"backendmanager/console/internal/domain"
)

// DisplayWindow 通知默认显示时长
const DisplayWindow = 3 * time.Second

// Queue 会话内的通知队列，按到达顺序排列，不去重
type Queue struct {
	mu    sync.Mutex
	items []domain.Notification
	ttl   time.Duration
}

// NewQueue 创建通知队列，ttl 不大于零时使用 DisplayWindow
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DisplayWindow
	}
	return &Queue{ttl: ttl}
}

// Push 追加一条通知，过期时间只取决于自身的创建时间
func (q *Queue) Push(kind domain.NotificationKind, message string, now time.Time) domain.Notification {
	n := domain.Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(q.ttl),
	}

	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
	return n
}

// Active 返回 now 时刻仍在显示的通知
func (q *Queue) Active(now time.Time) []domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Notification, 0, len(q.items))
	for _, n := range q.items {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out
}

// Prune 删除已过期的通知，返回删除数量
func (q *Queue) Prune(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, n := range q.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	removed := len(q.items) - len(kept)
	clear(q.items[len(kept):])
	q.items = kept
	return removed
}
