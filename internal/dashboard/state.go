package dashboard

import (
	"slices"
	"sync"
	"time"

	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/domain"
)

// AppState 单个会话的应用状态，所有读写都经过这里的方法
type AppState struct {
	mu        sync.Mutex
	sessionID string
	router    *Router
	fence     fence
	data      views.State
	settings  domain.Settings
	notices   *Queue
	touchedAt time.Time
}

func newAppState(sessionID string, loaders map[domain.Section]Loader, ttl time.Duration, now time.Time) *AppState {
	return &AppState{
		sessionID: sessionID,
		router:    NewRouter(loaders),
		fence:     newFence(),
		data:      views.State{Unavailable: make(map[string]bool)},
		settings:  domain.DefaultSettings(),
		notices:   NewQueue(ttl),
		touchedAt: now,
	}
}

// SessionID 状态所属会话
func (s *AppState) SessionID() string {
	return s.sessionID
}

// Navigate 切换活动分区
func (s *AppState) Navigate(raw string) (domain.Section, Loader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Navigate(raw)
}

// Active 当前活动分区
func (s *AppState) Active() domain.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Active()
}

// Begin 为分区发出新的加载序号，之前的序号全部失效
func (s *AppState) Begin(section domain.Section) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fence.begin(section)
}

// Commit 序号仍是最新时执行 apply 并返回 true，否则丢弃结果
func (s *AppState) Commit(t Ticket, apply func(*views.State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fence.current(t) {
		return false
	}
	apply(&s.data)
	return true
}

// Snapshot 返回状态副本，渲染期间不持有锁
func (s *AppState) Snapshot() views.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := views.State{
		Stats:          s.data.Stats,
		Activities:     slices.Clone(s.data.Activities),
		Rejections:     slices.Clone(s.data.Rejections),
		CleanupHistory: slices.Clone(s.data.CleanupHistory),
		SystemLogs:     slices.Clone(s.data.SystemLogs),
		Users:          slices.Clone(s.data.Users),
		BackupHistory:  slices.Clone(s.data.BackupHistory),
		Unavailable:    make(map[string]bool, len(s.data.Unavailable)),
	}
	for k, v := range s.data.Unavailable {
		out.Unavailable[k] = v
	}
	return out
}

// Rejection 按 id 查找拒绝记录
func (s *AppState) Rejection(id string) (domain.Rejection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.data.Rejections {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Rejection{}, false
}

// MarkCleaned 把拒绝记录标记为已清理，并使进行中的 rejections 加载失效
func (s *AppState) MarkCleaned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Rejections {
		if s.data.Rejections[i].ID == id {
			s.fence.begin(domain.SectionRejections)
			s.data.Rejections[i].Status = domain.RejectionCleaned
			return true
		}
	}
	return false
}

// Settings 当前设置
func (s *AppState) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings 保存成功后记录设置
func (s *AppState) SetSettings(settings domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Notifications 会话的通知队列
func (s *AppState) Notifications() *Queue {
	return s.notices
}

func (s *AppState) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *AppState) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}
