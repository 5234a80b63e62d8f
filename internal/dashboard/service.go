// Package dashboard 实现控制台的会话状态、分区加载与操作处理
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"backendmanager/console/internal/config"
	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/monitoring"
)

// TokenSource 提供调用后端所需的 bearer 令牌，失败时返回空字符串
type TokenSource interface {
	Token(ctx context.Context, session *domain.Session) string
}

// Notifier 把通知推送到会话的浏览器连接
type Notifier interface {
	Notify(sessionID string, n domain.Notification)
}

// Config 控制台服务配置
type Config struct {
	FallbackMode    string
	NotificationTTL time.Duration
}

// SectionView 导航结果
type SectionView struct {
	Section   domain.Section           `json:"section"`
	Source    Source                   `json:"source"`
	Fragments map[string]template.HTML `json:"fragments"`
}

// Snapshot 会话状态的 JSON 视图
type Snapshot struct {
	Active        domain.Section        `json:"active"`
	PendingCount  int                   `json:"pendingCount"`
	State         views.State           `json:"state"`
	Settings      domain.Settings       `json:"settings"`
	Notifications []domain.Notification `json:"notifications"`
}

// Service 管理所有会话的应用状态
type Service struct {
	mu     sync.RWMutex
	states map[string]*AppState

	cfg      Config
	backend  Backend
	tokens   TokenSource
	renderer *views.Renderer
	auditor  *Auditor
	notifier Notifier
	loaders  map[domain.Section]Loader
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService 创建控制台服务
func NewService(cfg Config, backend Backend, tokens TokenSource, renderer *views.Renderer, auditor *Auditor, metrics *monitoring.Metrics, logger *zap.Logger) *Service {
	if cfg.FallbackMode == "" {
		cfg.FallbackMode = config.FallbackMock
	}
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = DisplayWindow
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditor == nil {
		auditor = NewAuditor(nil, nil, logger)
	}

	s := &Service{
		states:   make(map[string]*AppState),
		cfg:      cfg,
		backend:  backend,
		tokens:   tokens,
		renderer: renderer,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger.Named("dashboard"),
		now:      time.Now,
	}
	l := &loaders{backend: backend, fallback: cfg.FallbackMode, metrics: metrics, log: s.logger}
	s.loaders = l.table()
	return s
}

// SetNotifier 设置推送通道
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// State 返回会话的应用状态，不存在时创建
func (s *Service) State(sessionID string) *AppState {
	now := s.now()

	s.mu.RLock()
	st, ok := s.states[sessionID]
	s.mu.RUnlock()
	if ok {
		st.touch(now)
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.states[sessionID]; ok {
		st.touch(now)
		return st
	}
	st = newAppState(sessionID, s.loaders, s.cfg.NotificationTTL, now)
	s.states[sessionID] = st
	s.metrics.UpdateSessionsActive(len(s.states))
	return st
}

// Discard 丢弃会话的应用状态
func (s *Service) Discard(sessionID string) {
	s.mu.Lock()
	delete(s.states, sessionID)
	count := len(s.states)
	s.mu.Unlock()
	s.metrics.UpdateSessionsActive(count)
}

// Sessions 当前持有状态的会话数
func (s *Service) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Page 渲染完整页面，每次打开都从 overview 开始
func (s *Service) Page(ctx context.Context, session *domain.Session) (template.HTML, error) {
	st := s.State(session.ID)
	if _, err := s.navigate(ctx, session, st, domain.SectionOverview.String()); err != nil {
		return "", err
	}

	return s.renderer.Page(views.PageData{
		Session:         session,
		Active:          st.Active(),
		State:           st.Snapshot(),
		Settings:        st.Settings(),
		Notifications:   st.Notifications().Active(s.now()),
		Now:             s.now(),
		NotificationTTL: s.cfg.NotificationTTL,
	})
}

// Navigate 切换分区、加载数据并渲染分区片段
//
// 错误模式下加载失败不返回错误：分区渲染为不可用面板并入队错误通知。
func (s *Service) Navigate(ctx context.Context, session *domain.Session, raw string) (*SectionView, error) {
	return s.navigate(ctx, session, s.State(session.ID), raw)
}

func (s *Service) navigate(ctx context.Context, session *domain.Session, st *AppState, raw string) (*SectionView, error) {
	section, load, err := st.Navigate(raw)
	if err != nil {
		return nil, fmt.Errorf("navigate %q: %w", raw, err)
	}

	source, err := load(ctx, st, s.tokens.Token(ctx, session))
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		s.notify(st, domain.NotificationError, loadErr.Message())
	} else if err != nil {
		return nil, err
	}

	fragments, err := s.sectionFragments(st, section)
	if err != nil {
		return nil, err
	}
	return &SectionView{Section: section, Source: source, Fragments: fragments}, nil
}

// sectionFragments 分区容器与待清理角标
func (s *Service) sectionFragments(st *AppState, section domain.Section) (map[string]template.HTML, error) {
	snapshot := st.Snapshot()
	body, err := s.renderer.Section(section, st.Active() == section, snapshot)
	if err != nil {
		return nil, err
	}
	badge, err := s.renderer.RejectionCount(domain.PendingCount(snapshot.Rejections))
	if err != nil {
		return nil, err
	}
	return map[string]template.HTML{
		section.ElementID(): body,
		"rejectionCount":    badge,
	}, nil
}

// RejectionDetails 渲染拒绝记录详情
func (s *Service) RejectionDetails(session *domain.Session, id string) (template.HTML, error) {
	rejection, ok := s.State(session.ID).Rejection(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRejectionNotFound, id)
	}
	return s.renderer.RejectionDetails(rejection)
}

// Notifications 渲染当前仍在显示的通知
func (s *Service) Notifications(session *domain.Session) (template.HTML, error) {
	now := s.now()
	return s.renderer.Notifications(s.State(session.ID).Notifications().Active(now), now)
}

// Snapshot 会话状态的 JSON 视图
func (s *Service) Snapshot(session *domain.Session) Snapshot {
	st := s.State(session.ID)
	data := st.Snapshot()
	return Snapshot{
		Active:        st.Active(),
		PendingCount:  domain.PendingCount(data.Rejections),
		State:         data,
		Settings:      st.Settings(),
		Notifications: st.Notifications().Active(s.now()),
	}
}

// Audit 最近的审计记录
func (s *Service) Audit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.auditor.Recent(ctx, limit)
}

// PruneNotifications 清理所有会话中过期的通知
func (s *Service) PruneNotifications(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	removed := 0
	for _, st := range s.states {
		removed += st.Notifications().Prune(now)
	}
	return removed
}

// PruneIdle 丢弃超过 maxIdle 未访问的会话状态
func (s *Service) PruneIdle(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	removed := 0
	for id, st := range s.states {
		if now.Sub(st.lastTouched()) > maxIdle {
			delete(s.states, id)
			removed++
		}
	}
	count := len(s.states)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("Pruned idle session states", zap.Int("removed", removed))
	}
	s.metrics.UpdateSessionsActive(count)
	return removed
}

// notify 入队通知并推送到浏览器
func (s *Service) notify(st *AppState, kind domain.NotificationKind, message string) domain.Notification {
	n := st.Notifications().Push(kind, message, s.now())
	s.metrics.RecordNotification(string(kind))

	s.mu.RLock()
	notifier := s.notifier
	s.mu.RUnlock()
	if notifier != nil {
		notifier.Notify(st.SessionID(), n)
	}
	return n
}
