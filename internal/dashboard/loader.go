package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backendmanager/console/internal/config"
	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/mockdata"
	"backendmanager/console/internal/monitoring"
)

// Source 一次加载结果的数据来源
type Source string

const (
	SourceLive  Source = "live"
	SourceMock  Source = "mock"
	SourceError Source = "error"
	SourceStale Source = "stale"
)

// Backend 控制台依赖的后端接口
type Backend interface {
	SystemOverview(ctx context.Context, token string) (domain.SystemStats, error)
	RecentActivity(ctx context.Context, token string) ([]domain.Activity, error)
	StaffRejections(ctx context.Context, token string) ([]domain.Rejection, error)
	CleanupHistory(ctx context.Context, token string) ([]domain.CleanupRecord, error)
	SystemLogs(ctx context.Context, token string) ([]domain.LogEntry, error)
	Users(ctx context.Context, token string) ([]domain.User, error)
	BackupHistory(ctx context.Context, token string) ([]domain.BackupRecord, error)
	CleanupUser(ctx context.Context, token, rejectionID string) error
	SaveSettings(ctx context.Context, token string, settings domain.Settings) error
}

// Loader 加载一个分区的数据并提交到会话状态
type Loader func(ctx context.Context, st *AppState, token string) (Source, error)

// LoadError 错误模式下分区数据加载失败
type LoadError struct {
	Section domain.Section
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Section, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Message 展示给用户的错误通知
func (e *LoadError) Message() string {
	return fmt.Sprintf("Failed to load %s data", e.Section)
}

type loaders struct {
	backend  Backend
	fallback string
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

func (l *loaders) table() map[domain.Section]Loader {
	return map[domain.Section]Loader{
		domain.SectionOverview:   l.overview,
		domain.SectionRejections: l.rejections,
		domain.SectionDataCleanup: func(ctx context.Context, st *AppState, token string) (Source, error) {
			return loadList(ctx, l, st, domain.SectionDataCleanup, token, l.backend.CleanupHistory, mockdata.CleanupHistory,
				func(s *views.State, items []domain.CleanupRecord) { s.CleanupHistory = items })
		},
		domain.SectionSystemLogs: func(ctx context.Context, st *AppState, token string) (Source, error) {
			return loadList(ctx, l, st, domain.SectionSystemLogs, token, l.backend.SystemLogs, mockdata.SystemLogs,
				func(s *views.State, items []domain.LogEntry) { s.SystemLogs = items })
		},
		domain.SectionUserManagement: func(ctx context.Context, st *AppState, token string) (Source, error) {
			return loadList(ctx, l, st, domain.SectionUserManagement, token, l.backend.Users, mockdata.Users,
				func(s *views.State, items []domain.User) { s.Users = items })
		},
		domain.SectionBackupRestore: func(ctx context.Context, st *AppState, token string) (Source, error) {
			return loadList(ctx, l, st, domain.SectionBackupRestore, token, l.backend.BackupHistory, mockdata.BackupHistory,
				func(s *views.State, items []domain.BackupRecord) { s.BackupHistory = items })
		},
	}
}

func (l *loaders) rejections(ctx context.Context, st *AppState, token string) (Source, error) {
	return loadList(ctx, l, st, domain.SectionRejections, token, l.backend.StaffRejections, mockdata.Rejections,
		func(s *views.State, items []domain.Rejection) { s.Rejections = items })
}

// overview 加载统计数据，并行刷新待清理角标；统计成功后再取最近活动
func (l *loaders) overview(ctx context.Context, st *AppState, token string) (Source, error) {
	var (
		source Source
		err    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		source, err = l.overviewStats(gctx, st, token)
		return nil
	})
	g.Go(func() error {
		if _, badgeErr := l.rejections(gctx, st, token); badgeErr != nil {
			l.log.Warn("Failed to refresh rejection badge", zap.Error(badgeErr))
		}
		return nil
	})
	_ = g.Wait()

	return source, err
}

func (l *loaders) overviewStats(ctx context.Context, st *AppState, token string) (Source, error) {
	section := domain.SectionOverview
	ticket := st.Begin(section)

	stats, err := l.backend.SystemOverview(ctx, token)
	if err != nil {
		if l.fallback == config.FallbackError {
			return l.fail(st, ticket, err)
		}
		l.log.Warn("Using mock data", zap.String("section", section.String()), zap.Error(err))
		return l.commit(st, ticket, SourceMock, func(s *views.State) {
			s.Stats = mockdata.Stats()
			s.Activities = mockdata.Activities()
		})
	}

	source, _ := l.commit(st, ticket, SourceLive, func(s *views.State) { s.Stats = stats })
	if source == SourceStale {
		return source, nil
	}

	activities, err := l.backend.RecentActivity(ctx, token)
	if err != nil {
		l.log.Warn("Failed to load recent activity", zap.Error(err))
		return source, nil
	}
	if !st.Commit(ticket, func(s *views.State) { s.Activities = activities }) {
		l.dropStale(section)
		return SourceStale, nil
	}
	return source, nil
}

// loadList 通用列表加载：成功整体替换，失败按回退策略处理
func loadList[T any](
	ctx context.Context,
	l *loaders,
	st *AppState,
	section domain.Section,
	token string,
	fetch func(context.Context, string) ([]T, error),
	mock func() []T,
	assign func(*views.State, []T),
) (Source, error) {
	ticket := st.Begin(section)

	items, err := fetch(ctx, token)
	if err != nil {
		if l.fallback == config.FallbackError {
			return l.fail(st, ticket, err)
		}
		l.log.Warn("Using mock data", zap.String("section", section.String()), zap.Error(err))
		return l.commit(st, ticket, SourceMock, func(s *views.State) { assign(s, mock()) })
	}
	return l.commit(st, ticket, SourceLive, func(s *views.State) { assign(s, items) })
}

func (l *loaders) commit(st *AppState, ticket Ticket, source Source, apply func(*views.State)) (Source, error) {
	ok := st.Commit(ticket, func(s *views.State) {
		apply(s)
		delete(s.Unavailable, ticket.Section.String())
	})
	if !ok {
		l.dropStale(ticket.Section)
		return SourceStale, nil
	}
	l.metrics.RecordSectionLoad(ticket.Section.String(), string(source))
	return source, nil
}

func (l *loaders) fail(st *AppState, ticket Ticket, err error) (Source, error) {
	l.log.Warn("Section data unavailable", zap.String("section", ticket.Section.String()), zap.Error(err))
	if !st.Commit(ticket, func(s *views.State) { s.Unavailable[ticket.Section.String()] = true }) {
		l.dropStale(ticket.Section)
		return SourceStale, nil
	}
	l.metrics.RecordSectionLoad(ticket.Section.String(), string(SourceError))
	return SourceError, &LoadError{Section: ticket.Section, Err: err}
}

func (l *loaders) dropStale(section domain.Section) {
	l.log.Debug("Dropped stale load result", zap.String("section", section.String()))
	l.metrics.RecordStaleCommit(section.String())
}
