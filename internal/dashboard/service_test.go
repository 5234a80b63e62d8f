package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backendmanager/console/internal/config"
	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/mockdata"
	"backendmanager/console/internal/monitoring"
	"backendmanager/console/internal/storage/memory"
	"backendmanager/console/internal/upstream"
)

// fakeBackend 未设置的方法返回 upstream.ErrUnavailable
type fakeBackend struct {
	overview     func() (domain.SystemStats, error)
	activity     func() ([]domain.Activity, error)
	rejections   func() ([]domain.Rejection, error)
	cleanup      func() ([]domain.CleanupRecord, error)
	logs         func() ([]domain.LogEntry, error)
	users        func() ([]domain.User, error)
	backups      func() ([]domain.BackupRecord, error)
	cleanupUser  func(id string) error
	saveSettings func(domain.Settings) error

	mu     sync.Mutex
	tokens []string
}

func (f *fakeBackend) seen(token string) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
}

func (f *fakeBackend) SystemOverview(_ context.Context, token string) (domain.SystemStats, error) {
	f.seen(token)
	if f.overview == nil {
		return domain.SystemStats{}, upstream.ErrUnavailable
	}
	return f.overview()
}

func (f *fakeBackend) RecentActivity(_ context.Context, token string) ([]domain.Activity, error) {
	f.seen(token)
	if f.activity == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.activity()
}

func (f *fakeBackend) StaffRejections(_ context.Context, token string) ([]domain.Rejection, error) {
	f.seen(token)
	if f.rejections == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.rejections()
}

func (f *fakeBackend) CleanupHistory(_ context.Context, token string) ([]domain.CleanupRecord, error) {
	f.seen(token)
	if f.cleanup == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.cleanup()
}

func (f *fakeBackend) SystemLogs(_ context.Context, token string) ([]domain.LogEntry, error) {
	f.seen(token)
	if f.logs == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.logs()
}

func (f *fakeBackend) Users(_ context.Context, token string) ([]domain.User, error) {
	f.seen(token)
	if f.users == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.users()
}

func (f *fakeBackend) BackupHistory(_ context.Context, token string) ([]domain.BackupRecord, error) {
	f.seen(token)
	if f.backups == nil {
		return nil, upstream.ErrUnavailable
	}
	return f.backups()
}

func (f *fakeBackend) CleanupUser(_ context.Context, token, id string) error {
	f.seen(token)
	if f.cleanupUser == nil {
		return upstream.ErrUnavailable
	}
	return f.cleanupUser(id)
}

func (f *fakeBackend) SaveSettings(_ context.Context, token string, settings domain.Settings) error {
	f.seen(token)
	if f.saveSettings == nil {
		return upstream.ErrUnavailable
	}
	return f.saveSettings(settings)
}

type staticTokens string

func (t staticTokens) Token(context.Context, *domain.Session) string {
	return string(t)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recordingNotifier) Notify(_ string, n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Message)
	}
	return out
}

type harness struct {
	svc      *Service
	backend  *fakeBackend
	audit    *memory.AuditStore
	notifier *recordingNotifier
	session  *domain.Session
}

func newHarness(t *testing.T, fallback string, backend *fakeBackend) *harness {
	t.Helper()
	renderer, err := views.NewRenderer(time.UTC)
	require.NoError(t, err)

	audit := memory.NewAuditStore(0)
	svc := NewService(
		Config{FallbackMode: fallback, NotificationTTL: DisplayWindow},
		backend,
		staticTokens("id-token"),
		renderer,
		NewAuditor(audit, nil, nil),
		monitoring.NewMetrics(),
		nil,
	)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	return &harness{
		svc:      svc,
		backend:  backend,
		audit:    audit,
		notifier: notifier,
		session:  &domain.Session{ID: "sess-1", UID: "uid-1", Email: "bm@example.com"},
	}
}

func (h *harness) loadRejections(t *testing.T) {
	t.Helper()
	_, err := h.svc.Navigate(context.Background(), h.session, "rejections")
	require.NoError(t, err)
}

func TestNavigate(t *testing.T) {
	t.Run("成功时按返回顺序渲染", func(t *testing.T) {
		logs := []domain.LogEntry{
			{ID: "2", Level: "error", Message: "second-entry"},
			{ID: "1", Level: "info", Message: "first-entry"},
		}
		h := newHarness(t, config.FallbackMock, &fakeBackend{logs: func() ([]domain.LogEntry, error) { return logs, nil }})

		view, err := h.svc.Navigate(context.Background(), h.session, "system-logs")
		require.NoError(t, err)
		assert.Equal(t, SourceLive, view.Source)

		html := string(view.Fragments["systemLogsSection"])
		assert.Equal(t, 2, strings.Count(html, `class="log-item`))
		assert.Less(t, strings.Index(html, "second-entry"), strings.Index(html, "first-entry"))
		assert.Equal(t, []string{"id-token"}, h.backend.tokens)
	})

	t.Run("失败时使用示例数据", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		view, err := h.svc.Navigate(context.Background(), h.session, "user-management")
		require.NoError(t, err)
		assert.Equal(t, SourceMock, view.Source)
		assert.Equal(t, mockdata.Users(), h.svc.State(h.session.ID).Snapshot().Users)
		assert.Empty(t, h.notifier.messages())
	})

	t.Run("错误模式下状态不变并提示", func(t *testing.T) {
		h := newHarness(t, config.FallbackError, &fakeBackend{})

		view, err := h.svc.Navigate(context.Background(), h.session, "backup-restore")
		require.NoError(t, err)
		assert.Equal(t, SourceError, view.Source)

		snapshot := h.svc.State(h.session.ID).Snapshot()
		assert.Empty(t, snapshot.BackupHistory)
		assert.True(t, snapshot.Unavailable["backup-restore"])
		assert.Contains(t, string(view.Fragments["backupRestoreSection"]), "unavailable-panel")
		assert.Equal(t, []string{"Failed to load backup-restore data"}, h.notifier.messages())
	})

	t.Run("切换分区后其他分区不活动", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		_, err := h.svc.Navigate(context.Background(), h.session, "data-cleanup")
		require.NoError(t, err)

		st := h.svc.State(h.session.ID)
		assert.Equal(t, domain.SectionDataCleanup, st.Active())
		for _, s := range domain.Sections() {
			assert.Equal(t, s == domain.SectionDataCleanup, st.router.IsActive(s), s)
		}
	})

	t.Run("未知分区", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		_, err := h.svc.Navigate(context.Background(), h.session, "billing")
		assert.ErrorIs(t, err, domain.ErrUnknownSection)
		assert.Equal(t, domain.SectionOverview, h.svc.State(h.session.ID).Active())
	})
}

func TestOverviewLoad(t *testing.T) {
	t.Run("统计成功后加载最近活动", func(t *testing.T) {
		stats := domain.SystemStats{TotalUsers: 5, SystemHealth: 90}
		activity := []domain.Activity{{Type: "x", Message: "live activity"}}
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			overview:   func() (domain.SystemStats, error) { return stats, nil },
			activity:   func() ([]domain.Activity, error) { return activity, nil },
			rejections: func() ([]domain.Rejection, error) { return mockdata.Rejections(), nil },
		})

		view, err := h.svc.Navigate(context.Background(), h.session, "overview")
		require.NoError(t, err)
		assert.Equal(t, SourceLive, view.Source)

		snapshot := h.svc.State(h.session.ID).Snapshot()
		assert.Equal(t, stats, snapshot.Stats)
		assert.Equal(t, activity, snapshot.Activities)
		assert.Contains(t, string(view.Fragments["rejectionCount"]), ">1</span>")
	})

	t.Run("最近活动失败时保留原内容", func(t *testing.T) {
		calls := 0
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			overview: func() (domain.SystemStats, error) { return domain.SystemStats{TotalUsers: 1}, nil },
			activity: func() ([]domain.Activity, error) {
				calls++
				if calls == 1 {
					return []domain.Activity{{Message: "kept"}}, nil
				}
				return nil, upstream.ErrUnsuccessful
			},
		})

		_, err := h.svc.Navigate(context.Background(), h.session, "overview")
		require.NoError(t, err)
		_, err = h.svc.Navigate(context.Background(), h.session, "overview")
		require.NoError(t, err)

		assert.Equal(t, []domain.Activity{{Message: "kept"}}, h.svc.State(h.session.ID).Snapshot().Activities)
	})

	t.Run("统计失败时同时使用示例活动", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		_, err := h.svc.Navigate(context.Background(), h.session, "overview")
		require.NoError(t, err)

		snapshot := h.svc.State(h.session.ID).Snapshot()
		assert.Equal(t, mockdata.Stats(), snapshot.Stats)
		assert.Equal(t, mockdata.Activities(), snapshot.Activities)
	})
}

func TestStaleLoadDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	h := newHarness(t, config.FallbackMock, &fakeBackend{
		rejections: func() ([]domain.Rejection, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				close(started)
				<-release
				return []domain.Rejection{{ID: "old"}}, nil
			}
			return []domain.Rejection{{ID: "new"}}, nil
		},
	})
	st := h.svc.State(h.session.ID)
	load := h.svc.loaders[domain.SectionRejections]

	done := make(chan Source, 1)
	go func() {
		source, _ := load(context.Background(), st, "")
		done <- source
	}()
	<-started

	source, err := load(context.Background(), st, "")
	require.NoError(t, err)
	assert.Equal(t, SourceLive, source)

	close(release)
	assert.Equal(t, SourceStale, <-done)
	assert.Equal(t, []domain.Rejection{{ID: "new"}}, st.Snapshot().Rejections)
}

func TestCleanupRejection(t *testing.T) {
	twoPending := func() ([]domain.Rejection, error) {
		return []domain.Rejection{
			{ID: "1", Status: domain.RejectionPending},
			{ID: "2", Status: domain.RejectionPending},
			{ID: "3", Status: domain.RejectionCleaned},
		}, nil
	}

	t.Run("成功后状态变为已清理", func(t *testing.T) {
		var cleaned string
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			rejections:  twoPending,
			cleanupUser: func(id string) error { cleaned = id; return nil },
		})
		h.loadRejections(t)
		before := h.svc.State(h.session.ID).Snapshot().Rejections

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{
			Action: domain.ActionCleanupRejection, ID: "2", Confirmed: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "2", cleaned)
		assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
		assert.Equal(t, "User data cleaned up successfully", result.Notification.Message)

		after := h.svc.State(h.session.ID).Snapshot().Rejections
		assert.Equal(t, domain.PendingCount(before)-1, domain.PendingCount(after))
		assert.Equal(t, domain.RejectionCleaned, after[1].Status)
		assert.Equal(t, before[0], after[0])
		assert.Equal(t, before[2], after[2])
		assert.Contains(t, string(result.Fragments["rejectionCount"]), ">1</span>")
		assert.Contains(t, string(result.Fragments["rejectionsList"]), `id="rejectionsList"`)

		entries, err := h.audit.ListAudit(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "cleanup-rejection", entries[0].Action)
		assert.Equal(t, "uid-1", entries[0].SessionUID)
	})

	t.Run("失败时状态不变", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			rejections:  twoPending,
			cleanupUser: func(string) error { return upstream.ErrUnsuccessful },
		})
		h.loadRejections(t)
		before := h.svc.State(h.session.ID).Snapshot().Rejections

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{
			Action: domain.ActionCleanupRejection, ID: "1", Confirmed: true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailure, result.Outcome)
		assert.Equal(t, domain.NotificationError, result.Notification.Kind)
		assert.Equal(t, "Failed to cleanup user data", result.Notification.Message)
		assert.Equal(t, before, h.svc.State(h.session.ID).Snapshot().Rejections)
	})

	t.Run("未确认时拒绝执行", func(t *testing.T) {
		called := false
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			rejections:  twoPending,
			cleanupUser: func(string) error { called = true; return nil },
		})
		h.loadRejections(t)

		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{
			Action: domain.ActionCleanupRejection, ID: "1",
		})
		require.ErrorIs(t, err, ErrConfirmationRequired)

		var confirm *ConfirmationError
		require.True(t, errors.As(err, &confirm))
		assert.Equal(t, domain.ActionCleanupRejection.Prompt("1"), confirm.Prompt)
		assert.False(t, called)
	})

	t.Run("未知记录", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{rejections: twoPending})
		h.loadRejections(t)

		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{
			Action: domain.ActionCleanupRejection, ID: "404", Confirmed: true,
		})
		assert.ErrorIs(t, err, ErrRejectionNotFound)
	})

	t.Run("进行中的加载不能覆盖清理结果", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{
			rejections:  twoPending,
			cleanupUser: func(string) error { return nil },
		})
		h.loadRejections(t)
		st := h.svc.State(h.session.ID)

		ticket := st.Begin(domain.SectionRejections)
		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{
			Action: domain.ActionCleanupRejection, ID: "1", Confirmed: true,
		})
		require.NoError(t, err)

		committed := st.Commit(ticket, func(s *views.State) { s.Rejections = nil })
		assert.False(t, committed)
		assert.Equal(t, domain.RejectionCleaned, st.Snapshot().Rejections[0].Status)
	})
}

func TestStubActions(t *testing.T) {
	cases := []struct {
		name    string
		req     ActionRequest
		kind    domain.NotificationKind
		message string
	}{
		{"发起数据清理", ActionRequest{Action: domain.ActionInitiateDataCleanup, Confirmed: true}, domain.NotificationSuccess, "Data cleanup initiated. This process will run in the background."},
		{"归档", ActionRequest{Action: domain.ActionInitiateDataArchiving, Confirmed: true}, domain.NotificationSuccess, "Data archiving initiated. This process will run in the background."},
		{"清理分析", ActionRequest{Action: domain.ActionViewCleanupAnalytics}, domain.NotificationInfo, "Cleanup analytics dashboard will be available in the next update."},
		{"创建备份", ActionRequest{Action: domain.ActionCreateBackup, Confirmed: true}, domain.NotificationSuccess, "Backup creation initiated. You will be notified when it completes."},
		{"恢复备份", ActionRequest{Action: domain.ActionRestoreBackup}, domain.NotificationInfo, "Backup restoration will be available in the next update."},
		{"自动备份", ActionRequest{Action: domain.ActionConfigureAutoBackup}, domain.NotificationInfo, "Auto backup configuration will be available in the next update."},
		{"创建用户", ActionRequest{Action: domain.ActionCreateUser}, domain.NotificationInfo, "User creation will be available in the next update."},
		{"批量操作", ActionRequest{Action: domain.ActionBulkUserOperations}, domain.NotificationInfo, "Bulk user operations will be available in the next update."},
		{"导出", ActionRequest{Action: domain.ActionExportUserData}, domain.NotificationInfo, "User data export will be available in the next update."},
		{"编辑用户", ActionRequest{Action: domain.ActionEditUser, ID: "u7"}, domain.NotificationInfo, "Edit user u7 will be available in the next update."},
		{"删除用户", ActionRequest{Action: domain.ActionDeleteUser, ID: "u7", Confirmed: true}, domain.NotificationSuccess, "User u7 deleted successfully."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, config.FallbackMock, &fakeBackend{})

			result, err := h.svc.Execute(context.Background(), h.session, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, result.Notification.Kind)
			assert.Equal(t, tc.message, result.Notification.Message)
			assert.Equal(t, []string{tc.message}, h.notifier.messages())
		})
	}

	t.Run("需要确认的桩操作未确认", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})
		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionDeleteUser, ID: "u7"})
		assert.ErrorIs(t, err, ErrConfirmationRequired)
	})

	t.Run("缺少 id", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})
		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionEditUser})
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("未知操作", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})
		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: "format-disk"})
		assert.ErrorIs(t, err, domain.ErrUnknownAction)
	})
}

func TestSaveSettings(t *testing.T) {
	settings := domain.Settings{AutoCleanup: "monthly", BackupFrequency: "hourly", SystemAlerts: true}

	t.Run("保存成功", func(t *testing.T) {
		var sent domain.Settings
		h := newHarness(t, config.FallbackMock, &fakeBackend{saveSettings: func(s domain.Settings) error { sent = s; return nil }})

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionSaveSettings, Settings: &settings})
		require.NoError(t, err)
		assert.Equal(t, "Settings saved successfully!", result.Notification.Message)
		assert.Equal(t, settings, sent)
		assert.Equal(t, settings, h.svc.State(h.session.ID).Settings())
	})

	t.Run("保存失败", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionSaveSettings, Settings: &settings})
		require.NoError(t, err)
		assert.Equal(t, "Failed to save settings", result.Notification.Message)
		assert.Equal(t, domain.DefaultSettings(), h.svc.State(h.session.ID).Settings())
	})

	t.Run("设置不完整", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		_, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionSaveSettings, Settings: &domain.Settings{}})
		assert.ErrorIs(t, err, domain.ErrInvalidSettings)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("示例模式下提示刷新成功", func(t *testing.T) {
		h := newHarness(t, config.FallbackMock, &fakeBackend{})

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionRefresh})
		require.NoError(t, err)
		assert.Equal(t, "Dashboard refreshed successfully!", result.Notification.Message)
		assert.Contains(t, result.Fragments, "overviewSection")
	})

	t.Run("错误模式下提示加载失败", func(t *testing.T) {
		h := newHarness(t, config.FallbackError, &fakeBackend{})

		result, err := h.svc.Execute(context.Background(), h.session, ActionRequest{Action: domain.ActionRefresh})
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationError, result.Notification.Kind)
		assert.Equal(t, "Failed to load overview data", result.Notification.Message)
	})
}

func TestPageAndDetails(t *testing.T) {
	h := newHarness(t, config.FallbackMock, &fakeBackend{})

	_, err := h.svc.Navigate(context.Background(), h.session, "system-logs")
	require.NoError(t, err)

	page, err := h.svc.Page(context.Background(), h.session)
	require.NoError(t, err)
	assert.Contains(t, string(page), `id="overviewSection" class="content-section active"`)
	assert.Equal(t, domain.SectionOverview, h.svc.State(h.session.ID).Active())

	details, err := h.svc.RejectionDetails(h.session, "1")
	require.NoError(t, err)
	assert.Contains(t, string(details), "City General Hospital")

	_, err = h.svc.RejectionDetails(h.session, "missing")
	assert.ErrorIs(t, err, ErrRejectionNotFound)
}

func TestServicePruning(t *testing.T) {
	h := newHarness(t, config.FallbackMock, &fakeBackend{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return base }

	st := h.svc.State("a")
	h.svc.State("b")
	st.Notifications().Push(domain.NotificationInfo, "x", base)

	assert.Equal(t, 0, h.svc.PruneNotifications(base.Add(time.Second)))
	assert.Equal(t, 1, h.svc.PruneNotifications(base.Add(DisplayWindow)))

	h.svc.now = func() time.Time { return base.Add(time.Hour) }
	h.svc.State("b")
	assert.Equal(t, 1, h.svc.PruneIdle(base.Add(time.Hour), 30*time.Minute))
	assert.Equal(t, 1, h.svc.Sessions())

	h.svc.Discard("b")
	assert.Equal(t, 0, h.svc.Sessions())
}
