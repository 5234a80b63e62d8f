package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"backendmanager/console/internal/domain"
)

var (
	// ErrConfirmationRequired 需要用户确认的操作未带 confirmed
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrRejectionNotFound 会话状态中没有该拒绝记录
	ErrRejectionNotFound = errors.New("rejection not found")
	// ErrMissingID 针对单条记录的操作缺少 id
	ErrMissingID = errors.New("record id is required")
)

// ConfirmationError 携带需要展示给用户的确认提示
type ConfirmationError struct {
	Action domain.Action
	Prompt string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, ErrConfirmationRequired)
}

func (e *ConfirmationError) Unwrap() error {
	return ErrConfirmationRequired
}

// ActionRequest 浏览器提交的操作
type ActionRequest struct {
	Action    domain.Action
	ID        string
	Confirmed bool
	Settings  *domain.Settings // 仅 save-settings 使用
}

// ActionResult 操作结果：通知与需要替换的页面片段
type ActionResult struct {
	Action       domain.Action            `json:"action"`
	Outcome      string                   `json:"outcome"`
	Notification domain.Notification      `json:"notification"`
	Fragments    map[string]template.HTML `json:"fragments,omitempty"`
}

// 桩操作的提示文案
var stubMessages = map[domain.Action]struct {
	kind    domain.NotificationKind
	message string
}{
	domain.ActionInitiateDataCleanup:   {domain.NotificationSuccess, "Data cleanup initiated. This process will run in the background."},
	domain.ActionInitiateDataArchiving: {domain.NotificationSuccess, "Data archiving initiated. This process will run in the background."},
	domain.ActionViewCleanupAnalytics:  {domain.NotificationInfo, "Cleanup analytics dashboard will be available in the next update."},
	domain.ActionCreateBackup:          {domain.NotificationSuccess, "Backup creation initiated. You will be notified when it completes."},
	domain.ActionRestoreBackup:         {domain.NotificationInfo, "Backup restoration will be available in the next update."},
	domain.ActionConfigureAutoBackup:   {domain.NotificationInfo, "Auto backup configuration will be available in the next update."},
	domain.ActionCreateUser:            {domain.NotificationInfo, "User creation will be available in the next update."},
	domain.ActionBulkUserOperations:    {domain.NotificationInfo, "Bulk user operations will be available in the next update."},
	domain.ActionExportUserData:        {domain.NotificationInfo, "User data export will be available in the next update."},
}

// Execute 执行控制台操作
//
// 需要确认的操作未确认时返回 *ConfirmationError，不调用后端。
// 后端调用失败不作为错误返回，而是生成错误通知，状态保持不变。
func (s *Service) Execute(ctx context.Context, session *domain.Session, req ActionRequest) (*ActionResult, error) {
	if _, known := actionKinds[req.Action]; !known {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, req.Action)
	}
	if req.Action.RequiresID() && req.ID == "" {
		return nil, fmt.Errorf("%s: %w", req.Action, ErrMissingID)
	}
	if prompt := req.Action.Prompt(req.ID); prompt != "" && !req.Confirmed {
		s.auditor.Record(session, req.Action, req.ID, domain.OutcomeCancelled, "not confirmed")
		s.metrics.RecordAction(string(req.Action), domain.OutcomeCancelled)
		return nil, &ConfirmationError{Action: req.Action, Prompt: prompt}
	}

	st := s.State(session.ID)
	var (
		result *ActionResult
		err    error
	)
	switch req.Action {
	case domain.ActionCleanupRejection:
		result, err = s.cleanupRejection(ctx, session, st, req.ID)
	case domain.ActionSaveSettings:
		result, err = s.saveSettings(ctx, session, st, req.Settings)
	case domain.ActionRefresh:
		result, err = s.refresh(ctx, session, st)
	case domain.ActionEditUser:
		result = s.finish(session, st, req.Action, req.ID, domain.OutcomeInfo,
			domain.NotificationInfo, fmt.Sprintf("Edit user %s will be available in the next update.", req.ID))
	case domain.ActionDeleteUser:
		result = s.finish(session, st, req.Action, req.ID, domain.OutcomeSuccess,
			domain.NotificationSuccess, fmt.Sprintf("User %s deleted successfully.", req.ID))
	default:
		stub := stubMessages[req.Action]
		outcome := domain.OutcomeSuccess
		if stub.kind == domain.NotificationInfo {
			outcome = domain.OutcomeInfo
		}
		result = s.finish(session, st, req.Action, req.ID, outcome, stub.kind, stub.message)
	}
	return result, err
}

// actionKinds 可执行的操作集合
var actionKinds = map[domain.Action]struct{}{
	domain.ActionCleanupRejection:      {},
	domain.ActionInitiateDataCleanup:   {},
	domain.ActionInitiateDataArchiving: {},
	domain.ActionViewCleanupAnalytics:  {},
	domain.ActionCreateBackup:          {},
	domain.ActionRestoreBackup:         {},
	domain.ActionConfigureAutoBackup:   {},
	domain.ActionCreateUser:            {},
	domain.ActionBulkUserOperations:    {},
	domain.ActionExportUserData:        {},
	domain.ActionEditUser:              {},
	domain.ActionDeleteUser:            {},
	domain.ActionSaveSettings:          {},
	domain.ActionRefresh:               {},
}

func (s *Service) cleanupRejection(ctx context.Context, session *domain.Session, st *AppState, id string) (*ActionResult, error) {
	if _, ok := st.Rejection(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRejectionNotFound, id)
	}

	if err := s.backend.CleanupUser(ctx, s.tokens.Token(ctx, session), id); err != nil {
		s.logger.Warn("Cleanup call failed", zap.String("rejection_id", id), zap.Error(err))
		return s.finish(session, st, domain.ActionCleanupRejection, id, domain.OutcomeFailure,
			domain.NotificationError, "Failed to cleanup user data"), nil
	}

	st.MarkCleaned(id)
	result := s.finish(session, st, domain.ActionCleanupRejection, id, domain.OutcomeSuccess,
		domain.NotificationSuccess, "User data cleaned up successfully")

	snapshot := st.Snapshot()
	list, err := s.renderer.Rejections(snapshot.Rejections)
	if err != nil {
		return nil, err
	}
	badge, err := s.renderer.RejectionCount(domain.PendingCount(snapshot.Rejections))
	if err != nil {
		return nil, err
	}
	result.Fragments = map[string]template.HTML{
		"rejectionsList": list,
		"rejectionCount": badge,
	}
	return result, nil
}

func (s *Service) saveSettings(ctx context.Context, session *domain.Session, st *AppState, settings *domain.Settings) (*ActionResult, error) {
	if settings == nil {
		return nil, domain.ErrInvalidSettings
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := s.backend.SaveSettings(ctx, s.tokens.Token(ctx, session), *settings); err != nil {
		s.logger.Warn("Saving settings failed", zap.Error(err))
		return s.finish(session, st, domain.ActionSaveSettings, "", domain.OutcomeFailure,
			domain.NotificationError, "Failed to save settings"), nil
	}

	st.SetSettings(*settings)
	return s.finish(session, st, domain.ActionSaveSettings, "", domain.OutcomeSuccess,
		domain.NotificationSuccess, "Settings saved successfully!"), nil
}

// refresh 重新加载系统概览，活动分区保持不变
func (s *Service) refresh(ctx context.Context, session *domain.Session, st *AppState) (*ActionResult, error) {
	_, err := s.loaders[domain.SectionOverview](ctx, st, s.tokens.Token(ctx, session))

	var result *ActionResult
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		result = s.finish(session, st, domain.ActionRefresh, "", domain.OutcomeFailure,
			domain.NotificationError, loadErr.Message())
	} else {
		result = s.finish(session, st, domain.ActionRefresh, "", domain.OutcomeSuccess,
			domain.NotificationSuccess, "Dashboard refreshed successfully!")
	}

	fragments, renderErr := s.sectionFragments(st, domain.SectionOverview)
	if renderErr != nil {
		return nil, renderErr
	}
	result.Fragments = fragments
	return result, nil
}

// finish 入队通知、写审计并统计
func (s *Service) finish(session *domain.Session, st *AppState, action domain.Action, target, outcome string, kind domain.NotificationKind, message string) *ActionResult {
	n := s.notify(st, kind, message)
	s.auditor.Record(session, action, target, outcome, message)
	s.metrics.RecordAction(string(action), outcome)
	return &ActionResult{Action: action, Outcome: outcome, Notification: n}
}
