package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownAction 不存在的操作
var ErrUnknownAction = errors.New("unknown action")

// Action 控制台按钮触发的操作
type Action string

const (
	ActionCleanupRejection      Action = "cleanup-rejection"
	ActionInitiateDataCleanup   Action = "initiate-data-cleanup"
	ActionInitiateDataArchiving Action = "initiate-data-archiving"
	ActionViewCleanupAnalytics  Action = "view-cleanup-analytics"
	ActionCreateBackup          Action = "create-backup"
	ActionRestoreBackup         Action = "restore-backup"
	ActionConfigureAutoBackup   Action = "configure-auto-backup"
	ActionCreateUser            Action = "create-user"
	ActionBulkUserOperations    Action = "bulk-user-operations"
	ActionExportUserData        Action = "export-user-data"
	ActionEditUser              Action = "edit-user"
	ActionDeleteUser            Action = "delete-user"
	ActionSaveSettings          Action = "save-settings"
	ActionRefresh               Action = "refresh"
)

// LogoutPrompt 退出登录前的确认提示
const LogoutPrompt = "Are you sure you want to logout?"

// Prompt 返回操作执行前需要用户确认的提示，无需确认时返回空字符串
func (a Action) Prompt(id string) string {
	switch a {
	case ActionCleanupRejection:
		return "Are you sure you want to clean up this rejected user? This action cannot be undone."
	case ActionInitiateDataCleanup:
		return "Are you sure you want to initiate data cleanup? This will remove all rejected user data."
	case ActionInitiateDataArchiving:
		return "Are you sure you want to archive old data? This will move old records to archive storage."
	case ActionCreateBackup:
		return "Are you sure you want to create a new backup? This may take several minutes."
	case ActionDeleteUser:
		return fmt.Sprintf("Are you sure you want to delete user %s? This action cannot be undone.", id)
	}
	return ""
}

// RequiresID 操作是否针对单条记录
func (a Action) RequiresID() bool {
	switch a {
	case ActionCleanupRejection, ActionEditUser, ActionDeleteUser:
		return true
	}
	return false
}
