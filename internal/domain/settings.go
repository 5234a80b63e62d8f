package domain

import (
	"errors"
	"strings"
)

// ErrInvalidSettings 设置内容不完整
var ErrInvalidSettings = errors.New("invalid settings")

// Settings 控制台设置，作为一个 JSON 对象整体提交到后端
type Settings struct {
	AutoCleanup            string `json:"autoCleanup" form:"autoCleanup"`
	BackupFrequency        string `json:"backupFrequency" form:"backupFrequency"`
	RejectionNotifications bool   `json:"rejectionNotifications" form:"rejectionNotifications"`
	SystemAlerts           bool   `json:"systemAlerts" form:"systemAlerts"`
	BackupNotifications    bool   `json:"backupNotifications" form:"backupNotifications"`
}

// DefaultSettings 设置弹窗的初始值
func DefaultSettings() Settings {
	return Settings{
		AutoCleanup:            "weekly",
		BackupFrequency:        "daily",
		RejectionNotifications: true,
		SystemAlerts:           true,
		BackupNotifications:    true,
	}
}

// Validate 校验设置的必填项
func (s Settings) Validate() error {
	if strings.TrimSpace(s.AutoCleanup) == "" {
		return errors.Join(ErrInvalidSettings, errors.New("autoCleanup is required"))
	}
	if strings.TrimSpace(s.BackupFrequency) == "" {
		return errors.Join(ErrInvalidSettings, errors.New("backupFrequency is required"))
	}
	return nil
}
