package domain

import "time"

// NotificationKind 通知横幅类型
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Icon 通知类型对应的图标类名
func (k NotificationKind) Icon() string {
	switch k {
	case NotificationSuccess:
		return "fas fa-check-circle"
	case NotificationError:
		return "fas fa-exclamation-circle"
	default:
		return "fas fa-info-circle"
	}
}

// Notification 一条短暂显示的通知消息
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Expired 判断通知在给定时刻是否已过显示窗口
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}
