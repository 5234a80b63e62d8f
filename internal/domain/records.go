package domain

import "encoding/json"

// SystemStats 表示系统概览快照，每次加载整体替换
type SystemStats struct {
	TotalUsers   int     `json:"totalUsers"`
	SystemHealth float64 `json:"systemHealth"`
	DatabaseSize string  `json:"databaseSize"`
	Uptime       float64 `json:"uptime"`
}

// Activity 表示概览页的最近活动条目
type Activity struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Icon    string `json:"icon"`
	Color   string `json:"color"`
}

// 拒绝记录状态
const (
	RejectionPending = "pending"
	RejectionCleaned = "cleaned"
)

// Rejection 表示员工拒绝服务提供方申请的记录
type Rejection struct {
	ID              string `json:"id"`
	ProviderType    string `json:"providerType"`
	ProviderName    string `json:"providerName"`
	StaffName       string `json:"staffName"`
	RejectionReason string `json:"rejectionReason"`
	RejectionDate   string `json:"rejectionDate"`
	Status          string `json:"status"`
	Email           string `json:"email"`
}

// IsPending 判断记录是否等待清理
func (r Rejection) IsPending() bool {
	return r.Status == RejectionPending
}

// PendingCount 统计等待清理的拒绝记录数
func PendingCount(rejections []Rejection) int {
	count := 0
	for _, r := range rejections {
		if r.IsPending() {
			count++
		}
	}
	return count
}

// LogEntry 表示一条系统日志
type LogEntry struct {
	ID        string `json:"id"`
	Level     string `json:"level"` // info, warning, error
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// User 表示平台用户，编辑与删除暂未开放
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	LastLogin string `json:"lastLogin"`
}

// CleanupRecord 表示一次数据清理操作的历史记录
type CleanupRecord struct {
	ID              string `json:"id"`
	Operation       string `json:"operation"`
	Details         string `json:"details"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status"`
	RecordsAffected int    `json:"recordsAffected"`
}

// BackupRecord 表示一次备份操作的历史记录
type BackupRecord struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Duration  string `json:"duration"`
}

// StaffProfile 员工档案，用于校验 backend_manager 角色
type StaffProfile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	StaffType   string `json:"staffType"`
}

// StaffTypeBackendManager 允许访问控制台的员工类型
const StaffTypeBackendManager = "backend_manager"

// Envelope 后端接口统一响应格式
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
