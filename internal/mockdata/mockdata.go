// Package mockdata 提供后端不可用时使用的固定示例数据
//
// 每个函数都返回新的副本，调用方可以自由修改。
package mockdata

import "backendmanager/console/internal/domain"

// Stats 示例系统概览
func Stats() domain.SystemStats {
	return domain.SystemStats{
		TotalUsers:   1247,
		SystemHealth: 98,
		DatabaseSize: "2.4GB",
		Uptime:       99.9,
	}
}

// Activities 示例最近活动
func Activities() []domain.Activity {
	return []domain.Activity{
		{
			Type:    "user_registration",
			Message: "New service provider registered",
			Time:    "2 minutes ago",
			Icon:    "fas fa-user-plus",
			Color:   "success",
		},
		{
			Type:    "system_backup",
			Message: "Daily backup completed successfully",
			Time:    "1 hour ago",
			Icon:    "fas fa-database",
			Color:   "info",
		},
		{
			Type:    "data_cleanup",
			Message: "Rejected user data cleaned up",
			Time:    "3 hours ago",
			Icon:    "fas fa-broom",
			Color:   "warning",
		},
		{
			Type:    "error_log",
			Message: "System error detected and resolved",
			Time:    "5 hours ago",
			Icon:    "fas fa-exclamation-triangle",
			Color:   "danger",
		},
	}
}

// Rejections 示例拒绝记录
func Rejections() []domain.Rejection {
	return []domain.Rejection{
		{
			ID:              "1",
			ProviderType:    "hospital",
			ProviderName:    "City General Hospital",
			StaffName:       "John Smith",
			RejectionReason: "Incomplete documentation",
			RejectionDate:   "2024-01-28T10:30:00Z",
			Status:          domain.RejectionPending,
			Email:           "admin@cityhospital.com",
		},
		{
			ID:              "2",
			ProviderType:    "doctor",
			ProviderName:    "Dr. Sarah Johnson",
			StaffName:       "Jane Doe",
			RejectionReason: "Expired license",
			RejectionDate:   "2024-01-27T15:45:00Z",
			Status:          domain.RejectionCleaned,
			Email:           "sarah.johnson@email.com",
		},
	}
}

// CleanupHistory 示例清理历史
func CleanupHistory() []domain.CleanupRecord {
	return []domain.CleanupRecord{
		{
			ID:              "1",
			Operation:       "Rejected User Cleanup",
			Details:         "Cleaned up 5 rejected hospital applications",
			Timestamp:       "2024-01-28T14:30:00Z",
			Status:          "completed",
			RecordsAffected: 5,
		},
		{
			ID:              "2",
			Operation:       "Old Data Archiving",
			Details:         "Archived user data older than 2 years",
			Timestamp:       "2024-01-27T09:15:00Z",
			Status:          "completed",
			RecordsAffected: 150,
		},
	}
}

// SystemLogs 示例系统日志
func SystemLogs() []domain.LogEntry {
	return []domain.LogEntry{
		{
			ID:        "1",
			Level:     "info",
			Message:   "System backup completed successfully",
			Timestamp: "2024-01-28T15:00:00Z",
			Source:    "backup-service",
		},
		{
			ID:        "2",
			Level:     "warning",
			Message:   "High memory usage detected",
			Timestamp: "2024-01-28T14:45:00Z",
			Source:    "system-monitor",
		},
		{
			ID:        "3",
			Level:     "error",
			Message:   "Database connection timeout",
			Timestamp: "2024-01-28T14:30:00Z",
			Source:    "database-service",
		},
	}
}

// Users 示例用户
func Users() []domain.User {
	return []domain.User{
		{
			ID:        "1",
			Name:      "John Admin",
			Email:     "john.admin@arcular.com",
			Role:      "admin",
			Status:    "active",
			LastLogin: "2024-01-28T16:00:00Z",
		},
		{
			ID:        "2",
			Name:      "Sarah Staff",
			Email:     "sarah.staff@arcular.com",
			Role:      "staff",
			Status:    "active",
			LastLogin: "2024-01-28T15:30:00Z",
		},
	}
}

// BackupHistory 示例备份历史
func BackupHistory() []domain.BackupRecord {
	return []domain.BackupRecord{
		{
			ID:        "1",
			Type:      "Full Backup",
			Size:      "2.4GB",
			Timestamp: "2024-01-28T02:00:00Z",
			Status:    "completed",
			Duration:  "15 minutes",
		},
		{
			ID:        "2",
			Type:      "Incremental Backup",
			Size:      "150MB",
			Timestamp: "2024-01-27T02:00:00Z",
			Status:    "completed",
			Duration:  "5 minutes",
		},
	}
}
