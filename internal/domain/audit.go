package domain

import "time"

// 审计结果
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeInfo      = "info"
	OutcomeCancelled = "cancelled"
)

// AuditEntry 记录一次执行过的操作
type AuditEntry struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SessionUID string    `json:"sessionUid" gorm:"type:varchar(128);index"`
	Email      string    `json:"email" gorm:"type:varchar(255)"`
	Action     string    `json:"action" gorm:"type:varchar(64);index"`
	Target     string    `json:"target" gorm:"type:varchar(128)"`
	Outcome    string    `json:"outcome" gorm:"type:varchar(16)"`
	Message    string    `json:"message" gorm:"type:text"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index"`
}

// TableName 审计表名
func (AuditEntry) TableName() string {
	return "console_audit_entries"
}
