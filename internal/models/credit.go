package models

import "time"

// Константы для типов действий
const (
	CreditActionGenerate   = "CONTENT_GENERATE"
	CreditActionRegenerate = "CONTENT_REGENERATE"
)

// CreditUsage - запись об одном списании кредита. Журнал только на добавление:
// строки никогда не обновляются и не удаляются (кроме административной очистки).
type CreditUsage struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Action      string    `gorm:"type:varchar(100);not null" json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (CreditUsage) TableName() string {
	return "credit_usage"
}
