package models

import "time"

// OTPVerification - одноразовый код для регистрации, входа и сброса пароля.
// Инвариант: не более одного активного кода на пару (user, type) -
// генерация нового кода деактивирует предыдущие.
type OTPVerification struct {
	BaseModel
	UserID    string    `gorm:"not null;index"`
	Code      string    `gorm:"type:varchar(6);not null"`
	Type      OTPType   `gorm:"type:varchar(20);not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	IsUsed    bool      `gorm:"default:false"`
	IsActive  bool      `gorm:"default:true"`
}

// IsValid - код активен, не использован и срок не истек
func (o *OTPVerification) IsValid(now time.Time) bool {
	return o.IsActive && !o.IsUsed && now.Before(o.ExpiresAt)
}

func (OTPVerification) TableName() string {
	return "otp_verifications"
}
