package dto

import "time"

// UpgradeSubscriptionRequest - перевод пользователя на платный тариф.
// Вызывается биллингом от имени администратора, поэтому цель задается явно.
type UpgradeSubscriptionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Tier   string `json:"tier" validate:"required,is-subscription-plan"`
}

// DowngradeSubscriptionRequest - немедленный возврат на бесплатный тариф
type DowngradeSubscriptionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// SubscriptionResponse - состояние подписки
type SubscriptionResponse struct {
	Tier      string     `json:"tier"`
	IsPremium bool       `json:"is_premium"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`

	Credits CreditStateResponse `json:"credits"`
}
