package dto

import (
	"time"

	"capgen_backend/internal/models"
)

// RegisterRequest - запрос регистрации
type RegisterRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// SigninRequest - запрос входа (первый шаг, всегда выдает OTP)
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyOTPRequest - подтверждение кода (регистрация или вход)
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp_code" validate:"required,len=6"`
}

// RequestOTPRequest - повторная выдача кода
type RequestOTPRequest struct {
	Email string         `json:"email" validate:"required,email"`
	Type  models.OTPType `json:"otp_type" validate:"required,is-otp-type"`
}

// PasswordResetRequest - запрос кода для сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirm - сброс пароля после верификации кода
type PasswordResetConfirm struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"otp_code" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// OAuthSigninRequest - вход через внешнего провайдера
type OAuthSigninRequest struct {
	Provider    string `json:"provider" validate:"required"`
	OAuthID     string `json:"oauth_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"full_name,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	ProfilePic  string `json:"profile_pic,omitempty"`
}

// RefreshTokenRequest - запрос обновления токена
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest - запрос выхода
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse - ответ с токенами
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse - публичное представление пользователя
type UserResponse struct {
	ID               string     `json:"id"`
	FullName         string     `json:"full_name"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	ProfilePic       string     `json:"profile_pic,omitempty"`
	IsVerified       bool       `json:"is_verified"`
	SubscriptionTier string     `json:"subscription_tier"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewUserResponse собирает UserResponse из модели
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		FullName:         u.FullName,
		Email:            u.Email,
		Username:         u.Username,
		PhoneNumber:      u.PhoneNumber,
		ProfilePic:       u.ProfilePic,
		IsVerified:       u.IsVerified,
		SubscriptionTier: string(u.SubscriptionTier),
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// MessageResponse - простой ответ-подтверждение
type MessageResponse struct {
	Message string `json:"message"`
}
