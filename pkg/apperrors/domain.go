package apperrors

import (
	"net/http"
)

/*
Предопределенные ошибки бизнес-логики и фабрики для доменных ошибок.
*/

// ErrNotFound - фабрика для ошибки "не найдено" (404).
// Используется и когда ресурс принадлежит другому пользователю:
// "не найдено" и "не ваше" снаружи неразличимы.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists - фабрика для ошибки "уже существует" (409)
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrInvalidStatus - фабрика для недопустимых переходов статуса (400)
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusBadRequest)
}

// --- Auth & OTP ---

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusBadRequest,
)

var ErrUserNotVerified = New(
	CodeInvalidOperation,
	"auth",
	"Account not verified. Please complete registration first.",
	http.StatusBadRequest,
)

var ErrUserDeactivated = New(
	CodeInvalidOperation,
	"auth",
	"User account is deactivated",
	http.StatusBadRequest,
)

var ErrUserAlreadyVerified = New(
	CodeInvalidOperation,
	"auth",
	"A verified user with this email already exists. Please sign in instead.",
	http.StatusBadRequest,
)

var ErrUserNotFoundByEmail = New(
	CodeNotFound,
	"auth",
	"User with this email does not exist",
	http.StatusBadRequest,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrWeakPassword = New(
	CodeValidationFailed,
	"auth",
	"Password must be at least 8 characters long",
	http.StatusBadRequest,
)

var ErrInvalidOTP = New(
	CodeInvalidOTP,
	"otp",
	"Invalid OTP code",
	http.StatusBadRequest,
)

var ErrOTPExpired = New(
	CodeOTPExpired,
	"otp",
	"OTP has expired",
	http.StatusBadRequest,
)

var ErrTooManyOTPRequests = New(
	CodeRateLimited,
	"otp",
	"Too many OTP requests. Please try again later.",
	http.StatusTooManyRequests,
)

// --- Credits & Subscription ---

// ErrCreditLimitReached - дневной лимит free-тарифа исчерпан.
// Текст фиксированный, используется строго один на все отказы по лимиту.
var ErrCreditLimitReached = New(
	CodeLimitExceeded,
	"credits",
	"Daily credit limit reached. Upgrade to premium for unlimited generations.",
	http.StatusBadRequest,
)

var ErrInvalidSubscriptionTier = New(
	CodeInvalidOperation,
	"subscription",
	"Invalid subscription tier",
	http.StatusBadRequest,
)

// --- Jobs ---

// ErrJobStateConflict - запрошенный переход недопустим из текущего статуса
func ErrJobStateConflict(current string) *AppError {
	return New(
		CodeInvalidStatus,
		"jobs",
		"Job cannot be generated from its current status: "+current,
		http.StatusBadRequest,
	)
}

var ErrInvalidFileType = New(
	CodeValidationFailed,
	"jobs",
	"Unsupported file type. Allowed: audio, video, image.",
	http.StatusBadRequest,
)

var ErrFileTooLarge = New(
	CodeLimitExceeded,
	"validation",
	"File size exceeds the allowed limit",
	http.StatusRequestEntityTooLarge,
)
