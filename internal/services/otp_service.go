package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/metrics"
	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/pkg/apperrors"
)

type OTPService interface {
	// Generate выдает новый код, гася предыдущие того же типа,
	// и ставит письмо в очередь отправки
	Generate(user *models.User, otpType models.OTPType) error

	// Verify проверяет и потребляет код. Истекший и несуществующий
	// коды дают разные ошибки.
	Verify(user *models.User, code string, otpType models.OTPType) error
}

type OTPServiceImpl struct {
	otpRepo       repositories.OTPRepository
	emailService  *EmailService
	metrics       *metrics.Metrics
	expiryMinutes int
}

func NewOTPService(otpRepo repositories.OTPRepository, emailService *EmailService, m *metrics.Metrics, expiryMinutes int) OTPService {
	if expiryMinutes <= 0 {
		expiryMinutes = 15
	}
	return &OTPServiceImpl{
		otpRepo:       otpRepo,
		emailService:  emailService,
		metrics:       m,
		expiryMinutes: expiryMinutes,
	}
}

func (s *OTPServiceImpl) Generate(user *models.User, otpType models.OTPType) error {
	now := time.Now()

	// Чистка перед выдачей: истекшие коды не копятся
	if err := s.otpRepo.PurgeExpired(user.ID, otpType, now); err != nil {
		return apperrors.InternalError(err)
	}

	// Один действующий код на (пользователь, тип)
	if err := s.otpRepo.DeactivateAll(user.ID, otpType); err != nil {
		return apperrors.InternalError(err)
	}

	code, err := generateOTPCode()
	if err != nil {
		return apperrors.InternalError(err)
	}

	otp := &models.OTPVerification{
		UserID:    user.ID,
		Code:      code,
		Type:      otpType,
		ExpiresAt: now.Add(time.Duration(s.expiryMinutes) * time.Minute),
		IsActive:  true,
	}
	if err := s.otpRepo.Create(otp); err != nil {
		return apperrors.InternalError(err)
	}

	s.emailService.SendOTP(user.Email, code, otpType, s.expiryMinutes)

	if s.metrics != nil {
		s.metrics.OTPIssued.WithLabelValues(string(otpType)).Inc()
	}
	logger.Info("otp issued", "user_id", user.ID, "type", string(otpType))
	return nil
}

func (s *OTPServiceImpl) Verify(user *models.User, code string, otpType models.OTPType) error {
	now := time.Now()

	otp, err := s.otpRepo.FindActive(user.ID, otpType)
	if err != nil {
		if apperrors.Is(err, repositories.ErrOTPNotFound) {
			return apperrors.ErrInvalidOTP
		}
		return apperrors.InternalError(err)
	}

	if otp.Code != code {
		return apperrors.ErrInvalidOTP
	}

	if !otp.ExpiresAt.After(now) {
		// Совпавший, но истекший код: отдельное сообщение и чистка
		if purgeErr := s.otpRepo.PurgeExpired(user.ID, otpType, now); purgeErr != nil {
			logger.Error("otp purge failed", "user_id", user.ID, "error", purgeErr)
		}
		return apperrors.ErrOTPExpired
	}

	if err := s.otpRepo.Consume(otp); err != nil {
		if apperrors.Is(err, repositories.ErrOTPNotFound) {
			// Конкурентная верификация успела первой
			return apperrors.ErrInvalidOTP
		}
		return apperrors.InternalError(err)
	}

	logger.Info("otp verified", "user_id", user.ID, "type", string(otpType))
	return nil
}

// generateOTPCode - 6 цифр из криптографического ГСЧ
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("otp generation: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
