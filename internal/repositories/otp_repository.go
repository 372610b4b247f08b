package repositories

import (
	"errors"
	"time"

	"capgen_backend/internal/models"

	"gorm.io/gorm"
)

var ErrOTPNotFound = errors.New("otp not found")

type OTPRepository interface {
	Create(otp *models.OTPVerification) error

	// FindActive возвращает действующий код пользователя данного типа
	FindActive(userID string, otpType models.OTPType) (*models.OTPVerification, error)

	// DeactivateAll гасит все действующие коды пользователя данного типа
	DeactivateAll(userID string, otpType models.OTPType) error

	// Consume помечает код использованным и удаляет его
	Consume(otp *models.OTPVerification) error

	// PurgeExpired удаляет истекшие коды пользователя данного типа
	PurgeExpired(userID string, otpType models.OTPType, now time.Time) error

	// PurgeAllExpired удаляет истекшие коды по всей таблице (фоновая чистка)
	PurgeAllExpired(now time.Time) (int64, error)
}

type OTPRepositoryImpl struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &OTPRepositoryImpl{db: db}
}

func (r *OTPRepositoryImpl) Create(otp *models.OTPVerification) error {
	return r.db.Create(otp).Error
}

func (r *OTPRepositoryImpl) FindActive(userID string, otpType models.OTPType) (*models.OTPVerification, error) {
	var otp models.OTPVerification
	err := r.db.
		Where("user_id = ? AND type = ? AND is_active = ? AND is_used = ?", userID, otpType, true, false).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return &otp, nil
}

func (r *OTPRepositoryImpl) DeactivateAll(userID string, otpType models.OTPType) error {
	return r.db.Model(&models.OTPVerification{}).
		Where("user_id = ? AND type = ? AND is_active = ?", userID, otpType, true).
		Update("is_active", false).Error
}

// Consume: сначала is_used = true, затем удаление. Порядок важен: если
// удаление не пройдет, код все равно не сработает второй раз.
func (r *OTPRepositoryImpl) Consume(otp *models.OTPVerification) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OTPVerification{}).
			Where("id = ? AND is_used = ?", otp.ID, false).
			Updates(map[string]interface{}{"is_used": true, "is_active": false})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOTPNotFound
		}
		return tx.Delete(&models.OTPVerification{}, "id = ?", otp.ID).Error
	})
}

func (r *OTPRepositoryImpl) PurgeExpired(userID string, otpType models.OTPType, now time.Time) error {
	return r.db.
		Where("user_id = ? AND type = ? AND expires_at < ?", userID, otpType, now).
		Delete(&models.OTPVerification{}).Error
}

func (r *OTPRepositoryImpl) PurgeAllExpired(now time.Time) (int64, error) {
	result := r.db.
		Where("expires_at < ?", now).
		Delete(&models.OTPVerification{})
	return result.RowsAffected, result.Error
}
