package repositories

import (
	"errors"
	"time"

	"capgen_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrTokenNotFound     = errors.New("refresh token not found")
)

type UserRepository interface {
	// User operations
	FindByID(id string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	FindByOAuthID(oauthID string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	Delete(userID string) error
	VerifyUser(userID string) error
	UpdateLastLogin(userID string) error

	// Подписка: условный даунгрейд истекших премиумов одним UPDATE
	DowngradeExpired(now time.Time) (int64, error)

	// DowngradeIfExpired - то же для одного пользователя; вызывается при
	// каждой оценке тарифа, чтобы истекший премиум фиксировался сразу,
	// а не ждал фонового воркера
	DowngradeIfExpired(userID string, now time.Time) (bool, error)

	// RefreshToken operations
	CreateRefreshToken(token *models.RefreshToken) error
	FindRefreshToken(token string) (*models.RefreshToken, error)
	DeleteRefreshToken(token string) error
	DeleteUserRefreshTokens(userID string) error
	CleanExpiredRefreshTokens() error
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

// User operations

func (r *UserRepositoryImpl) FindByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByOAuthID(oauthID string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "oauth_id = ?", oauthID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (r *UserRepositoryImpl) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete удаляет пользователя вместе с зависимыми записями.
// Используется при перерегистрации неверифицированного аккаунта.
func (r *UserRepositoryImpl) Delete(userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.OTPVerification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
}

func (r *UserRepositoryImpl) VerifyUser(userID string) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_verified", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) UpdateLastLogin(userID string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", time.Now()).Error
}

// DowngradeExpired переводит всех пользователей с истекшей премиум-подпиской
// на бесплатный тариф. Одним условным UPDATE, без чтения кандидатов:
// при конкурирующих воркерах апдейт применится ровно один раз.
func (r *UserRepositoryImpl) DowngradeExpired(now time.Time) (int64, error) {
	result := downgradeExpiredScope(r.db, now).
		Updates(expiredDowngradeValues())
	return result.RowsAffected, result.Error
}

// DowngradeIfExpired применяет тот же условный UPDATE к одному пользователю.
// true - тариф был сброшен этим вызовом.
func (r *UserRepositoryImpl) DowngradeIfExpired(userID string, now time.Time) (bool, error) {
	result := downgradeExpiredScope(r.db, now).
		Where("id = ?", userID).
		Updates(expiredDowngradeValues())
	return result.RowsAffected > 0, result.Error
}

func downgradeExpiredUserTx(tx *gorm.DB, userID string, now time.Time) error {
	return downgradeExpiredScope(tx, now).
		Where("id = ?", userID).
		Updates(expiredDowngradeValues()).Error
}

func downgradeExpiredScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&models.User{}).
		Where("subscription_tier IN ?", []models.SubscriptionTier{models.TierPremiumMonthly, models.TierPremiumYearly}).
		Where("subscription_ends_at IS NOT NULL AND subscription_ends_at <= ?", now)
}

func expiredDowngradeValues() map[string]interface{} {
	return map[string]interface{}{
		"subscription_tier":       models.TierFree,
		"subscription_started_at": nil,
		"subscription_ends_at":    nil,
	}
}

// RefreshToken operations

func (r *UserRepositoryImpl) CreateRefreshToken(token *models.RefreshToken) error {
	return r.db.Create(token).Error
}

func (r *UserRepositoryImpl) FindRefreshToken(token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.db.First(&rt, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &rt, nil
}

func (r *UserRepositoryImpl) DeleteRefreshToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&models.RefreshToken{}).Error
}

func (r *UserRepositoryImpl) DeleteUserRefreshTokens(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

func (r *UserRepositoryImpl) CleanExpiredRefreshTokens() error {
	return r.db.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error
}
