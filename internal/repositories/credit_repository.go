package repositories

import (
	"errors"
	"time"

	"capgen_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCreditLimitExceeded = errors.New("credit limit exceeded")

type CreditRepository interface {
	// Charge списывает один кредит. Для бесплатного тарифа действует дневной
	// лимит; возврат ErrCreditLimitExceeded означает, что запись не создана.
	Charge(userID, action, description string, freeDailyLimit int, now time.Time) (*CreditState, error)

	// State возвращает текущее использование без списания
	State(userID string, freeDailyLimit int, now time.Time) (*CreditState, error)

	CountForDate(userID string, date time.Time) (int64, error)
	ListByUser(userID string, limit, offset int) ([]models.CreditUsage, error)
}

// CreditState - снимок счетчика кредитов пользователя
type CreditState struct {
	IsPremium  bool
	UsedToday  int64
	DailyLimit int // 0 для премиума (без лимита)
	Remaining  int // -1 для премиума
}

type CreditRepositoryImpl struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &CreditRepositoryImpl{db: db}
}

// Charge выполняется в одной транзакции с блокировкой строки пользователя:
// конкурентные списания сериализуются и лимит не может быть превышен.
func (r *CreditRepositoryImpl) Charge(userID, action, description string, freeDailyLimit int, now time.Time) (*CreditState, error) {
	var state *CreditState

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		premium := user.HasActivePremium(now)

		// Истекший премиум фиксируем сразу, внутри той же транзакции:
		// до фонового свипа пользователь уже считается бесплатным
		if !premium && user.SubscriptionTier.IsPremiumTier() {
			if err := downgradeExpiredUserTx(tx, userID, now); err != nil {
				return err
			}
		}

		var used int64
		if err := countForDateTx(tx, userID, now, &used); err != nil {
			return err
		}

		if !premium && used >= int64(freeDailyLimit) {
			return ErrCreditLimitExceeded
		}

		usage := models.CreditUsage{
			UserID:      userID,
			Action:      action,
			Description: description,
		}
		if err := tx.Create(&usage).Error; err != nil {
			return err
		}

		state = buildState(premium, used+1, freeDailyLimit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *CreditRepositoryImpl) State(userID string, freeDailyLimit int, now time.Time) (*CreditState, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	premium := user.HasActivePremium(now)
	if !premium && user.SubscriptionTier.IsPremiumTier() {
		if err := downgradeExpiredUserTx(r.db, userID, now); err != nil {
			return nil, err
		}
	}

	var used int64
	if err := countForDateTx(r.db, userID, now, &used); err != nil {
		return nil, err
	}

	return buildState(premium, used, freeDailyLimit), nil
}

func (r *CreditRepositoryImpl) CountForDate(userID string, date time.Time) (int64, error) {
	var count int64
	err := countForDateTx(r.db, userID, date, &count)
	return count, err
}

func (r *CreditRepositoryImpl) ListByUser(userID string, limit, offset int) ([]models.CreditUsage, error) {
	var usage []models.CreditUsage
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&usage).Error
	return usage, err
}

// Счет ведется по календарной дате: [полночь, полночь+24ч)
func countForDateTx(tx *gorm.DB, userID string, date time.Time, out *int64) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	return tx.Model(&models.CreditUsage{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, dayStart, dayEnd).
		Count(out).Error
}

func buildState(premium bool, used int64, freeDailyLimit int) *CreditState {
	if premium {
		return &CreditState{IsPremium: true, UsedToday: used, DailyLimit: 0, Remaining: -1}
	}
	remaining := freeDailyLimit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return &CreditState{IsPremium: false, UsedToday: used, DailyLimit: freeDailyLimit, Remaining: remaining}
}
