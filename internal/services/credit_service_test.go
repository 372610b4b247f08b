package services

import (
	"sync"
	"testing"
	"time"

	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreditRepo повторяет семантику дневного лимита в памяти.
// premium управляется флагом, usage пишется только при успешном списании.
type fakeCreditRepo struct {
	mu      sync.Mutex
	premium bool
	usage   []models.CreditUsage
}

func (r *fakeCreditRepo) countForDay(day time.Time) int64 {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var n int64
	for _, u := range r.usage {
		if !u.CreatedAt.Before(start) && u.CreatedAt.Before(end) {
			n++
		}
	}
	return n
}

func (r *fakeCreditRepo) Charge(userID, action, description string, freeDailyLimit int, now time.Time) (*repositories.CreditState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := r.countForDay(now)
	if !r.premium && used >= int64(freeDailyLimit) {
		return nil, repositories.ErrCreditLimitExceeded
	}

	r.usage = append(r.usage, models.CreditUsage{
		UserID:    userID,
		Action:    action,
		CreatedAt: now,
	})
	return r.state(freeDailyLimit, now), nil
}

func (r *fakeCreditRepo) State(userID string, freeDailyLimit int, now time.Time) (*repositories.CreditState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state(freeDailyLimit, now), nil
}

func (r *fakeCreditRepo) state(freeDailyLimit int, now time.Time) *repositories.CreditState {
	used := r.countForDay(now)
	if r.premium {
		return &repositories.CreditState{IsPremium: true, UsedToday: used, DailyLimit: 0, Remaining: -1}
	}
	remaining := freeDailyLimit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return &repositories.CreditState{UsedToday: used, DailyLimit: freeDailyLimit, Remaining: remaining}
}

func (r *fakeCreditRepo) CountForDate(userID string, date time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countForDay(date), nil
}

func (r *fakeCreditRepo) ListByUser(userID string, limit, offset int) ([]models.CreditUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CreditUsage, len(r.usage))
	copy(out, r.usage)
	return out, nil
}

func TestCreditUse_FreeTierCountsDown(t *testing.T) {
	t.Parallel()
	repo := &fakeCreditRepo{}
	svc := NewCreditService(repo, nil, 3)

	state, err := svc.Use("user-1", models.CreditActionGenerate, "job one")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.UsedToday)
	assert.Equal(t, 3, state.DailyLimit)
	assert.Equal(t, 2, state.Remaining)
}

func TestCreditUse_LimitRejectsFourthCharge(t *testing.T) {
	t.Parallel()
	repo := &fakeCreditRepo{}
	svc := NewCreditService(repo, nil, 3)

	for i := 0; i < 3; i++ {
		_, err := svc.Use("user-1", models.CreditActionGenerate, "job")
		require.NoError(t, err)
	}

	_, err := svc.Use("user-1", models.CreditActionGenerate, "job")
	assert.ErrorIs(t, err, apperrors.ErrCreditLimitReached)

	// Отказ не пишет строку использования
	usage, _ := svc.History("user-1", 10, 0)
	assert.Len(t, usage, 3)
}

func TestCreditUse_PremiumIsUnlimited(t *testing.T) {
	t.Parallel()
	repo := &fakeCreditRepo{premium: true}
	svc := NewCreditService(repo, nil, 3)

	var last int64
	for i := 0; i < 10; i++ {
		state, err := svc.Use("user-1", models.CreditActionGenerate, "job")
		require.NoError(t, err)
		assert.True(t, state.IsPremium)
		assert.Equal(t, 0, state.DailyLimit)
		assert.Equal(t, -1, state.Remaining)
		last = state.UsedToday
	}
	assert.Equal(t, int64(10), last, "использование учитывается и у премиума")
}

func TestCreditUse_ConcurrentChargeAtLimitBoundary(t *testing.T) {
	t.Parallel()
	repo := &fakeCreditRepo{}
	svc := NewCreditService(repo, nil, 3)

	// Два кредита уже потрачены, остался один
	for i := 0; i < 2; i++ {
		_, err := svc.Use("user-1", models.CreditActionGenerate, "job")
		require.NoError(t, err)
	}

	// Гонка за последний кредит: списание сериализуется,
	// лимит не может быть превышен
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Use("user-1", models.CreditActionGenerate, "job")
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrCreditLimitReached)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	usage, _ := svc.History("user-1", 10, 0)
	assert.Len(t, usage, 3)
}

func TestCreditState_DoesNotCharge(t *testing.T) {
	t.Parallel()
	repo := &fakeCreditRepo{}
	svc := NewCreditService(repo, nil, 3)

	state, err := svc.State("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.UsedToday)

	state, err = svc.State("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.UsedToday)
}
