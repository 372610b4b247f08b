package services

import (
	"time"

	"capgen_backend/internal/metrics"
	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/pkg/apperrors"
)

type CreditService interface {
	// Use списывает ровно один кредит; для free-тарифа под дневным лимитом
	Use(userID, action, description string) (*dto.CreditStateResponse, error)

	// State возвращает текущее использование без списания
	State(userID string) (*dto.CreditStateResponse, error)

	History(userID string, limit, offset int) ([]models.CreditUsage, error)
}

type CreditServiceImpl struct {
	creditRepo     repositories.CreditRepository
	metrics        *metrics.Metrics
	freeDailyLimit int
}

func NewCreditService(creditRepo repositories.CreditRepository, m *metrics.Metrics, freeDailyLimit int) CreditService {
	if freeDailyLimit <= 0 {
		freeDailyLimit = 3
	}
	return &CreditServiceImpl{
		creditRepo:     creditRepo,
		metrics:        m,
		freeDailyLimit: freeDailyLimit,
	}
}

func (s *CreditServiceImpl) Use(userID, action, description string) (*dto.CreditStateResponse, error) {
	state, err := s.creditRepo.Charge(userID, action, description, s.freeDailyLimit, time.Now())
	if err != nil {
		if apperrors.Is(err, repositories.ErrCreditLimitExceeded) {
			if s.metrics != nil {
				s.metrics.CreditsRejected.Inc()
			}
			return nil, apperrors.ErrCreditLimitReached
		}
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	if s.metrics != nil {
		s.metrics.CreditsCharged.WithLabelValues(action).Inc()
	}
	return creditStateResponse(state), nil
}

func (s *CreditServiceImpl) State(userID string) (*dto.CreditStateResponse, error) {
	state, err := s.creditRepo.State(userID, s.freeDailyLimit, time.Now())
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return creditStateResponse(state), nil
}

func (s *CreditServiceImpl) History(userID string, limit, offset int) ([]models.CreditUsage, error) {
	if limit <= 0 {
		limit = 50
	}
	usage, err := s.creditRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return usage, nil
}

func creditStateResponse(state *repositories.CreditState) *dto.CreditStateResponse {
	return &dto.CreditStateResponse{
		IsPremium:  state.IsPremium,
		UsedToday:  state.UsedToday,
		DailyLimit: state.DailyLimit,
		Remaining:  state.Remaining,
	}
}
