package services

import (
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/pkg/apperrors"
)

// Длительности тарифов
const (
	monthlyDuration = 28 * 24 * time.Hour
	yearlyDuration  = 365 * 24 * time.Hour
)

type SubscriptionService interface {
	// Upgrade переводит на платный тариф: start=now, end=now+срок
	Upgrade(userID string, tier models.SubscriptionTier) (*dto.SubscriptionResponse, error)

	// Downgrade немедленно возвращает на бесплатный тариф
	Downgrade(userID string) (*dto.SubscriptionResponse, error)

	Status(userID string) (*dto.SubscriptionResponse, error)

	// DowngradeExpired - фоновый проход: один условный UPDATE
	DowngradeExpired() (int64, error)
}

type SubscriptionServiceImpl struct {
	userRepo      repositories.UserRepository
	creditService CreditService
}

func NewSubscriptionService(userRepo repositories.UserRepository, creditService CreditService) SubscriptionService {
	return &SubscriptionServiceImpl{
		userRepo:      userRepo,
		creditService: creditService,
	}
}

func (s *SubscriptionServiceImpl) Upgrade(userID string, tier models.SubscriptionTier) (*dto.SubscriptionResponse, error) {
	if !tier.IsPremiumTier() {
		return nil, apperrors.ErrInvalidSubscriptionTier
	}

	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	duration := monthlyDuration
	if tier == models.TierPremiumYearly {
		duration = yearlyDuration
	}
	endsAt := now.Add(duration)

	user.SubscriptionTier = tier
	user.SubscriptionStartedAt = &now
	user.SubscriptionEndsAt = &endsAt

	if err := s.userRepo.Update(user); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.Info("subscription upgraded",
		"user_id", userID, "tier", string(tier), "ends_at", endsAt)
	return s.buildResponse(user)
}

func (s *SubscriptionServiceImpl) Downgrade(userID string) (*dto.SubscriptionResponse, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	user.SubscriptionTier = models.TierFree
	user.SubscriptionStartedAt = nil
	user.SubscriptionEndsAt = nil

	if err := s.userRepo.Update(user); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.Info("subscription downgraded", "user_id", userID)
	return s.buildResponse(user)
}

func (s *SubscriptionServiceImpl) Status(userID string) (*dto.SubscriptionResponse, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	// Истекший премиум сбрасываем при первом же обращении к статусу,
	// не дожидаясь фонового DowngradeExpired
	now := time.Now()
	if user.SubscriptionTier.IsPremiumTier() && !user.HasActivePremium(now) {
		downgraded, err := s.userRepo.DowngradeIfExpired(userID, now)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		if downgraded {
			logger.Info("expired subscription downgraded on status", "user_id", userID)
		}
		user.SubscriptionTier = models.TierFree
		user.SubscriptionStartedAt = nil
		user.SubscriptionEndsAt = nil
	}

	return s.buildResponse(user)
}

func (s *SubscriptionServiceImpl) DowngradeExpired() (int64, error) {
	return s.userRepo.DowngradeExpired(time.Now())
}

func (s *SubscriptionServiceImpl) findUser(userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return user, nil
}

func (s *SubscriptionServiceImpl) buildResponse(user *models.User) (*dto.SubscriptionResponse, error) {
	credits, err := s.creditService.State(user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{
		Tier:      string(user.SubscriptionTier),
		IsPremium: user.HasActivePremium(time.Now()),
		StartedAt: user.SubscriptionStartedAt,
		EndsAt:    user.SubscriptionEndsAt,
		Credits:   *credits,
	}, nil
}
