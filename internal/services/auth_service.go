package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"capgen_backend/internal/auth"
	"capgen_backend/internal/config"
	"capgen_backend/internal/logger"
	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/pkg/apperrors"
)

type AuthService interface {
	// Двухэтапная регистрация: сначала код на почту, затем verify
	Register(req *dto.RegisterRequest) error
	VerifyRegistration(req *dto.VerifyOTPRequest) (*dto.AuthResponse, error)

	// Вход тоже двухэтапный: пароль -> код -> токены
	Signin(req *dto.SigninRequest) error
	VerifySignin(req *dto.VerifyOTPRequest) (*dto.AuthResponse, error)

	RequestOTP(req *dto.RequestOTPRequest) error

	RequestPasswordReset(req *dto.PasswordResetRequest) error
	ConfirmPasswordReset(req *dto.PasswordResetConfirm) error

	OAuthSignin(req *dto.OAuthSigninRequest) (*dto.AuthResponse, error)

	RefreshToken(refreshToken string) (*dto.AuthResponse, error)
	Logout(refreshToken string) error
}

type AuthServiceImpl struct {
	userRepo   repositories.UserRepository
	otpService OTPService
}

func NewAuthService(userRepo repositories.UserRepository, otpService OTPService) AuthService {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		otpService: otpService,
	}
}

// Register создает неверифицированного пользователя и высылает код.
// Повторная регистрация на неверифицированный email пересоздает аккаунт.
func (s *AuthServiceImpl) Register(req *dto.RegisterRequest) error {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return apperrors.ErrWeakPassword
	}

	existing, err := s.userRepo.FindByEmail(req.Email)
	if err != nil && !apperrors.Is(err, repositories.ErrUserNotFound) {
		return apperrors.InternalError(err)
	}
	if existing != nil {
		if existing.IsVerified {
			return apperrors.ErrAlreadyExists(fmt.Errorf("email %s taken", req.Email))
		}
		// Брошенная регистрация: сносим вместе с кодами и начинаем заново
		if err := s.userRepo.Delete(existing.ID); err != nil {
			return apperrors.InternalError(err)
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.InternalError(err)
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Username:     deriveUsername(req.Email),
		PasswordHash: hash,
		PhoneNumber:  req.PhoneNumber,
		IsActive:     true,
		IsVerified:   false,
	}

	if err := s.userRepo.Create(user); err != nil {
		if apperrors.Is(err, repositories.ErrUserAlreadyExists) {
			// Коллизия username: та же локальная часть у другого email
			user.Username = deriveUsername(req.Email) + "_" + randomSuffix()
			if err = s.userRepo.Create(user); err != nil {
				return apperrors.InternalError(err)
			}
		} else {
			return apperrors.InternalError(err)
		}
	}

	if err := s.otpService.Generate(user, models.OTPTypeRegistration); err != nil {
		return err
	}

	logger.Info("user registered, verification pending", "user_id", user.ID)
	return nil
}

func (s *AuthServiceImpl) VerifyRegistration(req *dto.VerifyOTPRequest) (*dto.AuthResponse, error) {
	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, apperrors.ErrUserAlreadyVerified
	}

	if err := s.otpService.Verify(user, req.Code, models.OTPTypeRegistration); err != nil {
		return nil, err
	}

	if err := s.userRepo.VerifyUser(user.ID); err != nil {
		return nil, apperrors.InternalError(err)
	}
	user.IsVerified = true

	return s.issueTokens(user)
}

// Signin проверяет пароль и всегда выдает одноразовый код:
// токены отдает только verify-signin
func (s *AuthServiceImpl) Signin(req *dto.SigninRequest) error {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrInvalidCredentials
		}
		return apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	if !user.IsVerified {
		return apperrors.ErrUserNotVerified
	}
	if !user.IsActive {
		return apperrors.ErrUserDeactivated
	}

	return s.otpService.Generate(user, models.OTPTypeSignin)
}

func (s *AuthServiceImpl) VerifySignin(req *dto.VerifyOTPRequest) (*dto.AuthResponse, error) {
	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !user.IsVerified {
		return nil, apperrors.ErrUserNotVerified
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserDeactivated
	}

	if err := s.otpService.Verify(user, req.Code, models.OTPTypeSignin); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// RequestOTP перевыдает код. Допустимость зависит от типа: код
// регистрации только для неверифицированных, остальные - наоборот.
// Ответ одинаков независимо от существования адреса, чтобы эндпоинт
// не работал оракулом перебора почт: неподходящие запросы молча
// подтверждаются без отправки письма.
func (s *AuthServiceImpl) RequestOTP(req *dto.RequestOTPRequest) error {
	switch req.Type {
	case models.OTPTypeRegistration, models.OTPTypeSignin, models.OTPTypePasswordReset:
	default:
		return apperrors.NewBadRequestError("Unknown OTP type")
	}

	user, ok, err := s.lookupForOTP(req.Email)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	switch req.Type {
	case models.OTPTypeRegistration:
		if user.IsVerified {
			logger.Info("otp request skipped: already verified", "user_id", user.ID)
			return nil
		}
	default:
		if !user.IsVerified || !user.IsActive {
			logger.Info("otp request skipped: account not eligible", "user_id", user.ID)
			return nil
		}
	}

	return s.otpService.Generate(user, req.Type)
}

func (s *AuthServiceImpl) RequestPasswordReset(req *dto.PasswordResetRequest) error {
	user, ok, err := s.lookupForOTP(req.Email)
	if err != nil {
		return err
	}
	if !ok || !user.IsVerified {
		return nil
	}

	return s.otpService.Generate(user, models.OTPTypePasswordReset)
}

// lookupForOTP не отдает наружу факт отсутствия адреса: ok=false
// означает "ответить успехом, ничего не отправлять"
func (s *AuthServiceImpl) lookupForOTP(email string) (*models.User, bool, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			logger.Info("otp request for unknown email skipped")
			return nil, false, nil
		}
		return nil, false, apperrors.InternalError(err)
	}
	return user, true, nil
}

func (s *AuthServiceImpl) ConfirmPasswordReset(req *dto.PasswordResetConfirm) error {
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	user, err := s.findUserByEmail(req.Email)
	if err != nil {
		return err
	}

	if err := s.otpService.Verify(user, req.Code, models.OTPTypePasswordReset); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(user); err != nil {
		return apperrors.InternalError(err)
	}

	// Смена пароля инвалидирует выданные refresh-токены
	if err := s.userRepo.DeleteUserRefreshTokens(user.ID); err != nil {
		logger.Error("failed to revoke refresh tokens after password reset",
			"user_id", user.ID, "error", err)
	}

	logger.Info("password reset completed", "user_id", user.ID)
	return nil
}

// OAuthSignin: поиск по oauth_id, затем по email; новый пользователь
// создается сразу верифицированным со случайным паролем
func (s *AuthServiceImpl) OAuthSignin(req *dto.OAuthSigninRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByOAuthID(req.OAuthID)
	if err != nil && !apperrors.Is(err, repositories.ErrUserNotFound) {
		return nil, apperrors.InternalError(err)
	}

	if user == nil {
		user, err = s.userRepo.FindByEmail(req.Email)
		if err != nil && !apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.InternalError(err)
		}
	}

	if user == nil {
		randomPassword, err := auth.GenerateRandomPassword()
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		hash, err := auth.HashPassword(randomPassword)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}

		oauthID := req.OAuthID
		user = &models.User{
			FullName:         req.FullName,
			Email:            req.Email,
			Username:         deriveUsername(req.Email),
			PasswordHash:     hash,
			ProfilePic:       req.ProfilePic,
			OAuthProvider:    req.Provider,
			OAuthID:          &oauthID,
			OAuthAccessToken: req.AccessToken,
			IsActive:         true,
			IsVerified:       true, // провайдер уже проверил email
		}
		if err := s.userRepo.Create(user); err != nil {
			if apperrors.Is(err, repositories.ErrUserAlreadyExists) {
				user.Username = deriveUsername(req.Email) + "_" + randomSuffix()
				if err = s.userRepo.Create(user); err != nil {
					return nil, apperrors.InternalError(err)
				}
			} else {
				return nil, apperrors.InternalError(err)
			}
		}
		logger.Info("oauth user created", "user_id", user.ID, "provider", req.Provider)
	} else {
		if !user.IsActive {
			return nil, apperrors.ErrUserDeactivated
		}
		// Привязка или обновление oauth-полей существующего аккаунта
		oauthID := req.OAuthID
		user.OAuthProvider = req.Provider
		user.OAuthID = &oauthID
		user.OAuthAccessToken = req.AccessToken
		if req.FullName != "" {
			user.FullName = req.FullName
		}
		if req.ProfilePic != "" && user.ProfilePic == "" {
			user.ProfilePic = req.ProfilePic
		}
		if !user.IsVerified {
			user.IsVerified = true
		}
		if err := s.userRepo.Update(user); err != nil {
			return nil, apperrors.InternalError(err)
		}
	}

	return s.issueTokens(user)
}

// RefreshToken с ротацией: использованный токен удаляется
func (s *AuthServiceImpl) RefreshToken(refreshToken string) (*dto.AuthResponse, error) {
	stored, err := s.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.userRepo.DeleteRefreshToken(refreshToken)
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(stored.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserDeactivated
	}

	if err := s.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, apperrors.InternalError(err)
	}

	return s.issueTokens(user)
}

// Logout идемпотентен: повторный выход с тем же токеном не ошибка
func (s *AuthServiceImpl) Logout(refreshToken string) error {
	err := s.userRepo.DeleteRefreshToken(refreshToken)
	if err != nil && !apperrors.Is(err, repositories.ErrTokenNotFound) {
		return apperrors.InternalError(err)
	}
	return nil
}

// --- внутренние помощники ---

func (s *AuthServiceImpl) findUserByEmail(email string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFoundByEmail
		}
		return nil, apperrors.InternalError(err)
	}
	return user, nil
}

func (s *AuthServiceImpl) issueTokens(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	cfg := config.GetConfig()
	expiresAt := time.Now().Add(time.Duration(cfg.JWT.AccessTTLMin) * time.Minute)
	refreshExpiry := time.Now().Add(time.Duration(cfg.JWT.RefreshTTLHours) * time.Hour)

	if err := s.userRepo.CreateRefreshToken(&models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := s.userRepo.UpdateLastLogin(user.ID); err != nil {
		logger.Error("failed to update last login", "user_id", user.ID, "error", err)
	}
	now := time.Now()
	user.LastLoginAt = &now

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         dto.NewUserResponse(user),
	}, nil
}

func deriveUsername(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	return strings.ToLower(local)
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("refresh token generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()%10000)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
