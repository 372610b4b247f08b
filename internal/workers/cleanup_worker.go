package workers

import (
	"context"
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/repositories"
)

// CleanupWorker чистит истекшие одноразовые коды и refresh-токены
type CleanupWorker struct {
	otpRepo  repositories.OTPRepository
	userRepo repositories.UserRepository
	interval time.Duration
}

func NewCleanupWorker(otpRepo repositories.OTPRepository, userRepo repositories.UserRepository) *CleanupWorker {
	return &CleanupWorker{
		otpRepo:  otpRepo,
		userRepo: userRepo,
		interval: time.Hour,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *CleanupWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup worker stopped")
			return
		case <-ticker.C:
			purged, err := w.otpRepo.PurgeAllExpired(time.Now())
			if err != nil {
				logger.WorkerLog("cleanup", "purge_expired_otps", err)
			} else if purged > 0 {
				logger.Info("Purged expired OTP codes", "count", purged)
			}

			if err := w.userRepo.CleanExpiredRefreshTokens(); err != nil {
				logger.WorkerLog("cleanup", "clean_expired_refresh_tokens", err)
			}
		}
	}
}
