package workers

import (
	"context"
	"time"

	"capgen_backend/internal/logger"
	"capgen_backend/internal/services"
)

// SubscriptionWorker периодически возвращает на бесплатный тариф
// пользователей с истекшим премиумом.
type SubscriptionWorker struct {
	subscriptions services.SubscriptionService
	interval      time.Duration
}

func NewSubscriptionWorker(subscriptions services.SubscriptionService) *SubscriptionWorker {
	return &SubscriptionWorker{
		subscriptions: subscriptions,
		interval:      6 * time.Hour,
	}
}

func (w *SubscriptionWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *SubscriptionWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Subscription worker stopped")
			return
		case <-ticker.C:
			downgraded, err := w.subscriptions.DowngradeExpired()
			if err != nil {
				logger.WorkerLog("subscription", "downgrade_expired", err)
			} else if downgraded > 0 {
				logger.Info("Downgraded expired premium subscriptions", "count", downgraded)
			}
		}
	}
}
