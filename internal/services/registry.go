package services

import (
	"time"

	"capgen_backend/internal/config"
	"capgen_backend/internal/email"
	"capgen_backend/internal/imageprocessor"
	"capgen_backend/internal/metrics"
	"capgen_backend/internal/pipeline"
	"capgen_backend/internal/queue"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/storage"

	"gorm.io/gorm"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	AuthService         AuthService
	OTPService          OTPService
	CreditService       CreditService
	SubscriptionService SubscriptionService
	ClientService       ClientService
	JobService          JobService
	EmailService        *EmailService
}

// NewServiceContainer связывает репозитории, хранилище, конвейер и
// очередь в готовый набор сервисов.
func NewServiceContainer(db *gorm.DB, store storage.Storage, publisher queue.Publisher, m *metrics.Metrics) *ServiceContainer {
	cfg := config.GetConfig()

	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	jobRepo := repositories.NewJobRepository(db)

	provider := email.NewSMTPProvider(&email.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}, email.NewTemplateManager())
	emailService := NewEmailService(provider, cfg.Email.WorkerCount)

	otpService := NewOTPService(otpRepo, emailService, m, cfg.OTP.ExpiryMinutes)
	authService := NewAuthService(userRepo, otpService)
	creditService := NewCreditService(creditRepo, m, cfg.Credits.FreeDailyLimit)
	subscriptionService := NewSubscriptionService(userRepo, creditService)

	images := imageprocessor.NewProcessor(cfg.Upload.ImageQuality)
	clientService := NewClientService(clientRepo, store, images)

	converter := pipeline.NewFFmpegConverter(cfg.Pipeline.FFmpegPath, conversionTimeout(cfg))
	generator := pipeline.NewOpenAIGenerator(cfg.OpenAI.APIKey, m)

	jobService := NewJobService(
		jobRepo, clientRepo, creditService, store,
		converter, generator, generator,
		publisher, m, cfg.Upload.MaxSize,
	)

	container := &ServiceContainer{
		AuthService:         authService,
		OTPService:          otpService,
		CreditService:       creditService,
		SubscriptionService: subscriptionService,
		ClientService:       clientService,
		JobService:          jobService,
		EmailService:        emailService,
	}
	return container
}

func conversionTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Pipeline.ConversionTimeoutS) * time.Second
}
