package services

import (
	"sync"

	"capgen_backend/internal/email"
	"capgen_backend/internal/logger"
	"capgen_backend/internal/models"
)

// EmailService отправляет письма асинхронно через ограниченный пул
// воркеров. Отправка fire-and-forget: сбой логируется и не влияет
// на запрос, который ее инициировал.
type EmailService struct {
	provider email.Provider

	jobs      chan emailJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type emailJob struct {
	to           string
	subject      string
	templateName string
	data         email.TemplateData
}

func NewEmailService(provider email.Provider, workerCount int) *EmailService {
	if workerCount <= 0 {
		workerCount = 5
	}

	s := &EmailService{
		provider: provider,
		jobs:     make(chan emailJob, 100),
	}

	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

func (s *EmailService) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		msg := &email.Email{
			To:      []string{job.to},
			Subject: job.subject,
		}
		if err := s.provider.SendWithTemplate(job.templateName, job.data, msg); err != nil {
			logger.Error("email send failed", "to", job.to, "subject", job.subject, "error", err)
			continue
		}
		logger.Debug("email sent", "to", job.to, "subject", job.subject)
	}
}

// SendOTP ставит письмо с одноразовым кодом в очередь отправки
func (s *EmailService) SendOTP(to, code string, otpType models.OTPType, expiryMinutes int) {
	subject, title, purpose := otpEmailText(otpType)

	s.enqueue(emailJob{
		to:           to,
		subject:      subject,
		templateName: email.TemplateOTPCode,
		data: email.TemplateData{
			"Title":         title,
			"Purpose":       purpose,
			"Code":          code,
			"ExpiryMinutes": expiryMinutes,
		},
	})
}

func (s *EmailService) enqueue(job emailJob) {
	select {
	case s.jobs <- job:
	default:
		// Очередь забита: письмо дешевле потерять, чем заблокировать запрос
		logger.Warn("email queue full, dropping message", "to", job.to, "subject", job.subject)
	}
}

// Close дожидается отправки поставленных писем
func (s *EmailService) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func otpEmailText(otpType models.OTPType) (subject, title, purpose string) {
	switch otpType {
	case models.OTPTypeRegistration:
		return "Verify your email", "Confirm your registration", "verify your email address"
	case models.OTPTypeSignin:
		return "Your sign-in code", "Sign in to your account", "sign in to your account"
	case models.OTPTypePasswordReset:
		return "Reset your password", "Password reset", "reset your password"
	default:
		return "Your verification code", "Verification code", "continue"
	}
}
