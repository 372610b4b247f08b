package handlers

import (
	"capgen_backend/internal/services"
	"capgen_backend/internal/validator"
)

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	ClientHandler       *ClientHandler
	TranscribeHandler   *TranscribeHandler
	SubscriptionHandler *SubscriptionHandler
}

func NewAppHandlers(sc *services.ServiceContainer, v *validator.Validator) *AppHandlers {
	base := NewBaseHandler(v)

	return &AppHandlers{
		AuthHandler:         NewAuthHandler(base, sc.AuthService),
		ClientHandler:       NewClientHandler(base, sc.ClientService),
		TranscribeHandler:   NewTranscribeHandler(base, sc.JobService),
		SubscriptionHandler: NewSubscriptionHandler(base, sc.SubscriptionService, sc.CreditService),
	}
}
