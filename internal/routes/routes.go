package routes

import (
	"net/http"

	"capgen_backend/internal/handlers"
	"capgen_backend/internal/middleware"
	"capgen_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все HTTP-маршруты.
// otpLimiter вешается только на эндпоинты выдачи кодов.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	otpLimiter gin.HandlerFunc,
) {
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := ginRouter.Group("/api")

	// Аутентификация не требует токена
	appHandlers.AuthHandler.RegisterRoutes(api, otpLimiter)

	// Все остальное - только с валидным access-токеном
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		appHandlers.ClientHandler.RegisterRoutes(protected)
		appHandlers.TranscribeHandler.RegisterRoutes(protected)
		appHandlers.SubscriptionHandler.RegisterRoutes(protected, middleware.RoleMiddleware(models.RoleAdmin))
	}
}
