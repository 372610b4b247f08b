package handlers

import (
	"net/http"

	"capgen_backend/internal/models"
	"capgen_backend/internal/services"
	"capgen_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
	creditService       services.CreditService
}

func NewSubscriptionHandler(
	base *BaseHandler,
	subscriptionService services.SubscriptionService,
	creditService services.CreditService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
		creditService:       creditService,
	}
}

// RegisterRoutes регистрирует маршруты подписки и кредитов.
// Смена тарифа запускается биллингом, поэтому доступна только адмнистраторам.
func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	sub := rg.Group("/subscription")
	{
		sub.GET("/status", h.Status)
		sub.POST("/upgrade", adminOnly, h.Upgrade)
		sub.POST("/downgrade", adminOnly, h.Downgrade)
	}

	credits := rg.Group("/credits")
	{
		credits.GET("/state", h.CreditState)
		credits.GET("/history", h.CreditHistory)
	}
}

func (h *SubscriptionHandler) Status(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.subscriptionService.Status(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	var req dto.UpgradeSubscriptionRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.subscriptionService.Upgrade(req.UserID, models.SubscriptionTier(req.Tier))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	var req dto.DowngradeSubscriptionRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.subscriptionService.Downgrade(req.UserID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreditState возвращает дневной счетчик без списания
func (h *SubscriptionHandler) CreditState(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.creditService.State(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) CreditHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	limit, offset := ParseLimitOffset(c)
	usage, err := h.creditService.History(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"usage":  usage,
		"limit":  limit,
		"offset": offset,
	})
}
