package handlers

import (
	"net/http"

	"capgen_backend/internal/services"
	"capgen_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	*BaseHandler
	authService services.AuthService
}

func NewAuthHandler(base *BaseHandler, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		authService: authService,
	}
}

// RegisterRoutes регистрирует маршруты аутентификации.
// otpLimit вешается на эндпоинты, которые шлют письма с кодами.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, otpLimit gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", otpLimit, h.Register)
		auth.POST("/verify-registration", h.VerifyRegistration)
		auth.POST("/signin", otpLimit, h.Signin)
		auth.POST("/verify-signin", h.VerifySignin)
		auth.POST("/request-otp", otpLimit, h.RequestOTP)
		auth.POST("/request-password-reset", otpLimit, h.RequestPasswordReset)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/oauth-signin", h.OAuthSignin)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.Register(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MessageResponse{
		Message: "Registration successful. Please check your email for the verification code.",
	})
}

func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.authService.VerifyRegistration(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Signin(c *gin.Context) {
	var req dto.SigninRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.Signin(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Verification code sent. Please check your email.",
	})
}

func (h *AuthHandler) VerifySignin(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.authService.VerifySignin(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req dto.RequestOTPRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.RequestOTP(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Verification code sent. Please check your email.",
	})
}

func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.RequestPasswordReset(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Password reset code sent. Please check your email.",
	})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.PasswordResetConfirm
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.ConfirmPasswordReset(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Password has been reset successfully.",
	})
}

func (h *AuthHandler) OAuthSignin(c *gin.Context) {
	var req dto.OAuthSigninRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.authService.OAuthSignin(&req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.authService.RefreshToken(req.RefreshToken)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	if err := h.authService.Logout(req.RefreshToken); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Logged out successfully.",
	})
}
