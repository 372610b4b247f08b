package handlers

import (
	"net/http"

	"capgen_backend/internal/services"
	"capgen_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	*BaseHandler
	clientService services.ClientService
}

func NewClientHandler(base *BaseHandler, clientService services.ClientService) *ClientHandler {
	return &ClientHandler{
		BaseHandler:   base,
		clientService: clientService,
	}
}

func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	clients := rg.Group("/clients")
	{
		clients.POST("/add-client", h.AddClient)
		clients.GET("/my-clients", h.MyClients)
		clients.GET("/my-clients/:id", h.GetClient)
		clients.DELETE("/my-clients/:id", h.DeleteClient)
	}
}

// AddClient принимает multipart-форму с данными бренда и опциональным логотипом
func (h *ClientHandler) AddClient(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateClientRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	var logo *services.LogoUpload
	if fileHeader, err := c.FormFile("logo"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			h.HandleServiceError(c, err)
			return
		}
		defer f.Close()
		logo = &services.LogoUpload{
			Filename: fileHeader.Filename,
			Reader:   f,
		}
	}

	resp, err := h.clientService.Create(c.Request.Context(), userID, &req, logo)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ClientHandler) MyClients(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.clientService.List(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.clientService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.clientService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Client deleted successfully."})
}
