package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"capgen_backend/internal/imageprocessor"
	"capgen_backend/internal/logger"
	"capgen_backend/internal/models"
	"capgen_backend/internal/repositories"
	"capgen_backend/internal/services/dto"
	"capgen_backend/internal/storage"
	"capgen_backend/pkg/apperrors"
)

// LogoUpload - необязательный логотип в форме создания клиента
type LogoUpload struct {
	Filename string
	Reader   io.Reader
}

type ClientService interface {
	Create(ctx context.Context, userID string, req *dto.CreateClientRequest, logo *LogoUpload) (*dto.ClientResponse, error)
	List(ctx context.Context, userID string) (*dto.ClientListResponse, error)
	Get(ctx context.Context, userID, clientID string) (*dto.ClientResponse, error)
	Delete(ctx context.Context, userID, clientID string) error
}

type ClientServiceImpl struct {
	clientRepo repositories.ClientRepository
	storage    storage.Storage
	images     *imageprocessor.Processor
}

func NewClientService(clientRepo repositories.ClientRepository, store storage.Storage, images *imageprocessor.Processor) ClientService {
	return &ClientServiceImpl{
		clientRepo: clientRepo,
		storage:    store,
		images:     images,
	}
}

func (s *ClientServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateClientRequest, logo *LogoUpload) (*dto.ClientResponse, error) {
	industry := models.IndustryType(req.IndustryType)
	if industry == "" {
		industry = models.IndustryOther
	}

	client := &models.Client{
		UserID:            userID,
		Name:              req.Name,
		IndustryType:      industry,
		ContactPerson:     req.ContactPerson,
		ContactEmail:      req.ContactEmail,
		ContactPhone:      req.ContactPhone,
		FacebookURL:       req.FacebookURL,
		InstagramURL:      req.InstagramURL,
		YoutubeURL:        req.YoutubeURL,
		LinkedinURL:       req.LinkedinURL,
		TwitterURL:        req.TwitterURL,
		TiktokURL:         req.TiktokURL,
		PreferredPostTime: req.PreferredPostTime,
	}

	if err := s.clientRepo.Create(client); err != nil {
		return nil, apperrors.InternalError(err)
	}

	if logo != nil {
		if err := s.attachLogo(ctx, client, logo); err != nil {
			// Клиент уже создан: логотип не критичен
			logger.CtxError(ctx, "logo upload failed", "client_id", client.ID, "error", err)
		} else if err := s.clientRepo.Update(client); err != nil {
			return nil, apperrors.InternalError(err)
		}
	}

	logger.CtxInfo(ctx, "client created", "client_id", client.ID, "name", client.Name)
	return s.buildResponse(ctx, client), nil
}

func (s *ClientServiceImpl) List(ctx context.Context, userID string) (*dto.ClientListResponse, error) {
	clients, err := s.clientRepo.ListByUser(userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.ClientListResponse{
		Clients: make([]dto.ClientResponse, 0, len(clients)),
		Count:   int64(len(clients)),
	}
	for i := range clients {
		resp.Clients = append(resp.Clients, *s.buildResponse(ctx, &clients[i]))
	}
	return resp, nil
}

func (s *ClientServiceImpl) Get(ctx context.Context, userID, clientID string) (*dto.ClientResponse, error) {
	client, err := s.clientRepo.FindByIDAndUser(clientID, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrClientNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return s.buildResponse(ctx, client), nil
}

func (s *ClientServiceImpl) Delete(ctx context.Context, userID, clientID string) error {
	if err := s.clientRepo.Delete(clientID, userID); err != nil {
		if apperrors.Is(err, repositories.ErrClientNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}
	return nil
}

// attachLogo сохраняет оригинал и миниатюру, проставляя пути в модель
func (s *ClientServiceImpl) attachLogo(ctx context.Context, client *models.Client, logo *LogoUpload) error {
	data, err := io.ReadAll(logo.Reader)
	if err != nil {
		return fmt.Errorf("read logo: %w", err)
	}
	if !imageprocessor.IsValidImage(bytes.NewReader(data)) {
		return fmt.Errorf("logo is not a valid image")
	}

	ext := strings.ToLower(filepath.Ext(logo.Filename))
	if ext == "" {
		ext = ".jpg"
	}

	logoPath := fmt.Sprintf("clients/%s/%s/logo%s", client.UserID, client.ID, ext)
	if err := s.storage.Save(ctx, logoPath, bytes.NewReader(data), contentTypeForExt(ext)); err != nil {
		return fmt.Errorf("save logo: %w", err)
	}

	thumb, err := s.images.ProcessImage(bytes.NewReader(data), imageprocessor.SizeThumbnail, "jpeg")
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	thumbPath := fmt.Sprintf("clients/%s/%s/logo_thumb.jpg", client.UserID, client.ID)
	if err := s.storage.Save(ctx, thumbPath, thumb, "image/jpeg"); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}

	client.LogoPath = logoPath
	client.LogoThumbnailPath = thumbPath
	return nil
}

func (s *ClientServiceImpl) buildResponse(ctx context.Context, client *models.Client) *dto.ClientResponse {
	var logoURL, thumbURL string
	if client.LogoPath != "" {
		logoURL, _ = s.storage.GetURL(ctx, client.LogoPath)
	}
	if client.LogoThumbnailPath != "" {
		thumbURL, _ = s.storage.GetURL(ctx, client.LogoThumbnailPath)
	}
	resp := dto.NewClientResponse(client, logoURL, thumbURL)
	return &resp
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
