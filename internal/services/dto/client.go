package dto

import (
	"time"

	"capgen_backend/internal/models"
)

// CreateClientRequest - форма добавления клиента (multipart, логотип отдельно)
type CreateClientRequest struct {
	Name         string `form:"name" validate:"required"`
	IndustryType string `form:"industry_type" validate:"omitempty,is-industry"`

	ContactPerson string `form:"contact_person" validate:"required"`
	ContactEmail  string `form:"contact_email" validate:"required,email"`
	ContactPhone  string `form:"contact_phone"`

	FacebookURL  string `form:"facebook_url" validate:"omitempty,url"`
	InstagramURL string `form:"instagram_url" validate:"omitempty,url"`
	YoutubeURL   string `form:"youtube_url" validate:"omitempty,url"`
	LinkedinURL  string `form:"linkedin_url" validate:"omitempty,url"`
	TwitterURL   string `form:"twitter_url" validate:"omitempty,url"`
	TiktokURL    string `form:"tiktok_url" validate:"omitempty,url"`

	// "HH:MM"
	PreferredPostTime string `form:"preferred_post_time"`
}

// ClientResponse - представление клиента в API
type ClientResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IndustryType string `json:"industry_type"`

	ContactPerson string `json:"contact_person"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone,omitempty"`

	LogoURL          string `json:"logo_url,omitempty"`
	LogoThumbnailURL string `json:"logo_thumbnail_url,omitempty"`

	SocialAccounts    map[string]string `json:"social_accounts"`
	ActivePlatforms   []string          `json:"active_platforms"`
	PreferredPostTime string            `json:"preferred_post_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ClientListResponse - список клиентов пользователя
type ClientListResponse struct {
	Clients []ClientResponse `json:"clients"`
	Count   int64            `json:"count"`
}

// NewClientResponse собирает ClientResponse из модели
func NewClientResponse(c *models.Client, logoURL, thumbURL string) ClientResponse {
	return ClientResponse{
		ID:                c.ID,
		Name:              c.Name,
		IndustryType:      string(c.IndustryType),
		ContactPerson:     c.ContactPerson,
		ContactEmail:      c.ContactEmail,
		ContactPhone:      c.ContactPhone,
		LogoURL:           logoURL,
		LogoThumbnailURL:  thumbURL,
		SocialAccounts:    c.SocialAccounts(),
		ActivePlatforms:   c.ActiveSocialAccounts(),
		PreferredPostTime: c.PreferredPostTime,
		CreatedAt:         c.CreatedAt,
	}
}
