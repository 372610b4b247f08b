package models

// Client - бренд/клиент, которому принадлежит генерируемый контент
type Client struct {
	BaseModel
	UserID string `gorm:"not null;index"`

	Name         string       `gorm:"not null;index"`
	IndustryType IndustryType `gorm:"type:varchar(50);default:'other';index"`

	ContactPerson string `gorm:"not null"`
	ContactEmail  string `gorm:"not null"`
	ContactPhone  string

	// Логотип бренда (оригинал + миниатюра)
	LogoPath          string
	LogoThumbnailPath string

	// Социальные сети (не более шести отслеживаемых платформ)
	FacebookURL  string
	InstagramURL string
	YoutubeURL   string
	LinkedinURL  string
	TwitterURL   string
	TiktokURL    string

	// Предпочтительное время публикации, формат "HH:MM"
	PreferredPostTime string
}

// SocialAccounts возвращает карту платформа -> URL
func (c *Client) SocialAccounts() map[string]string {
	return map[string]string{
		"facebook":  c.FacebookURL,
		"instagram": c.InstagramURL,
		"youtube":   c.YoutubeURL,
		"linkedin":  c.LinkedinURL,
		"twitter":   c.TwitterURL,
		"tiktok":    c.TiktokURL,
	}
}

// ActiveSocialAccounts возвращает список платформ с заполненным URL
func (c *Client) ActiveSocialAccounts() []string {
	var active []string
	for platform, url := range c.SocialAccounts() {
		if url != "" {
			active = append(active, platform)
		}
	}
	return active
}

func (Client) TableName() string {
	return "clients"
}
