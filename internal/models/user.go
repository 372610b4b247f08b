package models

import "time"

type User struct {
	BaseModel
	FullName     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"` // Генерируется из email (часть до @)
	PasswordHash string `gorm:"not null"`
	PhoneNumber  string
	ProfilePic   string

	// OAuth
	OAuthProvider    string
	OAuthID          *string `gorm:"uniqueIndex"`
	OAuthAccessToken string

	Role UserRole `gorm:"type:varchar(20);default:'user'"`

	IsActive    bool `gorm:"default:true"`
	IsVerified  bool `gorm:"default:false"`
	LastLoginAt *time.Time

	// Подписка. "Премиум" вычисляется, а не хранится: тариф + дата окончания.
	SubscriptionTier      SubscriptionTier `gorm:"type:varchar(20);default:'free'"`
	SubscriptionStartedAt *time.Time
	SubscriptionEndsAt    *time.Time

	// Relations
	Clients       []Client       `gorm:"foreignKey:UserID"`
	Jobs          []Job          `gorm:"foreignKey:UserID"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID"`
}

// HasActivePremium: премиум тариф и срок подписки не истек.
// Истекший премиум эквивалентен бесплатному тарифу, даже если
// фоновый даунгрейд еще не прошел.
func (u *User) HasActivePremium(now time.Time) bool {
	if !u.SubscriptionTier.IsPremiumTier() {
		return false
	}
	if u.SubscriptionEndsAt == nil {
		return false
	}
	return u.SubscriptionEndsAt.After(now)
}

type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"not null;index"`
	Token     string    `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
}
