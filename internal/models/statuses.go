package models

type UserRole string
type SubscriptionTier string
type OTPType string
type JobStatus string
type FileType string
type ContentLength string
type IndustryType string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"

	TierFree           SubscriptionTier = "free"
	TierPremiumMonthly SubscriptionTier = "premium_monthly"
	TierPremiumYearly  SubscriptionTier = "premium_yearly"

	OTPTypeRegistration  OTPType = "registration"
	OTPTypeSignin        OTPType = "signin"
	OTPTypePasswordReset OTPType = "password_reset"

	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"

	FileTypeAudio FileType = "audio"
	FileTypeVideo FileType = "video"
	FileTypeImage FileType = "image"

	ContentLengthShort  ContentLength = "short"
	ContentLengthMedium ContentLength = "medium"
	ContentLengthLong   ContentLength = "long"
)

// Закрытый список индустрий клиента
const (
	IndustryTechnology    IndustryType = "technology"
	IndustryHealthcare    IndustryType = "healthcare"
	IndustryFinance       IndustryType = "finance"
	IndustryRetail        IndustryType = "retail"
	IndustryEducation     IndustryType = "education"
	IndustryHospitality   IndustryType = "hospitality"
	IndustryRealEstate    IndustryType = "real_estate"
	IndustryEntertainment IndustryType = "entertainment"
	IndustryFoodBeverage  IndustryType = "food_beverage"
	IndustryFashion       IndustryType = "fashion"
	IndustryAutomotive    IndustryType = "automotive"
	IndustryManufacturing IndustryType = "manufacturing"
	IndustryConsulting    IndustryType = "consulting"
	IndustryMarketing     IndustryType = "marketing"
	IndustryOther         IndustryType = "other"
)

// ValidIndustries перечисляет допустимые значения для валидации
var ValidIndustries = []IndustryType{
	IndustryTechnology, IndustryHealthcare, IndustryFinance, IndustryRetail,
	IndustryEducation, IndustryHospitality, IndustryRealEstate, IndustryEntertainment,
	IndustryFoodBeverage, IndustryFashion, IndustryAutomotive, IndustryManufacturing,
	IndustryConsulting, IndustryMarketing, IndustryOther,
}

func (i IndustryType) IsValid() bool {
	for _, v := range ValidIndustries {
		if i == v {
			return true
		}
	}
	return false
}

// IsPremiumTier проверяет принадлежность к премиум тарифам (без учета срока действия)
func (t SubscriptionTier) IsPremiumTier() bool {
	return t == TierPremiumMonthly || t == TierPremiumYearly
}

// IsTerminal - финальные статусы задачи
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanGenerate - генерацию можно запускать только из uploaded или failed
func (s JobStatus) CanGenerate() bool {
	return s == JobStatusUploaded || s == JobStatusFailed
}
