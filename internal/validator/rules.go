package validator

import (
	"log"

	"capgen_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует все кастомные функции валидации в
// переданном экземпляре валидатора.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Если правило не удалось зарегистрировать, приложение
			// не должно запускаться.
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'is-otp-type': тип OTP-кода (registration / signin / password_reset)
	mustRegister("is-otp-type", validateOTPType)

	// 'is-industry': индустрия клиента из справочника
	mustRegister("is-industry", validateIndustry)

	// 'is-content-length': длина генерируемого текста
	mustRegister("is-content-length", validateContentLength)

	// 'is-subscription-plan': платный тариф подписки
	mustRegister("is-subscription-plan", validateSubscriptionPlan)
}

// --- Функции валидации ---

func validateOTPType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые значения проверяет 'required'
	}
	switch models.OTPType(value) {
	case models.OTPTypeRegistration, models.OTPTypeSignin, models.OTPTypePasswordReset:
		return true
	default:
		return false
	}
}

func validateIndustry(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	for _, it := range models.ValidIndustries {
		if models.IndustryType(value) == it {
			return true
		}
	}
	return false
}

func validateContentLength(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.ContentLength(value) {
	case models.ContentLengthShort, models.ContentLengthMedium, models.ContentLengthLong:
		return true
	default:
		return false
	}
}

func validateSubscriptionPlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.SubscriptionTier(value) {
	case models.TierPremiumMonthly, models.TierPremiumYearly:
		return true
	default:
		return false
	}
}
