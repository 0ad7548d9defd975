package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"tahseel/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// tone: one of the known communication tones
	_ = v.RegisterValidation("tone", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.ToneGentle, models.ToneFriendly, models.ToneBusiness,
			models.ToneProfessional, models.ToneFormal, models.ToneVeryFormal,
			models.ToneFirm, models.ToneUrgent:
			return true
		}
		return false
	})

	// tier: one of the relationship tiers
	_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.TierGovernment, models.TierVIP, models.TierRegular, models.TierNew:
			return true
		}
		return false
	})

	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param)
		case "max":
			errors = append(errors, field+" must be at most "+param)
		case "email":
			errors = append(errors, field+" must be a valid email")
		case "tone":
			errors = append(errors, field+" must be a known tone")
		case "tier":
			errors = append(errors, field+" must be a known relationship tier")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf("%s", strings.Join(errors, ", "))
}
