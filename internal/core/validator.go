package core

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"onboard/internal/types"
)

// slugPattern matches a valid subdomain label: lowercase alphanumerics and
// hyphens, no leading or trailing hyphen.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// hexColorPattern matches a 6-digit hex color with leading hash.
var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validator wraps go-playground/validator with the domain-specific rules
// used by request handlers: plan keys, subdomain slugs, and brand colors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	// plan_key: the value must be one of the catalog plan keys.
	_ = v.RegisterValidation("plan_key", func(fl validator.FieldLevel) bool {
		return types.IsValidPlanKey(types.PlanKey(fl.Field().String()))
	})

	// subdomain_slug: a DNS-label-safe workspace subdomain.
	_ = v.RegisterValidation("subdomain_slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) >= 3 && len(s) <= 63 && slugPattern.MatchString(s)
	})

	// brand_color: a "#rrggbb" hex color.
	_ = v.RegisterValidation("brand_color", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct runs struct-tag validation on s. On failure it returns a
// *types.AppError whose code reflects the first failing rule and whose
// details list every failing field with its violated tag.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Non-validation error (e.g., passing a non-struct). This is a
		// programming error, not bad input.
		v.logger.Error("validator invocation failed", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not be performed", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fieldName(fe)] = fe.Tag()
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		codeForTag(first.Tag()),
		"invalid value for field '"+fieldName(first)+"'",
		nil,
		details,
	)
}

// fieldName returns the lowercased leaf field name for error details.
func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

// codeForTag maps a validation tag to the typed error code clients switch on.
func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "plan_key":
		return types.ErrCodeValidationInvalidPlan
	case "subdomain_slug":
		return types.ErrCodeValidationInvalidSlug
	case "brand_color":
		return types.ErrCodeValidationInvalidColor
	case "oneof":
		return types.ErrCodeValidationInvalidEnum
	default:
		return types.ErrCodeValidationInvalidEnum
	}
}
