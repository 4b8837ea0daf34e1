package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	dErrors "skillbadge/pkg/domain-errors"
)

// Upload limits
const (
	// MaxUploadSize is the largest certificate document accepted (10 MiB).
	MaxUploadSize = 10 << 20

	// MaxNameLength bounds the expected holder name sent to the verifier.
	MaxNameLength = 200

	// MaxFilenameLength bounds the stored certificate filename.
	MaxFilenameLength = 255
)

// CertificateContentTypes lists the media types the verification service can read.
var CertificateContentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
}

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("certtype", func(fl validator.FieldLevel) bool {
		return IsCertificateContentType(fl.Field().String())
	})
	return v
}

// IsCertificateContentType reports whether the media type (parameters ignored)
// is one the verification service accepts.
func IsCertificateContentType(ct string) bool {
	base, _, _ := strings.Cut(ct, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	for _, allowed := range CertificateContentTypes {
		if base == allowed {
			return true
		}
	}
	return false
}

// Validate validates a struct using the default validator and returns a domain error
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 && validationErrs[0].ActualTag() == "certtype" {
			return dErrors.New(dErrors.CodeUnsupportedMedia, ErrorMessage(err))
		}
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a human-readable message
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	fe := validationErrs[0]
	fieldName := fe.Field()
	if fieldName == "" {
		fieldName = fe.StructField()
	}
	field := toSnakeCase(fieldName)

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "certtype":
		return fmt.Sprintf("%s must be one of [%s]", field, strings.Join(CertificateContentTypes, " "))
	default:
		if field == "" {
			return "invalid request body"
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
