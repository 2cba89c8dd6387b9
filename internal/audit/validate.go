package audit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// maxSegmentLen bounds tenant and record ids so keys stay well under the
// object store key limit.
const maxSegmentLen = 256

// Validator returns the shared validator with the audit tags registered:
//
//	recordtype  the field is a known RecordType
//	keysegment  the field can be embedded in an object key as one segment
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		_ = validate.RegisterValidation("recordtype", func(fl validator.FieldLevel) bool {
			return RecordType(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("keysegment", func(fl validator.FieldLevel) bool {
			return ValidKeySegment(fl.Field().String())
		})
	})
	return validate
}

// ValidKeySegment reports whether s is usable as a single key path segment.
func ValidKeySegment(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > maxSegmentLen {
		return false
	}
	for _, r := range s {
		if r == '/' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// fieldName reports fields by their JSON name, or the lower camel form of
// the Go name ("TenantID" becomes "tenantId").
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	name := f.Name
	if base, ok := strings.CutSuffix(name, "ID"); ok {
		name = base + "Id"
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// ValidateStruct validates s and returns the first failure as a
// *ValidationError.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "recordtype":
		return fmt.Sprintf("unknown record type %q", fmt.Sprint(fe.Value()))
	case "keysegment":
		return "must be non-empty and must not contain '/' or control characters"
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "ltfield":
		return "must be less than " + fe.Param()
	case "gtefield":
		return "must be >= " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
