package services

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("login_secret", func(fl validator.FieldLevel) bool {
		return checkLoginSecret(fl.Field().String()) == nil
	})
	return v
}

// checkLoginSecret enforces the login password policy: eight or more
// characters with upper, lower, digit and symbol.
func checkLoginSecret(s string) error {
	if len([]rune(s)) < 8 {
		return common.Validationf("password must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return common.Validationf("password must contain uppercase, lowercase, number and special character")
	}
	return nil
}

// validateStruct runs struct tags and reports the first failure as an
// ErrValidation naming the JSON field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "login_secret" {
			return checkLoginSecret(fe.Value().(string))
		}
		if fe.Param() != "" {
			return common.Validationf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return common.Validationf("%s failed %s", fe.Field(), fe.Tag())
	}
	return common.Validationf("%v", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
