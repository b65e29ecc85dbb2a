// Package validation содержит проверку пользовательских форм до обращения к бэкенду.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	camelBoundary = regexp.MustCompile(`([A-Z])`)
)

// FieldError описывает нарушение правила для одного поля формы.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// Errors собирает нарушения; первым идёт незаполненное поле, затем ошибки формата.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Message
}

// Billing содержит платёжные данные покупателя.
type Billing struct {
	Name    string `json:"name" validate:"notblank"`
	Email   string `json:"email" validate:"notblank,emailaddr"`
	Phone   string `json:"phone" validate:"notblank"`
	Address string `json:"address" validate:"notblank"`
	City    string `json:"city" validate:"notblank"`
	ZipCode string `json:"zipCode" validate:"notblank"`
}

var std = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})

	return v
}

// IsValidEmail проверяет адрес по шаблону local@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Struct проверяет структуру по тегам validate и возвращает Errors или nil.
func Struct(v any) error {
	err := std.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	res := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		res = append(res, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}

	sort.SliceStable(res, func(i, j int) bool {
		return isPresenceRule(res[i].Rule) && !isPresenceRule(res[j].Rule)
	})
	return res
}

func isPresenceRule(rule string) bool {
	return rule == "notblank" || rule == "required"
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "Please fill in " + humanize(fe.Field())
	case "emailaddr":
		return "Please enter a valid email address"
	case "gt", "gte":
		return fmt.Sprintf("Please enter a valid %s", humanize(fe.Field()))
	}
	return fmt.Sprintf("Invalid %s", humanize(fe.Field()))
}

// humanize превращает "zipCode" в "zip code".
func humanize(field string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(field, " $1"))
}
