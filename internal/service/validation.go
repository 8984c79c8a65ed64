package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ErrInvalidInput базовая ошибка валидации входных данных
var ErrInvalidInput = errors.New("invalid input")

// ValidationError ошибки по полям формы; errors.Is(err, ErrInvalidInput) == true
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

const (
	priceMaxDigits = 9
	priceScale     = 2
)

var maxPrice = decimal.New(1, priceMaxDigits-priceScale)

// newValidator настраивает схему: имена полей из json-тегов, деньги и категории
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return !d.IsNegative() && d.LessThan(maxPrice) && d.Equal(d.Truncate(priceScale))
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.Category(fl.Field().String()).Valid()
	})
	return v
}

var productValidator = newValidator()

// ValidateProduct проверяет товар по правилам каталога (для загрузки вне HTTP)
func ValidateProduct(p domain.Product) error {
	return validate(productValidator, p)
}

// validate прогоняет схему и переводит ошибки validator в ValidationError
func validate(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "money":
		return fmt.Sprintf("must be a non-negative amount with at most %d digits and %d decimal places", priceMaxDigits, priceScale)
	case "category":
		return "unknown category"
	default:
		return "invalid value"
	}
}
