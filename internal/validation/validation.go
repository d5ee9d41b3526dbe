package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "{0} is required"

// Validator wraps a go-playground validator that reports fields by their JSON names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var errMissingTranslator = errors.New("english translator unavailable")

// New returns a Validator with English messages and JSON field names.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	universal := ut.New(english, english)
	translator, found := universal.GetTranslator("en")
	if !found {
		return nil, errMissingTranslator
	}
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, err
	}

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := validate.RegisterTranslation(
		"required", translator,
		func(t ut.Translator) error { return t.Add("required", requiredText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			message, _ := t.T("required", fe.Field())
			return message
		},
	)
	if err != nil {
		return nil, err
	}

	return &Validator{validate: validate, translator: translator}, nil
}

// Struct validates value and returns a *FieldErrors when any rule fails.
func (v *Validator) Struct(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	result := &FieldErrors{}
	for _, fieldError := range validationErrors {
		result.Fields = append(result.Fields, FieldError{
			Field:   fieldError.Field(),
			Tag:     fieldError.Tag(),
			Message: fieldError.Translate(v.translator),
		})
	}
	sort.SliceStable(result.Fields, func(i, j int) bool {
		return result.Fields[i].Field < result.Fields[j].Field
	})
	return result
}

// FieldError describes one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// FieldErrors collects failed rules for a struct.
type FieldErrors struct {
	Fields []FieldError
}

func (e *FieldErrors) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		messages = append(messages, field.Message)
	}
	return strings.Join(messages, "; ")
}

// HasTag reports whether any field failed the given rule.
func (e *FieldErrors) HasTag(tag string) bool {
	for _, field := range e.Fields {
		if field.Tag == tag {
			return true
		}
	}
	return false
}

// TrimAll trims surrounding whitespace from every string pointer.
func TrimAll(values ...*string) {
	for _, value := range values {
		if value != nil {
			*value = strings.TrimSpace(*value)
		}
	}
}
