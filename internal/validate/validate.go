// Package validate wires go-playground/validator with English messages,
// JSON field names and the dashboard's custom tags.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	notBlankTag  = "notblank"
	diffQuestion = "distinct_questions"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	registerCustomTranslations(notBlankTag, diffQuestion)
}

// registerCustomTranslations registers messages for custom tags. The
// default translation set is already registered, so a noop register func
// satisfies the API.
func registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case diffQuestion:
		return "security questions must be different"
	}
	return fe.Error()
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// DistinctQuestions reports a field error on field when q1 and q2 are the
// same question. It is used from struct level validations.
func DistinctQuestions(sl validator.StructLevel, q1, q2 string, field, structField string) {
	if strings.EqualFold(strings.TrimSpace(q1), strings.TrimSpace(q2)) {
		sl.ReportError(q2, field, structField, diffQuestion, "")
	}
}

// Fields flattens validation errors into json-field -> message.
func Fields(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field()] = e.Translate(Translator)
	}
	return out
}

// EchoValidator adapts Validate to echo.Validator.
type EchoValidator struct{}

func (EchoValidator) Validate(i any) error { return Validate.Struct(i) }
