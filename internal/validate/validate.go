// Package validate checks configuration structs against their validate
// tags and reports failures per field in English.
package validate

import (
	"errors"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Schemes are the URL schemes accepted by the "xferurl" tag.
var Schemes = []string{"http", "https", "ftp", "ftps", "file"}

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("validate: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	if err := validate.RegisterValidation("xferurl", transferURL); err != nil {
		panic(err)
	}
}

// transferURL accepts absolute URLs whose scheme the engine can transfer.
func transferURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Scheme == "" {
		return false
	}
	if u.Scheme != "file" && u.Host == "" {
		return false
	}
	return slices.Contains(Schemes, strings.ToLower(u.Scheme))
}

// Check validates val against its declared tags.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			field := FieldError{
				Field: verror.Field(),
				Err:   customErrForTag(verror.Tag(), verror),
			}
			fields = append(fields, field)
		}
		return fields
	}

	return nil
}

// FieldError represents a single validation error for a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its message.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}
	return m
}

// Fields extracts the per field messages from err, or nil if err carries
// none.
func Fields(err error) map[string]string {
	var fe FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	return fe.Fields()
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	case "xferurl":
		return "must be an absolute " + strings.Join(Schemes, ", ") + " URL"
	default:
		return verror.Translate(translator)
	}
}
