// Package validation holds the form view-models behind the settings pages:
// decoding from posted forms, declarative field rules and conversion to and
// from the radio's protobuf messages.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic/radio"
)

var (
	validate = newValidator()
	decoder  = newDecoder()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("schema"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("enum", validateEnum)
	v.RegisterValidation("psk", validatePSK)
	return v
}

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	return d
}

// FieldErrors maps a form field name to a message for the user.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Decode fills form from posted values. Checkboxes that are absent decode as false.
func Decode(form any, values url.Values) error {
	if err := decoder.Decode(form, values); err != nil {
		var multi schema.MultiError
		if errors.As(err, &multi) {
			fe := FieldErrors{}
			for field, e := range multi {
				var conv schema.ConversionError
				if errors.As(e, &conv) {
					fe[field] = "Invalid value"
					continue
				}
				fe[field] = e.Error()
			}
			return fe
		}
		return err
	}
	return nil
}

// Validate checks form against its validate tags. It returns nil or FieldErrors.
func Validate(form any) FieldErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	fe := make(FieldErrors, len(verrs))
	for _, e := range verrs {
		if _, seen := fe[e.Field()]; !seen {
			fe[e.Field()] = message(e)
		}
	}
	return fe
}

// DecodeAndValidate combines Decode and Validate. Decoding errors and rule
// violations are reported together.
func DecodeAndValidate(form any, values url.Values) error {
	decodeErr := Decode(form, values)
	var fe FieldErrors
	if decodeErr != nil && !errors.As(decodeErr, &fe) {
		return decodeErr
	}
	if verr := Validate(form); verr != nil {
		if fe == nil {
			fe = FieldErrors{}
		}
		for k, v := range verr {
			if _, ok := fe[k]; !ok {
				fe[k] = v
			}
		}
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func message(e validator.FieldError) string {
	isString := e.Kind() == reflect.String
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if isString {
			return fmt.Sprintf("Must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("Must be %s or more", e.Param())
	case "lte":
		return fmt.Sprintf("Must be %s or less", e.Param())
	case "oneof":
		return "Must be one of " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "enum":
		return "Unknown option"
	case "psk":
		return "Key must be base64 of 0, 1, 16 or 32 bytes, or random"
	case "hostname_port", "hostname", "ip":
		return "Invalid address"
	}
	return "Invalid value"
}

func validatePSK(fl validator.FieldLevel) bool {
	if strings.EqualFold(strings.TrimSpace(fl.Field().String()), radio.PSKRandom) {
		return true
	}
	_, err := radio.ParsePSK(fl.Field().String())
	return err == nil
}

func validateEnum(fl validator.FieldLevel) bool {
	names, ok := enums[fl.Param()]
	if !ok {
		return false
	}
	_, ok = names[int32(fl.Field().Int())]
	return ok
}
