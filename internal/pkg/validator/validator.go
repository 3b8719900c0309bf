package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Account PIN: exactly six ASCII digits
	validate.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return IsValidPIN(fl.Field().String())
	})

	// Product type accepted by the PPOB aggregator
	validate.RegisterValidation("product_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return t == "" || t == "prepaid" || t == "pasca"
	})
}

// IsValidPIN reports whether pin is exactly six ASCII digits
func IsValidPIN(pin string) bool {
	if len(pin) != 6 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "uuid":
			errors[field] = "Invalid identifier format"
		case "pin":
			errors[field] = "PIN must be exactly 6 digits"
		case "product_type":
			errors[field] = "Invalid product type. Must be: prepaid or pasca"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
