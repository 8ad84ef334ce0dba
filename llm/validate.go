package llm

import (
	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance used across the module.
var validate = validator.New()

// Validate checks if the given struct is valid according to its validation rules.
// It uses the go-playground/validator package to perform validation based on struct tags.
//
// Parameters:
//   - s: The struct to validate. Must be a pointer to a struct.
//
// Returns:
//   - error: nil if validation passes, otherwise returns validation errors
func Validate(s any) error {
	return validate.Struct(s)
}

// RegisterCustomValidation registers a custom validation function with the validator.
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
