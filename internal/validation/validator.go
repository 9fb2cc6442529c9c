// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package validation provides struct validation using go-playground/validator v10.
// It exposes a thread-safe singleton validator instance and translates field
// errors into human-readable messages.
//
// The integrity rule validator uses this package for range and enum checks on
// event fields.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError represents a single field validation failure with structured
// information about the failed tag.
type FieldError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Param returns the parameter for the validation tag (e.g. "100" for "lte=100").
func (e *FieldError) Param() string { return e.param }

// Value returns the actual value that failed validation.
func (e *FieldError) Value() interface{} { return e.value }

// Error returns a human-readable error message.
func (e *FieldError) Error() string { return e.message }

// StructValidationError is the collection of field errors from one struct.
type StructValidationError struct {
	errors []FieldError
}

// Errors returns the slice of field errors in declaration order.
func (ve *StructValidationError) Errors() []FieldError {
	return ve.errors
}

// Error implements the error interface with a combined message.
func (ve *StructValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the singleton validator instance.
// The validator caches struct metadata, so sharing one instance is both
// thread-safe and faster than constructing per call.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, or *StructValidationError if it fails.
func ValidateStruct(s interface{}) *StructValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &StructValidationError{
			errors: []FieldError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]FieldError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = FieldError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &StructValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps parameterless validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
}

// errorMessageWithParam maps validation tags to templates that include the param.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
