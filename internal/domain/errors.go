package domain

import (
	"errors"
	"fmt"
)

// Error codes for configuration failures
const (
	ErrConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrMalformedConfig  = "MALFORMED_CONFIG"
	ErrMissingSection   = "MISSING_SECTION"
	ErrUnknownKey       = "UNKNOWN_KEY"
	ErrInvalidConfig    = "INVALID_CONFIG"
	ErrInvalidReference = "INVALID_REFERENCE"
)

// ConfigurationError is the single error kind raised by the engine. It covers a
// missing or malformed configuration document, a missing section, and any
// reference to a key that does not exist in its target section, whether the
// reference comes from a patient profile or from the configuration itself.
type ConfigurationError struct {
	Code    string `json:"code"`
	Section string `json:"section,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError with the given code.
func NewConfigurationError(code, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// UnknownKeyError reports a lookup of key in section that has no entry.
func UnknownKeyError(section, key string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrUnknownKey,
		Section: section,
		Key:     key,
		Message: fmt.Sprintf("unknown %s: %s", singular(section), key),
	}
}

// InvalidReferenceError reports a cross-reference inside the configuration
// that does not resolve. owner is "section/key" of the referring record.
func InvalidReferenceError(owner, targetSection, key string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrInvalidReference,
		Section: targetSection,
		Key:     key,
		Message: fmt.Sprintf("%s references unknown %s: %s", owner, singular(targetSection), key),
	}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func singular(section string) string {
	switch section {
	case SectionPopulations:
		return "population"
	case SectionBarriers:
		return "barrier"
	case SectionInterventions:
		return "intervention"
	case SectionHealthcareSettings:
		return "setting"
	case SectionRiskCategories:
		return "risk category"
	default:
		return section
	}
}

// ValidationError represents a malformed field in patient input
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
	Err     error       `json:"-"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap returns the sentinel describing the failure, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
