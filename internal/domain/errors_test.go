package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")

	tests := []struct {
		name     string
		err      *ConfigurationError
		expected string
	}{
		{
			name:     "Without cause",
			err:      NewConfigurationError(ErrMissingSection, "missing required section: barriers", nil),
			expected: "MISSING_SECTION: missing required section: barriers",
		},
		{
			name:     "With cause",
			err:      NewConfigurationError(ErrMalformedConfig, "cannot parse config.json", cause),
			expected: "MALFORMED_CONFIG: cannot parse config.json: unexpected end of JSON input",
		},
		{
			name:     "Unknown population",
			err:      UnknownKeyError(SectionPopulations, "ALIENS"),
			expected: "UNKNOWN_KEY: unknown population: ALIENS",
		},
		{
			name:     "Unknown setting",
			err:      UnknownKeyError(SectionHealthcareSettings, "SPACESHIP"),
			expected: "UNKNOWN_KEY: unknown setting: SPACESHIP",
		},
		{
			name:     "Invalid reference",
			err:      InvalidReferenceError("interventions/MOBILE_DELIVERY", SectionBarriers, "TELEPORTATION"),
			expected: "INVALID_REFERENCE: interventions/MOBILE_DELIVERY references unknown barrier: TELEPORTATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected error string %q, got %q", tt.expected, tt.err.Error())
			}
		})
	}
}

func TestConfigurationError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewConfigurationError(ErrConfigNotFound, "cannot read config", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("loading: %w", err)
	if !IsConfigurationError(wrapped) {
		t.Error("Expected wrapped error to be recognised as a ConfigurationError")
	}
	if IsConfigurationError(cause) {
		t.Error("Plain error should not be a ConfigurationError")
	}
}

func TestUnknownKeyError_Fields(t *testing.T) {
	err := UnknownKeyError(SectionBarriers, "TELEPORTATION")

	if err.Code != ErrUnknownKey {
		t.Errorf("Expected code %s, got %s", ErrUnknownKey, err.Code)
	}
	if err.Section != SectionBarriers {
		t.Errorf("Expected section %s, got %s", SectionBarriers, err.Section)
	}
	if err.Key != "TELEPORTATION" {
		t.Errorf("Expected key TELEPORTATION, got %s", err.Key)
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "population",
			message: "field is required",
			value:   nil,
		},
		{
			name:    "Integer validation error",
			field:   "age",
			message: "must not be negative",
			value:   -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}
