// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance, using the library's built-in tags, and user-friendly error
// messages. It integrates with the application's API error format for consistent
// error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - APIError conversion matching the application's error format
//   - Built-in validator support (email, url, latitude, longitude, etc.)
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type updateDeltaShape struct {
//	    Executable *string  `validate:"omitempty"`
//	    Parameters []string `validate:"omitempty,dive,required"`
//	    Actuation  *string  `validate:"omitempty,oneof=enabled disabled Enabled Disabled"`
//	}
//
//	func validateUpdateDelta(raw []byte) error {
//	    var shape updateDeltaShape
//	    if err := json.Unmarshal(raw, &shape); err != nil {
//	        return fmt.Errorf("%w: %w", rooterr.ErrProtocol, err)
//	    }
//	    if verr := validation.ValidateStruct(&shape); verr != nil {
//	        return fmt.Errorf("%w: %s", rooterr.ErrProtocol, verr.Error())
//	    }
//	    return nil
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - email: Valid email format
//   - url: Valid URL format
//   - base64url: URL-safe base64 encoding
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "100" for max=100)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string           // Combined message
//	    ToAPIError() *APIError    // Convert to API error format
//	}
//
// # API Error Integration
//
// The ToAPIError method produces errors matching the application format:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Email must be a valid email address",
//	    "details": {"field": "Email", "tag": "email", "value": "invalid"}
//	}
//
//	// Multiple field errors
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Username: must be at least 3 characters; Email: required",
//	    "details": {
//	        "fields": [
//	            {"field": "Username", "tag": "min", "message": "..."},
//	            {"field": "Email", "tag": "required", "message": "..."}
//	        ]
//	    }
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "Executable is required"
//	email      -> "Email must be a valid email address"
//	min=3      -> "Name must be at least 3 characters"
//	max=100    -> "Abstract must be at most 100 characters"
//	gte=1      -> "Limit must be greater than or equal to 1"
//	lte=1000   -> "Limit must be less than or equal to 1000"
//	oneof=a b  -> "Actuation must be one of: a b"
//
// # Struct Tag Examples
//
// The update delta posted to the Control HTTP server (see
// internal/control/validate.go) is validated the same way:
//
//	type updateDeltaShape struct {
//	    Executable  *string        `validate:"omitempty"`
//	    Parameters  []string       `validate:"omitempty,dive,required"`
//	    Environment []envPairShape `validate:"omitempty,dive"`
//	    Abstract    *string        `validate:"omitempty"`
//	    Actuation   *string        `validate:"omitempty,oneof=enabled disabled Enabled Disabled"`
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//   - Memory: ~500 bytes per cached struct type
//
// # See Also
//
//   - internal/control: Control HTTP handlers using validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
