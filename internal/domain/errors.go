// Package domain defines the star schema model, cell requests, and errors shared by the engine.
package domain

import "fmt"

// NotFoundError indicates a star, measure, column or aggregate was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates an invalid request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError indicates a schema or aggregate declaration that cannot be used.
// Identifier names the offending star, aggregate, measure or column.
type ConfigurationError struct {
	Identifier string
	Message    string
}

func (e *ConfigurationError) Error() string {
	if e.Identifier == "" {
		return e.Message
	}
	return e.Identifier + ": " + e.Message
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError for identifier with a formatted message.
func ErrConfiguration(identifier, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Identifier: identifier, Message: fmt.Sprintf(format, args...)}
}
