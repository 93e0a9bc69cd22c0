package config

import (
	"errors"
	"fmt"
)

// Sentinel failures surfaced by Initialize. The CLI maps all three to
// the configuration exit code.
var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrValidationFailed = errors.New("configuration validation failed")
)

var (
	// ErrProviderNotFound reports a lookup of an undeclared alert provider.
	ErrProviderNotFound = errors.New("alert provider not found")

	// ErrMissingRequiredField and ErrInvalidValue are the leaves most
	// ValidationErrors wrap.
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidValue         = errors.New("invalid field value")
)

// ValidationError pins a validation failure to the section, component,
// and field that caused it, so one bad provider names itself in the
// startup error.
type ValidationError struct {
	Component string
	ID        string
	Field     string
	Err       error
}

func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
	}
	return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LoadError carries the file a load failure came from.
type LoadError struct {
	File string
	Err  error
}

func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
