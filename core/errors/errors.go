// Package errors provides standardized error types and helpers for JuniperTag.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrSchemaFormat indicates a schema grammar that cannot produce constraints
	ErrSchemaFormat = errors.New("invalid schema format")
	// ErrOverlap indicates a tag range intersecting an already committed tag
	ErrOverlap = errors.New("overlapping tag range")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "passage", "character", "tag")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// SchemaFormatError reports grammar text that has no usable grammar root.
// It is fatal for validation: no partial constraints are ever returned with it.
type SchemaFormatError struct {
	Path    string // Schema path, if known
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *SchemaFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid RelaxNG schema %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("invalid RelaxNG schema: %s", e.Message)
}

// Unwrap exposes both ErrSchemaFormat and the underlying cause.
func (e *SchemaFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchemaFormat, e.Err}
	}
	return []error{ErrSchemaFormat}
}

// OverlapError reports a tag whose range intersects a committed tag.
type OverlapError struct {
	PassageID  string // Passage the tag targets
	TagID      string // Tag being inserted
	ConflictID string // Committed tag it overlaps
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("tag %s overlaps tag %s in passage %s", e.TagID, e.ConflictID, e.PassageID)
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlap
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewSchemaFormat creates a SchemaFormatError
func NewSchemaFormat(path, message string) *SchemaFormatError {
	return &SchemaFormatError{
		Path:    path,
		Message: message,
	}
}

// NewOverlap creates an OverlapError
func NewOverlap(passageID, tagID, conflictID string) *OverlapError {
	return &OverlapError{
		PassageID:  passageID,
		TagID:      tagID,
		ConflictID: conflictID,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
