package errors

import (
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the property refactoring engine
type ErrorType string

const (
	// Project errors
	ErrorTypeParse ErrorType = "parse"
	ErrorTypeSave  ErrorType = "save"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Index errors
	ErrorTypeConsistency ErrorType = "consistency"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ParseError represents a project file that could not be loaded or evaluated
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Line       int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error. The line number is taken from an
// xml.SyntaxError anywhere in the chain.
func NewParseError(path string, err error) *ParseError {
	pe := &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
	var syntaxErr *xml.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		pe.Line = syntaxErr.Line
	}
	return pe
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %s:%d: %v", e.FilePath, e.Line, e.Underlying)
	}
	return fmt.Sprintf("parse error in %s: %v", e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeInternal
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		errorType = ErrorTypeFileNotFound
	case stderrors.Is(err, fs.ErrPermission):
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewSaveError creates a file error for a failed persist of one project
func NewSaveError(path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeSave,
		Path:       path,
		Operation:  "save",
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConsistencyError reports a property reference whose value groups do not
// account for every owning project.
type ConsistencyError struct {
	Type         ErrorType
	Property     string
	OwningCount  int
	GroupedCount int
	Timestamp    time.Time
}

// NewConsistencyError creates a new consistency error
func NewConsistencyError(property string, owning, grouped int) *ConsistencyError {
	return &ConsistencyError{
		Type:         ErrorTypeConsistency,
		Property:     property,
		OwningCount:  owning,
		GroupedCount: grouped,
		Timestamp:    time.Now(),
	}
}

// Error implements the error interface
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("property %s: owning count %d but value groups hold %d",
		e.Property, e.OwningCount, e.GroupedCount)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrorOrNil returns nil when the multi-error holds nothing
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// PathOf extracts the file path carried by a ParseError or FileError.
func PathOf(err error) string {
	var pe *ParseError
	if stderrors.As(err, &pe) {
		return pe.FilePath
	}
	var fe *FileError
	if stderrors.As(err, &fe) {
		return fe.Path
	}
	return ""
}
