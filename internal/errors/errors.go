package errors

import (
	"fmt"
	"io/fs"
	"time"

	stderrors "errors"
)

// Error types for the symbol indexer
type ErrorType string

const (
	// Discovery and indexing errors
	ErrorTypeDiscovery ErrorType = "discovery"
	ErrorTypeIndexing  ErrorType = "indexing"

	// Lookup errors
	ErrorTypeLookup ErrorType = "lookup"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// DiscoveryError reports a file discovery strategy that could not run.
// Recoverable discovery errors let the selector fall through to the next strategy.
type DiscoveryError struct {
	Type        ErrorType
	Strategy    string
	Root        string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewDiscoveryError creates a discovery error for a strategy and root
func NewDiscoveryError(strategy, root string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:        ErrorTypeDiscovery,
		Strategy:    strategy,
		Root:        root,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: true,
	}
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s strategy %s failed for %s: %v", e.Type, e.Strategy, e.Root, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *DiscoveryError) Unwrap() error {
	return e.Underlying
}

// IndexingError represents an error during a rebuild
type IndexingError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *IndexingError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the rebuild can continue past this error
func (e *IndexingError) IsRecoverable() bool {
	return e.Recoverable
}

// LookupError reports a request whose document reference cannot be resolved
type LookupError struct {
	Type       ErrorType
	URI        string
	Underlying error
}

// NewLookupError creates a lookup error for a document URI
func NewLookupError(uri string, err error) *LookupError {
	return &LookupError{
		Type:       ErrorTypeLookup,
		URI:        uri,
		Underlying: err,
	}
}

// Error implements the error interface
func (e *LookupError) Error() string {
	return fmt.Sprintf("cannot resolve document %q: %v", e.URI, e.Underlying)
}

// Unwrap returns the underlying error
func (e *LookupError) Unwrap() error {
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
	errorType := ErrorTypeFileNotFound
	if stderrors.Is(err, fs.ErrPermission) {
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

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
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

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
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
