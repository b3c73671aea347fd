package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeExtraction
	ErrorTypeNoPackage
	ErrorTypeIdentifier
	ErrorTypePlacement
	ErrorTypeInstaller
	ErrorTypeConfiguration
	ErrorTypePermission
	ErrorTypeNotFound
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeExtraction:
		return "EXTRACTION"
	case ErrorTypeNoPackage:
		return "NO_PACKAGE"
	case ErrorTypeIdentifier:
		return "IDENTIFIER"
	case ErrorTypePlacement:
		return "PLACEMENT"
	case ErrorTypeInstaller:
		return "INSTALLER"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypePermission:
		return "PERMISSION"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Error codes shared between the pipeline and the CLI.
const (
	CodeSourceUnreadable     = "EXTRACT_SOURCE_UNREADABLE"
	CodeCorruptArchive       = "EXTRACT_CORRUPT_ARCHIVE"
	CodeUnsupportedEntry     = "EXTRACT_UNSUPPORTED_ENTRY"
	CodeUnsafePath           = "EXTRACT_UNSAFE_PATH"
	CodeDestinationWrite     = "EXTRACT_DESTINATION_WRITE"
	CodeCanceled             = "EXTRACT_CANCELED"
	CodeNoPackage            = "NO_PACKAGE"
	CodeIdentifierUnresolved = "IDENTIFIER_UNRESOLVED"
	CodePlacementFailed      = "PLACEMENT_FAILED"
	CodeInstallerFailed      = "INSTALLER_FAILED"
)

// XapkError represents an enhanced error with context and suggestions
type XapkError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"-"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Stack       []string          `json:"-"`
	Retryable   bool              `json:"retryable"`
}

// Error implements the error interface
func (e *XapkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *XapkError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target. An empty target code matches
// any code of the same type.
func (e *XapkError) Is(target error) bool {
	t, ok := target.(*XapkError)
	if !ok {
		return false
	}
	return e.Type == t.Type && (t.Code == "" || e.Code == t.Code)
}

// WithContext adds context to the error
func (e *XapkError) WithContext(key, value string) *XapkError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *XapkError) WithSuggestion(suggestion string) *XapkError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *XapkError) WithSuggestions(suggestions []string) *XapkError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// SetRetryable marks the error as retryable or not
func (e *XapkError) SetRetryable(retryable bool) *XapkError {
	e.Retryable = retryable
	return e
}

// FormatDetailed returns a detailed error message with context and suggestions
func (e *XapkError) FormatDetailed() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%s error [%s]: %s\n", e.Type.String(), e.Code, e.Message))

	if len(e.Context) > 0 {
		builder.WriteString("\nContext:\n")
		for key, value := range e.Context {
			builder.WriteString(fmt.Sprintf("   %s: %s\n", key, value))
		}
	}

	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("\nUnderlying cause: %v\n", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		builder.WriteString("\nSuggestions:\n")
		for _, suggestion := range e.Suggestions {
			builder.WriteString(fmt.Sprintf("   - %s\n", suggestion))
		}
	}

	if e.Retryable {
		builder.WriteString("\nThis operation can be retried\n")
	}

	return builder.String()
}

// NewError creates a new XapkError
func NewError(errorType ErrorType, code, message string) *XapkError {
	return &XapkError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Stack:     captureStack(),
	}
}

// WrapError wraps an existing error with XapkError
func WrapError(err error, errorType ErrorType, code, message string) *XapkError {
	e := NewError(errorType, code, message)
	e.Cause = err
	return e
}

// Sentinel values for errors.Is checks; they match any code of their type.
var (
	ErrExtraction           = &XapkError{Type: ErrorTypeExtraction}
	ErrNoPackage            = &XapkError{Type: ErrorTypeNoPackage}
	ErrIdentifierUnresolved = &XapkError{Type: ErrorTypeIdentifier}
	ErrPlacement            = &XapkError{Type: ErrorTypePlacement}
	ErrInstaller            = &XapkError{Type: ErrorTypeInstaller}
)

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var xe *XapkError
	if stderrors.As(err, &xe) {
		return xe.Type
	}
	return ErrorTypeUnknown
}

// captureStack captures the current stack trace
func captureStack() []string {
	var stack []string

	// Skip this function and the constructor
	for i := 2; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if strings.Contains(file, "xapk-installer") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

// Common error constructors

// NewExtractionError creates a fatal extraction error
func NewExtractionError(code, message string, cause error) *XapkError {
	return WrapError(cause, ErrorTypeExtraction, code, message).
		WithSuggestions([]string{
			"Verify the XAPK file is a valid zip archive",
			"Check free space and write permission on the extraction directory",
		})
}

// NewNoPackageError reports an archive without an installable package
func NewNoPackageError(archive string) *XapkError {
	return NewError(ErrorTypeNoPackage, CodeNoPackage, "no APK found in archive").
		WithContext("archive", archive).
		WithSuggestion("Check that the file is an XAPK and not a plain OBB bundle")
}

// NewIdentifierError reports that no resolution stage produced a package name
func NewIdentifierError(archive string) *XapkError {
	return NewError(ErrorTypeIdentifier, CodeIdentifierUnresolved, "could not determine package name for OBB files").
		WithContext("archive", archive).
		WithSuggestions([]string{
			"Place the OBB files manually under Android/obb/<package>/",
			"Re-run placement with 'xapk place --id <package>'",
		})
}

// NewPlacementError reports a failure to place one auxiliary asset
func NewPlacementError(asset string, cause error) *XapkError {
	return WrapError(cause, ErrorTypePlacement, CodePlacementFailed, "failed to place OBB file").
		WithContext("asset", asset).
		SetRetryable(true).
		WithSuggestions([]string{
			"Check write permission on the OBB root",
			"Verify disk space availability",
		})
}

// NewInstallerError reports a failed package installer handoff
func NewInstallerError(apk string, cause error) *XapkError {
	return WrapError(cause, ErrorTypeInstaller, CodeInstallerFailed, "package installer handoff failed").
		WithContext("apk", apk).
		SetRetryable(true)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *XapkError {
	return NewError(ErrorTypeConfiguration, code, message).
		WithSuggestions([]string{
			"Check the configuration file syntax",
			"Run 'xapk config init' to regenerate configuration",
		})
}

// NewPermissionError creates a permission error
func NewPermissionError(code, message string) *XapkError {
	return NewError(ErrorTypePermission, code, message).
		WithSuggestions([]string{
			"Check file/directory permissions",
			"Ensure you have write access to the target location",
		})
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *XapkError {
	return NewError(ErrorTypeValidation, code, message).
		WithSuggestion("Check the input parameters and try again")
}
