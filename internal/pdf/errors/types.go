package errors

import (
	stderrors "errors"
	"fmt"
)

// PDFError represents a document-level failure with enough context to report
// which template or field map caused it
type PDFError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Context string    `json:"context,omitempty"`
	Source  string    `json:"source,omitempty"`
	Cause   error     `json:"-"`
}

// ErrorType represents the categories of failure the overlay pipeline can raise
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeSourceUnavailable
	ErrorTypeMalformedDocument
	ErrorTypeInvalidFieldMap
	ErrorTypeInvalidFormData
	ErrorTypeSecurityRestriction
	ErrorTypeFileTooLarge
	ErrorTypeRender
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Source != "" {
		msg += fmt.Sprintf(" (%s)", e.Source)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is and errors.As
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeSourceUnavailable:
		return "SOURCE_UNAVAILABLE"
	case ErrorTypeMalformedDocument:
		return "MALFORMED_DOCUMENT"
	case ErrorTypeInvalidFieldMap:
		return "INVALID_FIELD_MAP"
	case ErrorTypeInvalidFormData:
		return "INVALID_FORM_DATA"
	case ErrorTypeSecurityRestriction:
		return "SECURITY_RESTRICTION"
	case ErrorTypeFileTooLarge:
		return "FILE_TOO_LARGE"
	case ErrorTypeRender:
		return "RENDER_FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsCallerError reports whether the error was caused by the request rather
// than by the service or the template it points at
func (et ErrorType) IsCallerError() bool {
	switch et {
	case ErrorTypeInvalidFieldMap, ErrorTypeInvalidFormData, ErrorTypeSecurityRestriction, ErrorTypeFileTooLarge:
		return true
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
	}
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
		Context: context,
	}
}

// WrapError wraps a standard error as a PDFError, keeping it as the cause
func WrapError(errorType ErrorType, err error) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: err.Error(),
		Cause:   err,
	}
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithSource records the template or field map reference the error relates to
func (e *PDFError) WithSource(source string) *PDFError {
	e.Source = source
	return e
}

// TypeOf returns the ErrorType of the first PDFError in err's chain, or
// ErrorTypeUnknown when there is none
func TypeOf(err error) ErrorType {
	var pdfErr *PDFError
	if stderrors.As(err, &pdfErr) {
		return pdfErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains a PDFError of the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}
