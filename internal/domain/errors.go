package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so wrapped sentinels compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches a cause to a sentinel, keeping its code and message.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	ErrCodeClassificationFailed = "CLASSIFICATION_FAILED"
)

// Validation errors
var (
	ErrInvalidKnowledgeBaseName = NewDomainError(ErrCodeValidation, "knowledge base name cannot be empty")
	ErrEmptyQuestion            = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrNotPDF                   = NewDomainError(ErrCodeValidation, "only PDF files are supported")
	ErrFileTooLarge             = NewDomainError(ErrCodeValidation, "file exceeds the upload size limit")
)

// Not found errors
var (
	ErrFileNotFound          = NewDomainError(ErrCodeNotFound, "file not found")
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
)

// Already exists errors
var (
	ErrKnowledgeBaseAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge base already exists")
)

// Authorization errors
var (
	ErrProtectedKnowledgeBase    = NewDomainError(ErrCodeForbidden, "knowledge base is protected and cannot be deleted")
	ErrReservedKnowledgeBaseName = NewDomainError(ErrCodeForbidden, "knowledge base name is reserved")
	ErrInvalidToken              = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Upstream errors
var (
	ErrLLMNotConfigured   = NewDomainError(ErrCodeUpstreamUnavailable, "LLM API key is not configured")
	ErrLLMRequestFailed   = NewDomainError(ErrCodeUpstreamUnavailable, "LLM request failed")
	ErrEmptyCompletion    = NewDomainError(ErrCodeUpstreamUnavailable, "LLM returned an empty answer")
	ErrWebSearchFailed    = NewDomainError(ErrCodeUpstreamUnavailable, "web search failed")
	ErrEmbeddingFailed    = NewDomainError(ErrCodeUpstreamUnavailable, "embedding request failed")
	ErrClassificationFail = NewDomainError(ErrCodeClassificationFailed, "intent classification failed")
)

// Internal errors
var (
	ErrExtractionFailed = NewDomainError(ErrCodeInternalError, "failed to extract text from PDF")
	ErrStorageFailed    = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
