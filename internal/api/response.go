package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/domain"
)

// Values of the status field.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// StatusResponse is the {status, message} or {status, data} envelope used
// by the knowledge base and upload endpoints.
type StatusResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Data writes {status: "success", data}.
func Data(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, StatusResponse{Status: StatusSuccess, Data: data})
}

// Message writes {status, message} with a 200 code.
func Message(w http.ResponseWriter, status, message string) {
	JSON(w, http.StatusOK, StatusResponse{Status: status, Message: message})
}

// Error writes {status: "error", message}.
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, StatusResponse{Status: StatusError, Message: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists:
		return http.StatusConflict
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeClassificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the message of the outermost domain error, falling
// back to err.Error() for anything else.
func ErrorMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// HandleError writes an appropriate error response based on the error type
func HandleError(w http.ResponseWriter, err error) {
	Error(w, DomainErrorToHTTP(err), ErrorMessage(err))
}
