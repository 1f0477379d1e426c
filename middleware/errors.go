package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// APIError represents a structured error response
type APIError struct {
	Error     ErrorCode `json:"error"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ErrorHandler writes a structured error response and logs it with context.
func ErrorHandler(w http.ResponseWriter, err error, code ErrorCode, statusCode int, requestID string) {
	apiErr := APIError{
		Error:     code,
		Message:   errorMessage(code),
		Details:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	Logger.WithFields(logrus.Fields{
		"error_code":  code,
		"status_code": statusCode,
		"request_id":  requestID,
		"error":       err.Error(),
	}).Error("API error occurred")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr)
}

func errorMessage(code ErrorCode) string {
	switch code {
	case ErrCodeBadRequest:
		return "The request is invalid or malformed"
	case ErrCodeNotFound:
		return "The requested resource was not found"
	case ErrCodeRateLimited:
		return "Rate limit exceeded. Please try again later"
	case ErrCodeServiceUnavailable:
		return "The service is temporarily unavailable"
	default:
		return "An internal server error occurred"
	}
}

// Common error response helpers
func RespondBadRequest(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeBadRequest, http.StatusBadRequest, requestID)
}

func RespondNotFound(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeNotFound, http.StatusNotFound, requestID)
}

func RespondRateLimited(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeRateLimited, http.StatusTooManyRequests, requestID)
}

func RespondInternalError(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeInternalError, http.StatusInternalServerError, requestID)
}

func RespondServiceUnavailable(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeServiceUnavailable, http.StatusServiceUnavailable, requestID)
}
