package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeConflict            ErrorType = "CONFLICT"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// Machine-readable codes carried next to the type.
const (
	CodeDuplicateRequest = "DUPLICATE_REQUEST"
	CodeAlreadyReviewed  = "ALREADY_REVIEWED"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is / errors.As.
func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New409Error creates a conflict error. Retrying a request that produced it
// is pointless: the conflicting state has already been committed.
func New409Error(code, message string, internal error) *CustomError {
	e := newError(ErrorTypeConflict, message, http.StatusConflict, internal)
	e.Code = code
	return e
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	customErr, ok := err.(*CustomError)
	if !ok {
		customErr = New500Error(err)
	}

	if customErr.Type == ErrorTypeInternalServerError {
		logger := zerolog.Ctx(c.Request.Context())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
		logger.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	body := gin.H{
		"type":    customErr.Type,
		"message": customErr.Message,
	}
	if customErr.Code != "" {
		body["code"] = customErr.Code
	}
	c.AbortWithStatusJSON(customErr.StatusCode, gin.H{"error": body})
}
