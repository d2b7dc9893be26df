package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategorySuperseded    ErrorCategory = "superseded"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

var categoryCodes = map[ErrorCategory]string{
	CategoryValidation:    "VALIDATION_ERROR",
	CategoryRateLimit:     "RATE_LIMIT_EXCEEDED",
	CategorySuperseded:    "REQUEST_SUPERSEDED",
	CategoryTimeout:       "TIMEOUT_ERROR",
	CategoryInternal:      "INTERNAL_ERROR",
	CategoryConfiguration: "CONFIGURATION_ERROR",
}

// AppError wraps an errbuilder error with the category and HTTP status the
// transport layer needs.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory
	HTTPStatus int
	Timestamp  time.Time
	StackTrace string
	// Fields mirrors the errbuilder details as plain strings for responses.
	Fields map[string]string
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code(), e.ErrBuilder.Msg)
}

// Code returns the stable machine-readable code for the category.
func (e *AppError) Code() string {
	if code, ok := categoryCodes[e.Category]; ok {
		return code
	}
	return "UNKNOWN_ERROR"
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
		Fields:     map[string]string{},
	}
}

func build(base *errbuilder.ErrBuilder, message string, cause error, fields map[string]string) *errbuilder.ErrBuilder {
	builder := base.WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	if len(fields) > 0 {
		errorMap := errbuilder.ErrorMap{}
		for key, value := range fields {
			errorMap.Set(key, errors.New(value))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return builder
}

func newError(base *errbuilder.ErrBuilder, category ErrorCategory, status int, message string, cause error, fields map[string]string) *AppError {
	appErr := NewAppError(build(base, message, cause, fields), category, status)
	for k, v := range fields {
		appErr.Fields[k] = v
	}
	return appErr
}

// NewValidationError creates a validation error. The message is shown to
// the user verbatim.
func NewValidationError(message string, details ...interface{}) *AppError {
	var fields map[string]string
	if len(details) > 0 {
		fields = map[string]string{"validation_details": fmt.Sprintf("%v", details[0])}
	}
	return newError(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument), CategoryValidation, http.StatusBadRequest, message, nil, fields)
}

// NewValidationErrorWithMap creates a validation error covering several fields
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument), CategoryValidation, http.StatusBadRequest,
		"Multiple validation errors", nil, validationErrors)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter time.Duration) *AppError {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return newError(errbuilder.New().WithCode(errbuilder.CodeResourceExhausted), CategoryRateLimit, http.StatusTooManyRequests,
		"Rate limit exceeded", nil, map[string]string{"retry_after": fmt.Sprintf("%d", seconds)})
}

// NewSupersededError reports a request discarded because a newer one from
// the same session replaced it.
func NewSupersededError(cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), CategorySuperseded, http.StatusConflict,
		"Request superseded by a newer submission", cause, nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded), CategoryTimeout, http.StatusGatewayTimeout, message, cause, nil)
}

// NewInternalError creates an internal server error. The message is kept
// in the details; the public message stays generic.
func NewInternalError(message string, cause error) *AppError {
	appErr := newError(errbuilder.New().WithCode(errbuilder.CodeInternal), CategoryInternal, http.StatusInternalServerError,
		"Internal server error", cause, map[string]string{"internal_details": message})

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), CategoryConfiguration, http.StatusInternalServerError,
		"Configuration error", cause, map[string]string{"config_details": message})
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// Response renders the JSON body for err. Internal details are only
// exposed outside release mode.
func Response(c *gin.Context, err *AppError) gin.H {
	body := gin.H{
		"error":     err.ErrBuilder.Msg,
		"code":      err.Code(),
		"category":  err.Category,
		"timestamp": err.Timestamp.UTC().Format(time.RFC3339),
	}

	fields := make(map[string]string, len(err.Fields))
	for k, v := range err.Fields {
		if err.Category == CategoryInternal && gin.Mode() == gin.ReleaseMode {
			continue
		}
		fields[k] = v
	}
	if len(fields) > 0 {
		body["details"] = fields
	}

	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		body["request_id"] = requestID
	}

	return body
}

// Abort writes err as a structured response and stops the chain.
func Abort(c *gin.Context, err *AppError) {
	LogError(c, err)
	if retryAfter, ok := err.Fields["retry_after"]; ok {
		c.Header("Retry-After", retryAfter)
	}
	c.AbortWithStatusJSON(err.HTTPStatus, Response(c, err))
}

// ErrorHandler is a Gin middleware that provides centralized error handling
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		Abort(c, ToAppError(c.Errors.Last().Err))
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		)
		appErr.StackTrace = captureStackTrace()

		Abort(c, appErr)
	})
}

// LogError logs an error with a level chosen by its category
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.Code(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	msg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch err.Category {
	case CategoryValidation, CategoryRateLimit:
		if len(err.Fields) > 0 {
			logEntry.Warn(msg, "details", flatten(err.Fields))
		} else {
			logEntry.Warn(msg)
		}
	case CategorySuperseded, CategoryTimeout:
		if cause != nil {
			logEntry.Info(msg, "cause", cause)
		} else {
			logEntry.Info(msg)
		}
	default:
		if cause != nil {
			logEntry.Error(msg, "cause", cause, "details", flatten(err.Fields))
		} else {
			logEntry.Error(msg, "details", flatten(err.Fields))
		}
	}

	if err.StackTrace != "" && gin.Mode() != gin.ReleaseMode {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

func flatten(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, ",")
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
