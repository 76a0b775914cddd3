package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "DWH1001"
	ErrCodeConnectionTimeout    ErrorCode = "DWH1002"
	ErrCodeAuthenticationFailed ErrorCode = "DWH1003"
	ErrCodeNotConnected         ErrorCode = "DWH1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "DWH2001"
	ErrCodeConfigInvalid  ErrorCode = "DWH2002"
	ErrCodeConfigMissing  ErrorCode = "DWH2003"

	// Catalog errors (3xxx)
	ErrCodeUnknownDialect ErrorCode = "DWH3001"
	ErrCodeUnknownPhase   ErrorCode = "DWH3002"
	ErrCodeTemplate       ErrorCode = "DWH3003"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "DWH4001"
	ErrCodeSQLPermission     ErrorCode = "DWH4002"
	ErrCodeSQLTimeout        ErrorCode = "DWH4003"
	ErrCodeSQLObjectNotFound ErrorCode = "DWH4005"
	ErrCodeSQLExecution      ErrorCode = "DWH4006"
	ErrCodeLoadFailed        ErrorCode = "DWH4007"
	ErrCodeTypeCast          ErrorCode = "DWH4008"
	ErrCodeConstraint        ErrorCode = "DWH4009"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "DWH6001"
	ErrCodeInvalidInput     ErrorCode = "DWH6002"

	// Credential errors (7xxx)
	ErrCodeCredentials ErrorCode = "DWH7001"

	// System errors (9xxx)
	ErrCodeInternal  ErrorCode = "DWH9001"
	ErrCodeCancelled ErrorCode = "DWH9002"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run aborted, warehouse may be partially loaded
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSuggestions(
			"Check that the cluster endpoint is reachable from this host",
			"Verify the host, port and database name in the configuration",
			"Check the security group / network policy of the warehouse",
		)
}

// ConfigError creates an error for a missing configuration key
func ConfigError(message string, key string) *AppError {
	return New(ErrCodeConfigMissing, message).
		WithContext("key", key).
		WithSuggestions(
			fmt.Sprintf("Set '%s' in the configuration file", key),
			fmt.Sprintf("Or export %s", EnvName(key)),
		)
}

// EnvName returns the environment variable that overrides a config key
func EnvName(key string) string {
	return "SONGDWH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SQLError creates an SQL execution error, classifying the driver message
func SQLError(message string, query string, cause error) *AppError {
	if cause == nil {
		return New(ErrCodeSQLExecution, message).
			WithContext("query", truncateString(query, 200))
	}

	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	lower := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(lower, "stl_load_errors") || strings.Contains(lower, "load into table"):
		err.Code = ErrCodeLoadFailed
		_ = err.WithSuggestions(
			"Query stl_load_errors for the rejected line and column",
			"Check that the JSON fields match the staging table columns",
		)
	case strings.Contains(lower, "access denied") || strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "not authorized") || strings.Contains(lower, "insufficient privileges"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Verify the IAM role is attached to the cluster and can read the bucket",
			"Verify the database user owns the target tables",
		)
	case strings.Contains(lower, "does not exist") || strings.Contains(lower, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Run 'songdwh create-tables' before 'songdwh etl'",
		)
	case strings.Contains(lower, "invalid input syntax") || strings.Contains(lower, "numeric value") ||
		strings.Contains(lower, "cannot be cast"):
		err.Code = ErrCodeTypeCast
	case strings.Contains(lower, "violates not-null") || strings.Contains(lower, "null value"):
		err.Code = ErrCodeConstraint
	case strings.Contains(lower, "syntax error"):
		err.Code = ErrCodeSQLSyntax
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase warehouse.statement_timeout",
		)
	case strings.Contains(lower, "context canceled"):
		err.Code = ErrCodeCancelled
	}

	return err
}

// LoadError creates an error for a failed staging load. Driver messages
// that classify more precisely keep their own code.
func LoadError(table string, query string, cause error) *AppError {
	err := SQLError(fmt.Sprintf("Failed to load %s", table), query, cause).
		WithContext("table", table)
	if err.Code == ErrCodeSQLExecution {
		err.Code = ErrCodeLoadFailed
		_ = err.WithSuggestions(
			"Check that the source location exists and is readable by the warehouse",
		)
	}
	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString shortens s to at most maxLen bytes without splitting a rune
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
