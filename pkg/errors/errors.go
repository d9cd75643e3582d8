package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "ADME1001"
	ErrCodeConnectionTimeout    ErrorCode = "ADME1002"
	ErrCodeAuthenticationFailed ErrorCode = "ADME1003"
	ErrCodeNetworkUnavailable   ErrorCode = "ADME1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "ADME2001"
	ErrCodeConfigInvalid  ErrorCode = "ADME2002"
	ErrCodeConfigMissing  ErrorCode = "ADME2003"

	// Secret errors (3xxx)
	ErrCodeSecretNotFound ErrorCode = "ADME3001"
	ErrCodeSecretAccess   ErrorCode = "ADME3002"

	// Warehouse errors (4xxx)
	ErrCodeSQLExecution      ErrorCode = "ADME4001"
	ErrCodeSQLTimeout        ErrorCode = "ADME4002"
	ErrCodeTableNotFound     ErrorCode = "ADME4003"
	ErrCodeTableCreateFailed ErrorCode = "ADME4004"
	ErrCodeLoadFailed        ErrorCode = "ADME4005"
	ErrCodeDeleteFailed      ErrorCode = "ADME4006"
	ErrCodeNoRawTables       ErrorCode = "ADME4007"

	// Fetch errors (5xxx)
	ErrCodeFetchFailed      ErrorCode = "ADME5001"
	ErrCodeAPIStatus        ErrorCode = "ADME5002"
	ErrCodeEmptyUpstream    ErrorCode = "ADME5003"
	ErrCodeResponseParsing  ErrorCode = "ADME5004"

	// Validation errors (6xxx)
	ErrCodeInvalidInput   ErrorCode = "ADME6001"
	ErrCodeEmptyInput     ErrorCode = "ADME6002"
	ErrCodeUnknownSchema  ErrorCode = "ADME6003"
	ErrCodeCoercionFailed ErrorCode = "ADME6004"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "ADME9001"
	ErrCodeTimeout            ErrorCode = "ADME9002"
	ErrCodeMaxRetriesExceeded ErrorCode = "ADME9003"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // Step failed, run continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Step succeeded with issues
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
	Recoverable bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code
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

// Newf creates a new AppError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context when wrapping another AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
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

// AsRecoverable marks the error as retryable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// GetErrorCode extracts the error code from any error
func GetErrorCode(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}
	return false
}

// IsRecoverable reports whether the error is marked retryable
func IsRecoverable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	appErr := New(ErrCodeConnectionFailed, message)
	appErr.Cause = cause
	return appErr
}

// SQLError creates an error for a failed warehouse statement
func SQLError(message, query string, cause error) *AppError {
	appErr := New(ErrCodeSQLExecution, message)
	appErr.Cause = cause
	return appErr.WithContext("query", truncateQuery(query))
}

// SecretError creates a secret-access error
func SecretError(name string, cause error) *AppError {
	appErr := New(ErrCodeSecretAccess, fmt.Sprintf("failed to access secret %s", name))
	appErr.Cause = cause
	return appErr.WithContext("secret", name)
}

func truncateQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}

func captureStack() string {
	var b strings.Builder
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") {
			break
		}
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
