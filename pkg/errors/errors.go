package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures so that callers can map them to exit codes
type ErrorType string

const (
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeMetadata       ErrorType = "metadata"
	ErrorTypeResponse       ErrorType = "response"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeHosts          ErrorType = "hosts"
	ErrorTypeService        ErrorType = "service"
	ErrorTypeNotOperational ErrorType = "not_operational"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeRuntime        ErrorType = "runtime"
	ErrorTypeInternal       ErrorType = "internal"
)

// SubError is a structured error reported by the check service
type SubError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Source string `json:"source,omitempty"`
}

func (s SubError) String() string {
	if s.Source == "" {
		return fmt.Sprintf("%s: %s", s.Title, s.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", s.Title, s.Detail, s.Source)
}

// DomainError represents a structured error with type and context
type DomainError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Context   map[string]interface{}
	SubErrors []SubError
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.SubErrors) > 0 {
		lines := make([]string, 0, len(e.SubErrors)+1)
		lines = append(lines, msg)
		for _, sub := range e.SubErrors {
			lines = append(lines, sub.String())
		}
		msg = strings.Join(lines, "\n")
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSubErrors attaches the structured errors supplied by the backend
func (e *DomainError) WithSubErrors(subs []SubError) *DomainError {
	e.SubErrors = append(e.SubErrors, subs...)
	return e
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Check service errors

func NewConnectionError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConnection, message, cause)
}

func NewAuthError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeAuth, message, cause)
}

func NewMetadataError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeMetadata, message, cause)
}

func NewResponseError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeResponse, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTimeout, message, cause)
}

// Lifecycle errors

func NewHostsError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeHosts, message, cause)
}

func NewServiceError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeService, message, cause)
}

func NewNotOperationalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotOperational, message, cause)
}

func NewRuntimeError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeRuntime, message, cause)
}

// System errors

func NewConfigError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConfig, message, cause)
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// TypeOf returns the type of the outermost DomainError in the chain, or ""
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == t
}

func IsConnectionError(err error) bool     { return isType(err, ErrorTypeConnection) }
func IsAuthError(err error) bool           { return isType(err, ErrorTypeAuth) }
func IsMetadataError(err error) bool       { return isType(err, ErrorTypeMetadata) }
func IsResponseError(err error) bool       { return isType(err, ErrorTypeResponse) }
func IsTimeoutError(err error) bool        { return isType(err, ErrorTypeTimeout) }
func IsHostsError(err error) bool          { return isType(err, ErrorTypeHosts) }
func IsServiceError(err error) bool        { return isType(err, ErrorTypeService) }
func IsNotOperationalError(err error) bool { return isType(err, ErrorTypeNotOperational) }
func IsRuntimeError(err error) bool        { return isType(err, ErrorTypeRuntime) }
func IsConfigError(err error) bool         { return isType(err, ErrorTypeConfig) }
func IsValidationError(err error) bool     { return isType(err, ErrorTypeValidation) }
func IsIOError(err error) bool             { return isType(err, ErrorTypeIO) }
func IsInternalError(err error) bool       { return isType(err, ErrorTypeInternal) }

// Process exit codes
const (
	ExitOK             = 0
	ExitConfig         = 1
	ExitRuntime        = 2
	ExitService        = 3
	ExitNotOperational = 4
	ExitHosts          = 5
	ExitCheck          = 6
	ExitUnknown        = 9
)

// ExitCode maps an error to the process exit status of the tcsc command
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch TypeOf(err) {
	case ErrorTypeConfig, ErrorTypeValidation, ErrorTypeIO:
		return ExitConfig
	case ErrorTypeRuntime:
		return ExitRuntime
	case ErrorTypeService:
		return ExitService
	case ErrorTypeNotOperational:
		return ExitNotOperational
	case ErrorTypeHosts:
		return ExitHosts
	case ErrorTypeMetadata, ErrorTypeResponse, ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeAuth:
		return ExitCheck
	default:
		return ExitUnknown
	}
}

// ErrorCollection aggregates errors of bulk operations
type ErrorCollection struct {
	Errors []error
}

func (e *ErrorCollection) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(e.Errors), e.Errors[0])
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ErrorCollection) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]error, 0),
	}
}
