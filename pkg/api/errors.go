package api

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode discriminates gateway failures so callers can tell retryable
// conditions (throttling) from terminal ones (bad request, unknown model).
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeModelNotFound     ErrorCode = "MODEL_NOT_FOUND"
	CodeModelNotReady     ErrorCode = "MODEL_NOT_READY"
	CodeUnsupportedVendor ErrorCode = "UNSUPPORTED_VENDOR"
	CodeRoleAlternation   ErrorCode = "ROLE_ALTERNATION"
	CodeTransport         ErrorCode = "TRANSPORT_ERROR"
	CodeThrottled         ErrorCode = "THROTTLED"
	CodeConversationStore ErrorCode = "CONVERSATION_STORE"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error shape every gateway failure resolves to.
type Error struct {
	Code ErrorCode
	// Service and Operation locate the failure (e.g. "bedrock", "InvokeModel").
	Service   string
	Operation string
	Message   string
	Timestamp time.Time

	Retryable bool
	// RetryAfter is only meaningful for throttling errors.
	RetryAfter time.Duration

	// Log is the underlying cause, kept for server-side logging.
	Log error
}

func (e *Error) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s/%s: %s", e.Code, e.Service, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Log }

// Is matches on code so callers can use errors.Is against sentinel shapes.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Timestamp: time.Now().UTC()}
}

func ValidationError(msg string) *Error {
	return newError(CodeValidation, msg)
}

func ModelNotFoundError(modelID, provider string) *Error {
	e := newError(CodeModelNotFound, fmt.Sprintf("model %q not found for provider %q", modelID, provider))
	e.Service = provider
	e.Operation = "GetModelConfig"
	return e
}

func ModelNotReadyError(modelID, provider string) *Error {
	e := newError(CodeModelNotReady, fmt.Sprintf("model %q is not ready on provider %q", modelID, provider))
	e.Service = provider
	e.Operation = "GetModelConfig"
	return e
}

func UnsupportedVendorError(vendor string) *Error {
	return newError(CodeUnsupportedVendor, fmt.Sprintf("no adapter registered for vendor %q", vendor))
}

func RoleAlternationError(msg string) *Error {
	return newError(CodeRoleAlternation, msg)
}

func TransportError(service, operation string, err error) *Error {
	e := newError(CodeTransport, fmt.Sprintf("transport call failed: %v", err))
	e.Service = service
	e.Operation = operation
	e.Log = err
	return e
}

// ThrottlingError is retryable; retryAfter of zero means "unknown, back off".
func ThrottlingError(service, operation string, retryAfter time.Duration, err error) *Error {
	e := newError(CodeThrottled, "request was throttled by the provider")
	e.Service = service
	e.Operation = operation
	e.Retryable = true
	e.RetryAfter = retryAfter
	e.Log = err
	return e
}

func ConversationStoreError(operation string, err error) *Error {
	e := newError(CodeConversationStore, fmt.Sprintf("conversation store failure: %v", err))
	e.Service = "conversation-store"
	e.Operation = operation
	e.Log = err
	return e
}

func InternalError(msg string, err error) *Error {
	e := newError(CodeInternal, msg)
	e.Log = err
	return e
}

// CodeOf extracts the gateway error code, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the caller may usefully retry the request.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
