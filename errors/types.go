package errors

import (
	"fmt"
)

// ErrorCode represents the classified category of a failure
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates malformed caller input (address text, key length)
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeKeyMaterial indicates secret key bytes that do not encode a valid key
	ErrCodeKeyMaterial ErrorCode = "KEY_MATERIAL"

	// ErrCodeSigning indicates a signer failed to produce a signature
	ErrCodeSigning ErrorCode = "SIGNING"

	// ErrCodeAssembly indicates an instruction/signer set that cannot form a transaction
	ErrCodeAssembly ErrorCode = "ASSEMBLY"

	// ErrCodeDerivation indicates malformed seeds for a program-derived address
	ErrCodeDerivation ErrorCode = "DERIVATION"

	// ErrCodeNotFound indicates the ledger has no such account or transaction
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyExists indicates the ledger rejected a creation because the account exists
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// ErrCodeTransient indicates network or timeout failures that are safe to retry
	ErrCodeTransient ErrorCode = "TRANSIENT"

	// ErrCodeStaleFreshness indicates the ledger rejected a transaction whose blockhash expired
	ErrCodeStaleFreshness ErrorCode = "STALE_FRESHNESS"

	// ErrCodeFatal indicates malformed responses or protocol mismatches
	ErrCodeFatal ErrorCode = "FATAL"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Error is the classified error returned by every fallible operation of the module
type Error struct {
	Code     ErrorCode              `json:"code"`
	Op       string                 `json:"op,omitempty"`
	Message  string                 `json:"message"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// New creates a new Error
func New(code ErrorCode, op, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Op:       op,
		Message:  message,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code and message, so sentinel values work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *Error) WithSeverity(severity Severity) *Error {
	e.Severity = severity
	return e
}

// IsRetryable returns true if resubmitting (with a fresh blockhash where relevant) may succeed
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTransient, ErrCodeStaleFreshness:
		return true
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal, ErrCodeFatal:
		return SeverityCritical
	case ErrCodeKeyMaterial, ErrCodeSigning, ErrCodeDerivation:
		return SeverityHigh
	case ErrCodeAssembly, ErrCodeTransient, ErrCodeStaleFreshness:
		return SeverityMedium
	case ErrCodeInvalidInput, ErrCodeNotFound:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Sentinels for failures callers commonly branch on.
var (
	ErrNoSigners                = &Error{Code: ErrCodeAssembly, Message: "no signers provided"}
	ErrMissingFeePayerSignature = &Error{Code: ErrCodeAssembly, Message: "fee payer is not among the signers"}
	ErrInvalidProgramAddress    = &Error{Code: ErrCodeInvalidInput, Message: "invalid program address"}
	ErrInvalidKeyMaterial       = &Error{Code: ErrCodeKeyMaterial, Message: "invalid key material"}
	ErrAccountNotFound          = &Error{Code: ErrCodeNotFound, Message: "account not found"}
)

// Sentinel returns a fresh, op-tagged copy of a sentinel wrapping cause.
// The copy still matches the sentinel under errors.Is.
func Sentinel(sentinel *Error, op string, cause error) *Error {
	return New(sentinel.Code, op, sentinel.Message, cause)
}

// Common error constructors

// NewInvalidInputError creates an invalid input error
func NewInvalidInputError(op, message string, cause error) *Error {
	return New(ErrCodeInvalidInput, op, message, cause)
}

// NewKeyMaterialError creates a key material error
func NewKeyMaterialError(op, message string, cause error) *Error {
	return New(ErrCodeKeyMaterial, op, message, cause)
}

// NewSigningError creates a signing error
func NewSigningError(op, message string, cause error) *Error {
	return New(ErrCodeSigning, op, message, cause)
}

// NewAssemblyError creates an assembly error
func NewAssemblyError(op, message string, cause error) *Error {
	return New(ErrCodeAssembly, op, message, cause)
}

// NewDerivationError creates an address derivation error
func NewDerivationError(op, message string, cause error) *Error {
	return New(ErrCodeDerivation, op, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(op, message string, cause error) *Error {
	return New(ErrCodeNotFound, op, message, cause)
}

// NewAlreadyExistsError creates an already exists error
func NewAlreadyExistsError(op, message string, cause error) *Error {
	return New(ErrCodeAlreadyExists, op, message, cause)
}

// NewTransientError creates a transient (retryable) error
func NewTransientError(op, message string, cause error) *Error {
	return New(ErrCodeTransient, op, message, cause)
}

// NewFatalError creates a fatal error
func NewFatalError(op, message string, cause error) *Error {
	return New(ErrCodeFatal, op, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(op, message string, cause error) *Error {
	return New(ErrCodeInternal, op, message, cause)
}
