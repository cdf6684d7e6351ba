package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// JSON-RPC error codes returned by ledger nodes.
const (
	rpcCodeSendTransactionPreflightFailure = -32002
	rpcCodeBlockNotAvailable               = -32004
	rpcCodeNodeUnhealthy                   = -32005
	rpcCodeTransactionPrecompileFailure    = -32006
	rpcCodeMinContextSlotNotReached        = -32016
	rpcCodeInvalidRequest                  = -32600
	rpcCodeMethodNotFound                  = -32601
	rpcCodeInvalidParams                   = -32602
	rpcCodeTooManyRequests                 = 429
)

var (
	alreadyExistsPatterns = []string{
		"already in use",
		"already exists",
		"accountalreadyinuse",
	}
	// Rejections a Create for an associated account raises when the account
	// is already there: the system program's AccountAlreadyInUse (custom
	// error 0) and the associated token program's IllegalOwner.
	accountConflictPatterns = []string{
		"custom program error: 0x0",
		"provided owner is not allowed",
	}
	alreadyProcessedPatterns = []string{
		"already been processed",
		"alreadyprocessed",
	}
	staleFreshnessPatterns = []string{
		"blockhash not found",
		"blockhashnotfound",
		"block height exceeded",
		"transaction has expired",
	}
	transientPatterns = []string{
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"temporary failure",
		"too many requests",
		"rate limit",
		"unexpected eof",
		"service unavailable",
		"bad gateway",
		"node is behind",
		"node is unhealthy",
	}
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HasCode checks if an error is an *Error with the given code
func HasCode(err error, code ErrorCode) bool {
	return Classify(err) == code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	code := Classify(err)
	return code == ErrCodeTransient || code == ErrCodeStaleFreshness
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return determineSeverity(Classify(err))
}

// Classify maps any error returned by the ledger SDK, the transport or this
// module onto the error taxonomy. Unknown failures are Fatal.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	if errors.Is(err, rpc.ErrNotFound) {
		return ErrCodeNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrCodeTransient
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPCError(rpcErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrCodeTransient
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrCodeFatal
	}

	return classifyText(err.Error(), ErrCodeFatal)
}

func classifyRPCError(rpcErr *jsonrpc.RPCError) ErrorCode {
	text := rpcErr.Message
	if rpcErr.Data != nil {
		text = fmt.Sprintf("%s %v", text, rpcErr.Data)
	}

	switch rpcErr.Code {
	case rpcCodeNodeUnhealthy, rpcCodeBlockNotAvailable, rpcCodeMinContextSlotNotReached, rpcCodeTooManyRequests:
		return ErrCodeTransient
	case rpcCodeInvalidRequest, rpcCodeMethodNotFound, rpcCodeInvalidParams:
		return ErrCodeFatal
	case rpcCodeSendTransactionPreflightFailure, rpcCodeTransactionPrecompileFailure:
		// the ledger simulated and rejected the transaction; only the reason decides the class
		return classifyText(text, ErrCodeFatal)
	}
	return classifyText(text, ErrCodeFatal)
}

func classifyText(text string, fallback ErrorCode) ErrorCode {
	lower := strings.ToLower(text)
	if containsAny(lower, alreadyExistsPatterns) {
		return ErrCodeAlreadyExists
	}
	if containsAny(lower, staleFreshnessPatterns) {
		return ErrCodeStaleFreshness
	}
	if containsAny(lower, transientPatterns) {
		return ErrCodeTransient
	}
	return fallback
}

// IsAccountConflict reports whether err is a rejection of an associated
// account Create because the account exists. Only meaningful for
// transactions whose instructions all create accounts: custom error 0 is
// a different failure for other programs.
func IsAccountConflict(err error) bool {
	if err == nil {
		return false
	}
	if Classify(err) == ErrCodeAlreadyExists {
		return true
	}
	return containsAny(strings.ToLower(errorText(err)), accountConflictPatterns)
}

// IsAlreadyProcessed reports whether the ledger refused a transaction because
// the same signed transaction already landed.
func IsAlreadyProcessed(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(strings.ToLower(errorText(err)), alreadyProcessedPatterns)
}

// errorText is err's message plus the data of any wrapped RPC error, which
// carries the program logs.
func errorText(err error) string {
	text := err.Error()
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		text = fmt.Sprintf("%s %s", text, rpcErr.Message)
		if rpcErr.Data != nil {
			text = fmt.Sprintf("%s %v", text, rpcErr.Data)
		}
	}
	return text
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Classified converts err into an *Error tagged with op, preserving an existing
// classification. It returns nil for a nil error.
func Classified(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op != "" {
			return e
		}
		tagged := *e
		tagged.Op = op
		return &tagged
	}
	return New(Classify(err), op, "request failed", err)
}
