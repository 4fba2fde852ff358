// Package errors provides standardized error handling for the tender application workflow.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Local pre-flight failures. These never reach the network layer.
const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	ErrCodeApplicationLocked  ErrorCode = "APPLICATION_LOCKED"
	ErrCodePaymentInProgress  ErrorCode = "PAYMENT_IN_PROGRESS"
)

// I/O failures reported by the backend collaborator.
const (
	ErrCodeUploadFailed               ErrorCode = "UPLOAD_FAILED"
	ErrCodePaymentRequestFailed       ErrorCode = "PAYMENT_REQUEST_FAILED"
	ErrCodePaymentConfirmationTimeout ErrorCode = "PAYMENT_CONFIRMATION_TIMEOUT"
	ErrCodeInsufficientBalance        ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeSubmitRejected             ErrorCode = "SUBMIT_REJECTED"
	ErrCodeBackendUnavailable         ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeInternal                   ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the ErrorCode from anywhere in the wrap chain.
// Errors that are not StandardErrors report INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message of a StandardError, or err.Error() otherwise.
func MessageOf(err error) string {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewValidationError reports a local invariant violation (budget, consent, missing documents).
func NewValidationError(message string) *StandardError {
	return newError(ErrCodeValidation, message, "", false, nil)
}

// NewPreconditionFailedError reports an operation invoked before its prerequisite happened.
func NewPreconditionFailedError(message string) *StandardError {
	return newError(ErrCodePreconditionFailed, message, "", false, nil)
}

// NewApplicationLockedError is returned by every mutating wizard call once the application is submitted.
func NewApplicationLockedError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationLocked, "application has already been submitted", applicationID, false, nil)
}

// NewPaymentInProgressError rejects a second push while one is being confirmed.
func NewPaymentInProgressError(requestID string) *StandardError {
	return newError(ErrCodePaymentInProgress, "a payment is already being confirmed", requestID, false, nil)
}

// NewUploadFailedError is per field and recoverable by re-selecting the file.
func NewUploadFailedError(stage, fieldName string, err error) *StandardError {
	return newError(ErrCodeUploadFailed,
		fmt.Sprintf("upload of %s failed", fieldName),
		fmt.Sprintf("stage=%s: %v", stage, err), true, err).
		WithMetadata("stage", stage).
		WithMetadata("fieldName", fieldName)
}

// NewPaymentRequestFailedError carries the server message verbatim.
func NewPaymentRequestFailedError(serverMessage string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodePaymentRequestFailed, serverMessage, details, false, err)
}

// NewPaymentConfirmationTimeoutError is raised after the poll attempt ceiling.
func NewPaymentConfirmationTimeoutError(requestID string, attempts int) *StandardError {
	return newError(ErrCodePaymentConfirmationTimeout,
		"payment confirmation not received",
		fmt.Sprintf("request %s unconfirmed after %d attempts", requestID, attempts), false, nil).
		WithMetadata("requestId", requestID).
		WithMetadata("attempts", attempts)
}

// NewInsufficientBalanceError is terminal until the wallet is recharged elsewhere.
func NewInsufficientBalanceError(balance, threshold string) *StandardError {
	return newError(ErrCodeInsufficientBalance, "insufficient balance",
		fmt.Sprintf("balance %s below required %s", balance, threshold), false, nil)
}

// NewSubmitRejectedError passes the server message through to the user.
func NewSubmitRejectedError(serverMessage string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeSubmitRejected, serverMessage, details, false, err)
}

// NewBackendUnavailableError wraps transport level failures.
func NewBackendUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeBackendUnavailable,
		fmt.Sprintf("backend operation %s failed", operation), err.Error(), true, err)
}

// ==========================
// 4. BPMN Mapping
// ==========================

// BPMNErrorMapping maps internal codes onto the error codes modelled in the BPMN process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:                 "VALIDATION_ERROR",
	ErrCodePreconditionFailed:         "PRECONDITION_FAILED",
	ErrCodeApplicationLocked:          "APPLICATION_LOCKED",
	ErrCodePaymentInProgress:          "PAYMENT_IN_PROGRESS",
	ErrCodeUploadFailed:               "UPLOAD_FAILED",
	ErrCodePaymentRequestFailed:       "PAYMENT_REQUEST_FAILED",
	ErrCodePaymentConfirmationTimeout: "PAYMENT_CONFIRMATION_TIMEOUT",
	ErrCodeInsufficientBalance:        "INSUFFICIENT_BALANCE",
	ErrCodeSubmitRejected:             "SUBMIT_REJECTED",
	ErrCodeBackendUnavailable:         "BACKEND_UNAVAILABLE",
	ErrCodeInternal:                   "INTERNAL_ERROR",
}

// GetRetryCount returns how many times a job failing with code should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBackendUnavailable:
		return 3
	case ErrCodeUploadFailed:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError turns a StandardError into the shape thrown to Zeebe.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	code, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		code = "INTERNAL_ERROR"
	}
	return &BPMNError{
		Code:           code,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: stdErr.Metadata,
	}
}

// GetErrorCategory groups codes for logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidation, ErrCodePreconditionFailed, ErrCodeApplicationLocked, ErrCodePaymentInProgress:
		return "VALIDATION"
	case ErrCodePaymentRequestFailed, ErrCodePaymentConfirmationTimeout, ErrCodeInsufficientBalance:
		return "PAYMENT"
	case ErrCodeUploadFailed, ErrCodeSubmitRejected:
		return "APPLICATION"
	case ErrCodeBackendUnavailable:
		return "INFRASTRUCTURE"
	default:
		return "UNKNOWN"
	}
}
