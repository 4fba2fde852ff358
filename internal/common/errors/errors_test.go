package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_ThroughWrapping(t *testing.T) {
	base := NewSubmitRejectedError("tender is closed", nil)
	wrapped := fmt.Errorf("submit: %w", base)

	assert.Equal(t, ErrCodeSubmitRejected, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeSubmitRejected))
	assert.Equal(t, "tender is closed", MessageOf(wrapped))
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewBackendUnavailableError("uploadApplicationDocument", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"validation", NewValidationError("must agree to terms"), "VALIDATION_ERROR", 0},
		{"timeout", NewPaymentConfirmationTimeoutError("req-1", 5), "PAYMENT_CONFIRMATION_TIMEOUT", 0},
		{"backend", NewBackendUnavailableError("op", stderrors.New("x")), "BACKEND_UNAVAILABLE", 3},
		{"unknown code", &StandardError{Code: "SOMETHING_NEW"}, "INTERNAL_ERROR", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
		})
	}
}

func TestTimeoutError_CarriesMetadata(t *testing.T) {
	err := NewPaymentConfirmationTimeoutError("req-9", 5)
	vars := ConvertToBPMNError(err).ToErrorVariables()

	assert.Equal(t, "req-9", vars["requestId"])
	assert.Equal(t, 5, vars["attempts"])
	assert.Equal(t, "PAYMENT_CONFIRMATION_TIMEOUT", vars["errorCode"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidation))
	assert.Equal(t, "PAYMENT", GetErrorCategory(ErrCodeInsufficientBalance))
	assert.Equal(t, "APPLICATION", GetErrorCategory(ErrCodeUploadFailed))
	assert.Equal(t, "UNKNOWN", GetErrorCategory("NOPE"))
}

func TestNormalize(t *testing.T) {
	std := Normalize(stderrors.New("raw"))
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "raw", std.Details)

	orig := NewValidationError("bad")
	assert.Same(t, orig, Normalize(fmt.Errorf("wrap: %w", orig)))
}
