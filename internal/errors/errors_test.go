package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(CodeProfileInvalid, "tick_ms must be positive")
	if got := err.Error(); !strings.Contains(got, "[profile_invalid]") {
		t.Errorf("Error() = %q, want code prefix", got)
	}

	wrapped := Wrap(fmt.Errorf("boom"), CodeCaptureUnavailable, "frame grab failed")
	if got := wrapped.Error(); !strings.Contains(got, "caused by: boom") {
		t.Errorf("Error() = %q, want cause suffix", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(cause, CodeInternal, "wrapped")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is did not find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"direct", New(CodeTemplateSetUnresolved, "no set"), CodeTemplateSetUnresolved},
		{"wrapped in fmt", fmt.Errorf("outer: %w", New(CodeCaptureUnavailable, "gone")), CodeCaptureUnavailable},
		{"plain error", fmt.Errorf("plain"), CodeUnknown},
		{"nil cause chain", Wrap(nil, CodeProfileInvalid, "bad"), CodeProfileInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(CodeProfileInvalid, "detector %d: unknown type %q", 2, "shield_ring")

	if !IsCode(err, CodeProfileInvalid) {
		t.Error("IsCode() = false, want true")
	}
	if IsCode(err, CodeCaptureUnavailable) {
		t.Error("IsCode() matched the wrong code")
	}
	if IsCode(nil, CodeProfileInvalid) {
		t.Error("IsCode(nil) = true, want false")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeProfileInvalid, http.StatusUnprocessableEntity},
		{CodeCaptureUnavailable, http.StatusServiceUnavailable},
		{CodeTemplateSetUnresolved, http.StatusUnprocessableEntity},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}

	if got := HTTPStatusOf(fmt.Errorf("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatusOf(plain) = %d, want 500", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeCaptureUnavailable, "black frame")) {
		t.Error("capture_unavailable should be retryable")
	}
	if IsRetryable(New(CodeProfileInvalid, "bad rect")) {
		t.Error("profile_invalid should not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors should not be retryable")
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(CodeCaptureUnavailable, "grab failed").
		WithMetadata("monitor", "1").
		WithMetadata("tool", "maim")

	if err.Metadata["monitor"] != "1" || err.Metadata["tool"] != "maim" {
		t.Errorf("Metadata = %v, want monitor and tool keys", err.Metadata)
	}
	if !strings.Contains(err.Error(), "maim") {
		t.Errorf("Error() = %q, want metadata included", err.Error())
	}
}
