package types

import (
	"errors"
	"testing"
)

func TestError_WrappingAndCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	err := NewError(ErrStoreUnavailable, "session backend unreachable").
		WithCause(cause).
		WithRetryable(true).
		WithHTTPStatus(503)

	if !IsRetryable(err) {
		t.Fatal("expected retryable error")
	}
	if GetErrorCode(err) != ErrStoreUnavailable {
		t.Fatalf("unexpected code: %s", GetErrorCode(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be unwrappable")
	}
	if err.HTTPStatus != 503 {
		t.Fatalf("unexpected status: %d", err.HTTPStatus)
	}
}

func TestError_PlainErrorDefaults(t *testing.T) {
	t.Parallel()

	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}
}
