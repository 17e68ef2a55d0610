package manager

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindResourceExhausted, "small", nil, "generate audio"))
	if !IsResourceExhausted(err) {
		t.Fatalf("expected IsResourceExhausted through wrapping")
	}
	if IsInferenceFailed(err) || IsInvalidRequest(err) {
		t.Fatalf("unexpected kind match")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("cuda oom")
	e := newError(KindResourceExhausted, "medium", cause, "generate audio")
	if e.Error() != "generate audio: cuda oom" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Fatalf("cause must be unwrappable")
	}
	if got := (&Error{Kind: KindInferenceFailed}).Error(); got != "inference_failed" {
		t.Fatalf("unexpected bare message %q", got)
	}
}

func TestClassifyRuntimeError(t *testing.T) {
	if err := classifyRuntimeError("s", "x", fmt.Errorf("%w: out of memory", ErrResourceExhausted)); !IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if err := classifyRuntimeError("s", "x", fmt.Errorf("%w: bad", ErrInvalidInput)); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := classifyRuntimeError("s", "x", errors.New("segfault")); !IsInferenceFailed(err) {
		t.Fatalf("expected inference failed, got %v", err)
	}
}

func TestIsTooBusyAndDependency(t *testing.T) {
	if !IsTooBusy(fmt.Errorf("x: %w", tooBusyError{variant: "small"})) {
		t.Fatalf("expected IsTooBusy true")
	}
	if !IsDependencyUnavailable(ErrDependencyUnavailable("no worker")) {
		t.Fatalf("expected IsDependencyUnavailable true")
	}
}
