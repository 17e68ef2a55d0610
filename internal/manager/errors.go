package manager

import (
	"errors"
	"fmt"
)

// Kind classifies orchestration failures so adapters can present them.
type Kind string

const (
	KindInvalidRequest    Kind = "invalid_request"
	KindInvalidInput      Kind = "invalid_input"
	KindModelLoadFailed   Kind = "model_load_failed"
	KindResourceExhausted Kind = "resource_exhausted"
	KindInferenceFailed   Kind = "inference_failed"
	KindOutputWriteFailed Kind = "output_write_failed"
)

// Error is a typed failure from one stage of a generation request.
type Error struct {
	Kind    Kind
	Variant string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, variant string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Variant: variant, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInvalidRequest reports an empty prompt, bad token budget or unknown variant.
func IsInvalidRequest(err error) bool { return KindOf(err) == KindInvalidRequest }

// IsInvalidInput reports a prompt the model could not encode.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsModelLoadFailed reports a failure while loading a handle.
func IsModelLoadFailed(err error) bool { return KindOf(err) == KindModelLoadFailed }

// IsResourceExhausted reports device memory exhaustion during inference.
func IsResourceExhausted(err error) bool { return KindOf(err) == KindResourceExhausted }

// IsInferenceFailed reports any other runtime failure during generation.
func IsInferenceFailed(err error) bool { return KindOf(err) == KindInferenceFailed }

// IsOutputWriteFailed reports a filesystem failure while persisting audio.
func IsOutputWriteFailed(err error) bool { return KindOf(err) == KindOutputWriteFailed }

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ variant string }

func (e tooBusyError) Error() string { return "too busy: " + e.variant }

// ErrTooBusy constructs a tooBusyError for variant.
func ErrTooBusy(variant string) error { return tooBusyError{variant: variant} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// dependencyUnavailableError signals a missing external dependency (e.g. no
// inference worker configured).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var du dependencyUnavailableError
	return errors.As(err, &du)
}
