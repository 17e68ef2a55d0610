package manager

import (
	"context"
	"errors"

	"musicd/internal/device"
)

// Backend abstracts the text-to-audio runtime used by the Manager.
// Implementations must be safe for concurrent Load calls.
type Backend interface {
	// Load makes the pretrained model identified by modelID resident on dev.
	Load(ctx context.Context, modelID string, dev device.Device) (Model, error)
}

// Model is one loaded model and its paired prompt processor. The Manager never
// calls Encode or Infer concurrently on the same Model.
type Model interface {
	// Encode tokenizes a prompt into padded model inputs.
	Encode(ctx context.Context, prompt string) (EncodedInput, error)
	// Infer samples up to maxTokens audio tokens and decodes them to a mono waveform.
	Infer(ctx context.Context, in EncodedInput, maxTokens int) (RawAudio, error)
	// SamplingRate is the output sample rate in Hz.
	SamplingRate() int
	// Close releases any resources associated with the model.
	Close() error
}

// EncodedInput is the processor output for one prompt.
type EncodedInput struct {
	InputIDs      []int64 `json:"input_ids"`
	AttentionMask []int64 `json:"attention_mask"`
}

// Len is the number of prompt tokens.
func (e EncodedInput) Len() int { return len(e.InputIDs) }

// RawAudio is the first (and only) channel of a generated batch element.
type RawAudio struct {
	Samples []float32
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sentinel causes that backends wrap so the Manager can classify failures.
var (
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInvalidInput      = errors.New("invalid input")
)
