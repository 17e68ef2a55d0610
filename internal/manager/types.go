package manager

import (
	"musicd/internal/device"
)

// State represents lifecycle state of a handle.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
)

// GenerationRequest is one prompt-to-audio request.
type GenerationRequest struct {
	// Prompt describes the music; must not be blank.
	Prompt string
	// Variant names the model size. Empty selects the default variant.
	Variant string
	// MaxTokens is the token budget. Zero means the variant default.
	MaxTokens int
	// Output, when set, is used verbatim as the destination path.
	Output string
}

// GenerationResult describes a file written by a successful generation.
type GenerationResult struct {
	FilePath          string
	FileName          string
	DurationSeconds   float64
	GenerationSeconds float64
	SampleRate        int
	SampleCount       int
	Variant           string
	ModelID           string
	MaxTokens         int
	Device            device.Device
}

// Waveform is decoded model output: mono samples and their rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}
