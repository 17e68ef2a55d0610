package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"musicd/internal/device"
	"musicd/pkg/types"
)

// Handle is one loaded variant bound to the device chosen at load time.
// Its model is used by at most one generation at a time (see beginGeneration).
type Handle struct {
	Variant      types.Variant
	Device       device.Device
	LoadedAt     time.Time
	LoadDuration time.Duration

	model      Model
	sampleRate int

	// Queueing: queueCh bounds waiting + in-flight, genCh is the single in-flight slot.
	queueCh chan struct{}
	genCh   chan struct{}

	lastUsed    atomic.Int64
	generations atomic.Uint64
}

func newHandle(v types.Variant, dev device.Device, model Model, loadedAt time.Time, loadDur time.Duration, maxQueueDepth int) *Handle {
	h := &Handle{
		Variant:      v,
		Device:       dev,
		LoadedAt:     loadedAt,
		LoadDuration: loadDur,
		model:        model,
		sampleRate:   model.SamplingRate(),
		queueCh:      make(chan struct{}, maxQueueDepth),
		genCh:        make(chan struct{}, 1),
	}
	h.lastUsed.Store(loadedAt.UnixNano())
	return h
}

// SampleRate is the model's output rate in Hz, fixed at load.
func (h *Handle) SampleRate() int { return h.sampleRate }

// LastUsed is the last time a generation was admitted on this handle.
func (h *Handle) LastUsed() time.Time { return time.Unix(0, h.lastUsed.Load()) }

// generate encodes the prompt and runs inference. Callers must hold genCh.
func (h *Handle) generate(ctx context.Context, prompt string, maxTokens int) (Waveform, error) {
	name := h.Variant.Name
	in, err := h.model.Encode(ctx, prompt)
	if err != nil {
		return Waveform{}, classifyRuntimeError(name, "encode prompt", err)
	}
	if in.Len() == 0 {
		return Waveform{}, newError(KindInvalidInput, name, nil, "prompt encoded to no tokens")
	}
	raw, err := h.model.Infer(ctx, in, maxTokens)
	if err != nil {
		return Waveform{}, classifyRuntimeError(name, "generate audio", err)
	}
	if len(raw.Samples) == 0 {
		return Waveform{}, newError(KindInferenceFailed, name, nil, "model produced no audio")
	}
	h.generations.Add(1)
	return Waveform{Samples: raw.Samples, SampleRate: h.sampleRate}, nil
}

// classifyRuntimeError maps backend causes onto the error taxonomy. Context
// errors stay in the chain so adapters can tell a deadline from a failure.
func classifyRuntimeError(variant, stage string, err error) error {
	switch {
	case errors.Is(err, ErrResourceExhausted):
		return newError(KindResourceExhausted, variant, err, "%s", stage)
	case errors.Is(err, ErrInvalidInput):
		return newError(KindInvalidInput, variant, err, "%s", stage)
	}
	return newError(KindInferenceFailed, variant, err, "%s", stage)
}
