package manager

import (
	"context"
	"path/filepath"
	"time"
)

// Generate turns one request into one audio file. The handle for the request's
// variant is loaded on first use; generations on the same handle run one at a
// time while different variants proceed in parallel.
func (m *Manager) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	v, maxTokens, err := m.resolveRequest(req)
	if err != nil {
		return GenerationResult{}, err
	}

	h, err := m.handles.getOrCreate(ctx, v)
	if err != nil {
		return GenerationResult{}, err
	}

	m.log.Debug().Str("event", "generate_start").Str("variant", v.Name).Int("max_tokens", maxTokens).Msg("generating")
	m.publish(Event{Name: "generate_start", Variant: v.Name})
	start := m.now()
	wave, err := m.runOnHandle(ctx, h, req.Prompt, maxTokens)
	genDur := m.now().Sub(start)
	if err != nil {
		return GenerationResult{}, m.generateFailed(v.Name, err)
	}

	path := m.outputPath(v.Name, req.Output)
	if err := m.writeAudio(path, wave); err != nil {
		return GenerationResult{}, m.generateFailed(v.Name, newError(KindOutputWriteFailed, v.Name, err, "write %s", path))
	}

	res := GenerationResult{
		FilePath:          path,
		FileName:          filepath.Base(path),
		DurationSeconds:   clipDuration(wave),
		GenerationSeconds: genDur.Seconds(),
		SampleRate:        wave.SampleRate,
		SampleCount:       len(wave.Samples),
		Variant:           v.Name,
		ModelID:           v.ModelID,
		MaxTokens:         maxTokens,
		Device:            h.Device,
	}
	m.generations.Add(1)
	m.log.Info().
		Str("event", "generate_done").
		Str("variant", v.Name).
		Str("file", res.FilePath).
		Float64("duration_s", res.DurationSeconds).
		Dur("generation_time", genDur).
		Msg("generation complete")
	m.publish(Event{Name: "generate_done", Variant: v.Name, Fields: map[string]any{
		"dur_ms":     genDur.Milliseconds(),
		"samples":    res.SampleCount,
		"duration_s": res.DurationSeconds,
	}})
	return res, nil
}

// runOnHandle holds the handle's generation slot only for the inference itself.
func (m *Manager) runOnHandle(ctx context.Context, h *Handle, prompt string, maxTokens int) (Waveform, error) {
	release, err := m.beginGeneration(ctx, h)
	if err != nil {
		return Waveform{}, err
	}
	defer release()
	return h.generate(ctx, prompt, maxTokens)
}

func (m *Manager) generateFailed(variant string, err error) error {
	kind := string(KindOf(err))
	switch {
	case IsTooBusy(err):
		kind = "too_busy"
	case kind == "":
		kind = "canceled"
	}
	m.setLastError(err)
	m.log.Warn().Err(err).Str("event", "generate_error").Str("variant", variant).Str("kind", kind).Msg("generation failed")
	m.publish(Event{Name: "generate_error", Variant: variant, Fields: map[string]any{"kind": kind, "error": err.Error()}})
	return err
}

// elapsedSince is used by status reporting.
func (m *Manager) elapsedSince(t time.Time) time.Duration { return m.now().Sub(t) }
