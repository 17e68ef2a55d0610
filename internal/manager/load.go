package manager

import (
	"context"

	"musicd/internal/device"
	"musicd/pkg/types"
)

// loadHandle selects a device and loads v onto it. It is only called by the
// handle registry, at most once concurrently per variant.
func (m *Manager) loadHandle(ctx context.Context, v types.Variant) (*Handle, error) {
	start := m.now()
	m.log.Info().Str("event", "load_start").Str("variant", v.Name).Str("model_id", v.ModelID).Msg("loading model")
	m.publish(Event{Name: "load_start", Variant: v.Name})

	fail := func(err error) (*Handle, error) {
		m.setLastError(err)
		m.log.Error().Err(err).Str("event", "load_error").Str("variant", v.Name).Msg("model load failed")
		m.publish(Event{Name: "load_error", Variant: v.Name, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}

	dev, err := device.Resolve(ctx, m.runtime, m.devicePref)
	if err != nil {
		return fail(newError(KindModelLoadFailed, v.Name, err, "select device"))
	}
	m.log.Info().Str("event", "device_selected").Str("variant", v.Name).Str("device", dev.String()).Msg("using device")

	model, err := m.backend.Load(ctx, v.ModelID, dev)
	if err != nil {
		return fail(newError(KindModelLoadFailed, v.Name, err, "load model %s", v.ModelID))
	}
	if model.SamplingRate() <= 0 {
		_ = model.Close()
		return fail(newError(KindModelLoadFailed, v.Name, nil, "model %s reported sample rate %d", v.ModelID, model.SamplingRate()))
	}

	dur := m.now().Sub(start)
	h := newHandle(v, dev, model, m.now(), dur, m.maxQueueDepth)
	m.log.Info().
		Str("event", "load_ready").
		Str("variant", v.Name).
		Str("device", dev.String()).
		Int("sample_rate", h.SampleRate()).
		Dur("load_duration", dur).
		Msg("model ready")
	m.publish(Event{Name: "load_ready", Variant: v.Name, Fields: map[string]any{
		"dur_ms": dur.Milliseconds(),
		"device": string(dev.Kind),
	}})
	return h, nil
}
